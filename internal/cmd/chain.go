package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"braid/internal/graph"
)

// newChainCmd creates the chain command.
func newChainCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain <from-id> <to-id>",
		Short: "Show the shortest dependency chain between two issues",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			path, err := graph.DependencyChain(cmd.Context(), app.Store, args[0], args[1])
			if errors.Is(err, graph.ErrNoPath) {
				if app.JSON {
					return json.NewEncoder(app.Out).Encode(map[string]any{"path": nil})
				}
				fmt.Fprintf(app.Out, "No dependency chain from %s to %s\n", args[0], args[1])
				return nil
			}
			if err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]any{"path": path})
			}
			fmt.Fprintln(app.Out, strings.Join(path, " -> "))
			return nil
		},
	}

	return cmd
}
