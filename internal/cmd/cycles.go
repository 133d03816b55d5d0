package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"braid/internal/graph"
)

// newCyclesCmd creates the cycles command.
func newCyclesCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycles",
		Short: "Audit the graph for dependency cycles",
		Long: `Scan every blocks edge for cycles. Direct edits can never introduce
one, but imported files can; this audit finds them after the fact.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			cycles, err := graph.DetectCycles(cmd.Context(), app.Store)
			if err != nil {
				return err
			}

			if app.JSON {
				if cycles == nil {
					cycles = [][]string{}
				}
				return json.NewEncoder(app.Out).Encode(map[string]any{"cycles": cycles})
			}
			if len(cycles) == 0 {
				fmt.Fprintln(app.Out, "No cycles found")
				return nil
			}
			fmt.Fprintf(app.Out, "%s %d cycle(s) found:\n", app.WarnColor("!"), len(cycles))
			for _, cycle := range cycles {
				fmt.Fprintf(app.Out, "  %s -> %s\n", strings.Join(cycle, " -> "), cycle[0])
			}
			return nil
		},
	}

	return cmd
}
