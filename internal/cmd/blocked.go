package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"braid/internal/graph"
)

// newBlockedCmd creates the blocked command.
func newBlockedCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocked",
		Short: "List blocked issues and what blocks them",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			blocked, err := graph.BlockedIssues(cmd.Context(), app.Store)
			if err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(blocked)
			}
			if len(blocked) == 0 {
				fmt.Fprintln(app.Out, "No blocked issues")
				return nil
			}
			for _, b := range blocked {
				fmt.Fprintf(app.Out, "%-12s %s  %s\n", b.Issue.ID, b.Issue.Priority.Display(), b.Issue.Title)
				fmt.Fprintf(app.Out, "  blocked by: %s\n", strings.Join(b.BlockedBy, ", "))
			}
			return nil
		},
	}

	return cmd
}
