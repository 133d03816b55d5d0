package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"braid/internal/issuestorage"
)

// newCloseCmd creates the close command.
func newCloseCmd(provider *AppProvider) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "close <issue-id> [issue-id...]",
		Short: "Close one or more issues",
		Long: `Close one or more issues, recording the closed_at timestamp.

Examples:
  braid close br-a1b2
  braid close br-a1b2 br-c3d4 --reason "fixed in v2.1"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var closed []string
			var errs []error

			for _, issueID := range args {
				err := app.Store.Modify(ctx, issueID, func(issue *issuestorage.Issue) error {
					issue.Status = issuestorage.StatusClosed
					if reason != "" {
						issue.CloseReason = reason
					}
					return nil
				})
				if err != nil {
					errs = append(errs, fmt.Errorf("closing %s: %w", issueID, err))
				} else {
					closed = append(closed, issueID)
				}
			}

			if app.JSON {
				result := map[string]interface{}{
					"closed": closed,
				}
				if len(errs) > 0 {
					errStrings := make([]string, len(errs))
					for i, e := range errs {
						errStrings[i] = e.Error()
					}
					result["errors"] = errStrings
				}
				return json.NewEncoder(app.Out).Encode(result)
			}

			for _, id := range closed {
				fmt.Fprintf(app.Out, "Closed %s\n", id)
			}

			// Return first error if any
			if len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintf(app.Err, "Error: %v\n", e)
				}
				return errs[0]
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Close reason")

	return cmd
}
