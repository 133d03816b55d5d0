package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"braid/internal/issuestorage"
)

// newReopenCmd creates the reopen command.
func newReopenCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reopen <issue-id> [issue-id...]",
		Short: "Reopen closed issues",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var reopened []string
			var errs []error

			for _, issueID := range args {
				err := app.Store.Modify(ctx, issueID, func(issue *issuestorage.Issue) error {
					issue.Status = issuestorage.StatusOpen
					return nil
				})
				if err != nil {
					errs = append(errs, fmt.Errorf("reopening %s: %w", issueID, err))
				} else {
					reopened = append(reopened, issueID)
				}
			}

			if app.JSON {
				result := map[string]interface{}{"reopened": reopened}
				if len(errs) > 0 {
					errStrings := make([]string, len(errs))
					for i, e := range errs {
						errStrings[i] = e.Error()
					}
					result["errors"] = errStrings
				}
				return json.NewEncoder(app.Out).Encode(result)
			}

			for _, id := range reopened {
				fmt.Fprintf(app.Out, "Reopened %s\n", id)
			}
			if len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintf(app.Err, "Error: %v\n", e)
				}
				return errs[0]
			}
			return nil
		},
	}

	return cmd
}
