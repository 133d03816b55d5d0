package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"braid/internal/issuestorage"
)

// newShowCmd creates the show command.
func newShowCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <issue-id>",
		Short: "Show an issue's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			issue, err := app.Store.Get(ctx, args[0])
			if err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(issue)
			}

			fmt.Fprintf(app.Out, "%s  %s\n", issue.ID, issue.Title)
			fmt.Fprintf(app.Out, "  Status:   %s\n", issue.Status)
			fmt.Fprintf(app.Out, "  Priority: %s\n", issue.Priority.Display())
			fmt.Fprintf(app.Out, "  Type:     %s\n", issue.Type)
			if issue.EpicID != "" {
				fmt.Fprintf(app.Out, "  Epic:     %s\n", issue.EpicID)
			}
			if issue.Assignee != "" {
				fmt.Fprintf(app.Out, "  Assignee: %s\n", issue.Assignee)
			}
			if len(issue.Labels) > 0 {
				fmt.Fprintf(app.Out, "  Labels:   %s\n", strings.Join(issue.Labels, ", "))
			}
			fmt.Fprintf(app.Out, "  Created:  %s\n", issue.CreatedAt.Format("2006-01-02 15:04"))
			fmt.Fprintf(app.Out, "  Updated:  %s\n", issue.UpdatedAt.Format("2006-01-02 15:04"))
			if issue.ClosedAt != nil {
				fmt.Fprintf(app.Out, "  Closed:   %s\n", issue.ClosedAt.Format("2006-01-02 15:04"))
				if issue.CloseReason != "" {
					fmt.Fprintf(app.Out, "  Reason:   %s\n", issue.CloseReason)
				}
			}
			if issue.Description != "" {
				fmt.Fprintf(app.Out, "\n%s\n", issue.Description)
			}

			deps, err := app.Store.ListDependencies(ctx)
			if err != nil {
				return err
			}
			var blocks, blockedBy []string
			for _, dep := range deps {
				if dep.Type != issuestorage.DepTypeBlocks {
					continue
				}
				if dep.FromID == issue.ID {
					blockedBy = append(blockedBy, dep.ToID)
				}
				if dep.ToID == issue.ID {
					blocks = append(blocks, dep.FromID)
				}
			}
			if len(blockedBy) > 0 {
				fmt.Fprintf(app.Out, "\n  Blocked by: %s\n", strings.Join(blockedBy, ", "))
			}
			if len(blocks) > 0 {
				fmt.Fprintf(app.Out, "  Blocks:     %s\n", strings.Join(blocks, ", "))
			}
			return nil
		},
	}

	return cmd
}
