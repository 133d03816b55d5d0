package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"braid/internal/issuestorage"
)

// newListCmd creates the list command.
func newListCmd(provider *AppProvider) *cobra.Command {
	var (
		status   string
		priority string
		typeFlag string
		epic     string
		labels   []string
		assignee string
		all      bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues",
		Long: `List issues, open ones by default. Filters combine with AND.

Examples:
  braid list
  braid list --all
  braid list --status in_progress --assignee alice
  braid list --epic br-a1b2 --label backend`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			filter := &issuestorage.ListFilter{Labels: labels}
			if status != "" {
				st, err := issuestorage.ParseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = &st
			}
			if priority != "" {
				p, err := issuestorage.ParsePriority(priority)
				if err != nil {
					return err
				}
				filter.Priority = &p
			}
			if typeFlag != "" {
				it := issuestorage.IssueType(typeFlag)
				if !issuestorage.ValidIssueTypes[it] {
					return fmt.Errorf("invalid type %q: %w", typeFlag, issuestorage.ErrValidation)
				}
				filter.Type = &it
			}
			if cmd.Flags().Changed("epic") {
				filter.EpicID = &epic
			}
			if cmd.Flags().Changed("assignee") {
				filter.Assignee = &assignee
			}

			issues, err := app.Store.List(ctx, filter)
			if err != nil {
				return err
			}
			if !all && status == "" {
				kept := issues[:0]
				for _, issue := range issues {
					if !issue.Status.Terminal() {
						kept = append(kept, issue)
					}
				}
				issues = kept
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(issues)
			}
			if len(issues) == 0 {
				fmt.Fprintln(app.Out, "No issues found")
				return nil
			}
			for _, issue := range issues {
				fmt.Fprintf(app.Out, "%-12s %s  %-11s %s\n", issue.ID, issue.Priority.Display(), issue.Status, issue.Title)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by status")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Filter by priority")
	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "Filter by type")
	cmd.Flags().StringVar(&epic, "epic", "", "Filter by epic ID (empty string for root issues)")
	cmd.Flags().StringSliceVarP(&labels, "label", "l", nil, "Filter by label (can repeat, AND)")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "Filter by assignee")
	cmd.Flags().BoolVar(&all, "all", false, "Include closed, resolved and archived issues")

	return cmd
}
