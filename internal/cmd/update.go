package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"braid/internal/issuestorage"
)

// newUpdateCmd creates the update command.
func newUpdateCmd(provider *AppProvider) *cobra.Command {
	var (
		title       string
		description string
		status      string
		priority    string
		typeFlag    string
		assignee    string
		addLabels   []string
		rmLabels    []string
	)

	cmd := &cobra.Command{
		Use:   "update <issue-id>",
		Short: "Update fields on an issue",
		Long: `Update one or more fields on an issue. Status changes go through
transition validation; a closed issue cannot jump straight to in_progress.

Examples:
  braid update br-a1b2 --status in_progress
  braid update br-a1b2 --priority 1 --assignee alice
  braid update br-a1b2 --add-label backend --remove-label triage`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			id := args[0]

			err = app.Store.Modify(ctx, id, func(issue *issuestorage.Issue) error {
				if cmd.Flags().Changed("title") {
					issue.Title = title
				}
				if cmd.Flags().Changed("description") {
					issue.Description = description
				}
				if cmd.Flags().Changed("status") {
					st, err := issuestorage.ParseStatus(status)
					if err != nil {
						return err
					}
					issue.Status = st
				}
				if cmd.Flags().Changed("priority") {
					p, err := issuestorage.ParsePriority(priority)
					if err != nil {
						return err
					}
					issue.Priority = p
				}
				if cmd.Flags().Changed("type") {
					it := issuestorage.IssueType(strings.ToLower(typeFlag))
					if !issuestorage.ValidIssueTypes[it] {
						return fmt.Errorf("invalid type %q: %w", typeFlag, issuestorage.ErrValidation)
					}
					issue.Type = it
				}
				if cmd.Flags().Changed("assignee") {
					issue.Assignee = assignee
				}
				for _, l := range addLabels {
					if !issue.HasLabel(l) {
						issue.Labels = append(issue.Labels, l)
					}
				}
				for _, l := range rmLabels {
					kept := issue.Labels[:0]
					for _, have := range issue.Labels {
						if have != l {
							kept = append(kept, have)
						}
					}
					issue.Labels = kept
				}
				return nil
			})
			if err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]string{"updated": id})
			}
			fmt.Fprintf(app.Out, "%s Updated %s\n", app.SuccessColor("✓"), id)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVarP(&status, "status", "s", "", "New status (open, in_progress, blocked, resolved, closed, archived)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "New priority (0-4 or word form)")
	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "New type")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "New assignee")
	cmd.Flags().StringSliceVar(&addLabels, "add-label", nil, "Add label (can repeat)")
	cmd.Flags().StringSliceVar(&rmLabels, "remove-label", nil, "Remove label (can repeat)")

	return cmd
}
