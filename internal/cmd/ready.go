package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"braid/internal/graph"
	"braid/internal/issuestorage"
)

// newReadyCmd creates the ready command.
func newReadyCmd(provider *AppProvider) *cobra.Command {
	var (
		priority string
		labels   []string
		assignee string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "ready",
		Short: "List issues ready to work on",
		Long: `List open issues with no unresolved blockers, ordered by priority
then age. This is the work queue: the top entry is the next thing to do.

Examples:
  braid ready
  braid ready --priority 1
  braid ready --assignee alice --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			filter := &graph.Filter{Labels: labels}
			if priority != "" {
				p, err := issuestorage.ParsePriority(priority)
				if err != nil {
					return err
				}
				filter.Priority = &p
			}
			if cmd.Flags().Changed("assignee") {
				filter.Assignee = &assignee
			}

			ready, err := graph.ReadyIssues(cmd.Context(), app.Store, filter)
			if err != nil {
				return err
			}
			if limit > 0 && len(ready) > limit {
				ready = ready[:limit]
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(ready)
			}
			if len(ready) == 0 {
				fmt.Fprintln(app.Out, "No issues ready")
				return nil
			}
			for _, issue := range ready {
				fmt.Fprintf(app.Out, "%-12s %s  %s\n", issue.ID, issue.Priority.Display(), issue.Title)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Only this priority")
	cmd.Flags().StringSliceVarP(&labels, "label", "l", nil, "Require label (can repeat)")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "Only this assignee")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most n issues")

	return cmd
}
