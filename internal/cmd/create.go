package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"braid/internal/issuestorage"
)

// newCreateCmd creates the create command.
func newCreateCmd(provider *AppProvider) *cobra.Command {
	var (
		typeFlag    string
		priority    string
		parent      string
		dependsOn   []string
		labels      []string
		assignee    string
		description string
	)

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a new issue",
		Long: `Create a new issue with the specified title. The ID is derived from
the issue's content, so re-creating an identical issue yields the same ID.

Examples:
  braid create "Fix login bug"
  braid create "Add OAuth support" --type feature --priority high
  braid create "Implement caching" --parent br-a1b2
  braid create "Write tests" --depends-on br-e5f6
  braid create "Task" --description -   # read description from stdin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			title := args[0]

			issueType := issuestorage.IssueType(app.Config.Defaults.Type)
			if typeFlag != "" {
				issueType = issuestorage.IssueType(strings.ToLower(typeFlag))
			}
			if issueType != "" && !issuestorage.ValidIssueTypes[issueType] {
				return fmt.Errorf("invalid type %q: must be one of task, bug, feature, epic, chore: %w",
					typeFlag, issuestorage.ErrValidation)
			}

			issuePriority := issuestorage.PriorityMedium
			if priority == "" {
				priority = app.Config.Defaults.Priority
			}
			if priority != "" {
				issuePriority, err = issuestorage.ParsePriority(priority)
				if err != nil {
					return err
				}
			}

			// Handle description from stdin if "-"
			desc := description
			if description == "-" {
				data, err := io.ReadAll(bufio.NewReader(os.Stdin))
				if err != nil {
					return fmt.Errorf("reading description from stdin: %w", err)
				}
				desc = strings.TrimSpace(string(data))
			}

			issue := &issuestorage.Issue{
				Title:       title,
				Description: desc,
				Type:        issueType,
				Priority:    issuePriority,
				Labels:      labels,
				Assignee:    assignee,
				CreatedBy:   app.Config.Actor,
			}

			if parent != "" {
				// Children of an epic get dotted hierarchical IDs.
				childID, err := app.Store.GetNextChildID(ctx, parent)
				if err != nil {
					return fmt.Errorf("resolving child ID under %s: %w", parent, err)
				}
				issue.ID = childID
				issue.EpicID = parent
			}

			id, err := app.Store.Create(ctx, issue)
			if errors.Is(err, issuestorage.ErrAlreadyExists) && id != "" {
				if app.JSON {
					return json.NewEncoder(app.Out).Encode(map[string]any{"id": id, "existing": true})
				}
				fmt.Fprintf(app.Out, "%s Identical issue already exists: %s\n", app.WarnColor("!"), id)
				return nil
			}
			if err != nil {
				return fmt.Errorf("creating issue: %w", err)
			}

			for _, depID := range dependsOn {
				if err := app.Store.AddDependency(ctx, id, depID, issuestorage.DepTypeBlocks); err != nil {
					return fmt.Errorf("adding dependency on %s: %w", depID, err)
				}
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]string{"id": id})
			}
			fmt.Fprintf(app.Out, "%s Created issue: %s\n", app.SuccessColor("✓"), id)
			fmt.Fprintf(app.Out, "  Title: %s\n", issue.Title)
			fmt.Fprintf(app.Out, "  Priority: %s\n", issuePriority.Display())
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "Issue type (task, bug, feature, epic, chore)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Priority (0-4 or critical, high, medium, low, backlog)")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent epic ID (child gets a dotted hierarchical ID)")
	cmd.Flags().StringSliceVarP(&dependsOn, "depends-on", "d", nil, "Issue ID this depends on (can repeat)")
	cmd.Flags().StringSliceVarP(&labels, "label", "l", nil, "Add label (can repeat)")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "Assign to user")
	cmd.Flags().StringVar(&description, "description", "", "Issue description (- to read from stdin)")

	return cmd
}
