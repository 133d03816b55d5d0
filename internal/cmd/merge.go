package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"braid/internal/reconcile"
)

// newDuplicatesCmd creates the duplicates command.
func newDuplicatesCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "Find issues with identical content",
		Long: `Group issues by content hash. Issues group only with others in the
same status class (open with open, closed with closed). Each group
names the merge target braid merge would pick.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			groups, err := reconcile.FindDuplicates(cmd.Context(), app.Store)
			if err != nil {
				return err
			}

			if app.JSON {
				if groups == nil {
					groups = []reconcile.DuplicateGroup{}
				}
				return json.NewEncoder(app.Out).Encode(groups)
			}
			if len(groups) == 0 {
				fmt.Fprintln(app.Out, "No duplicates found")
				return nil
			}
			for _, g := range groups {
				fmt.Fprintf(app.Out, "%s: %s <- %s\n", g.ContentHash, g.Target, strings.Join(g.Sources, ", "))
			}
			return nil
		},
	}

	return cmd
}

// newMergeCmd creates the merge command.
func newMergeCmd(provider *AppProvider) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "merge <target-id> <source-id> [source-id...]",
		Short: "Merge duplicate issues into a target",
		Long: `Close each source as a duplicate of target, re-point every
dependency edge touching a source at target, and rewrite textual
references to source IDs in other issues.

Examples:
  braid merge br-a1b2 br-c3d4
  braid merge br-a1b2 br-c3d4 br-e5f6 --dry-run`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			target, sources := args[0], args[1:]

			if dryRun {
				if app.JSON {
					return json.NewEncoder(app.Out).Encode(map[string]any{
						"target": target, "sources": sources, "dry_run": true,
					})
				}
				fmt.Fprintf(app.Out, "Would merge %s into %s\n", strings.Join(sources, ", "), target)
				return nil
			}

			result, err := reconcile.Merge(cmd.Context(), app.Store, target, sources)
			if err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(result)
			}
			fmt.Fprintf(app.Out, "%s Merged into %s: %d closed, %d edges moved, %d references rewritten\n",
				app.SuccessColor("✓"), target, len(result.Closed), result.MovedEdges, result.RewrittenRefs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would happen without mutating anything")

	return cmd
}
