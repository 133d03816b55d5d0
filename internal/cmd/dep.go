package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"braid/internal/issuestorage"
)

// newDepCmd creates the dep command with add/rm/list subcommands.
func newDepCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage dependency edges between issues",
		Long: `Manage typed dependency edges. "braid dep add A B" records that A
depends on B: B blocks A, and A stays out of the ready queue until B is
resolved. Only blocks edges affect readiness; related and
discovered-from are informational.`,
	}

	cmd.AddCommand(newDepAddCmd(provider))
	cmd.AddCommand(newDepRmCmd(provider))
	cmd.AddCommand(newDepListCmd(provider))

	return cmd
}

func newDepAddCmd(provider *AppProvider) *cobra.Command {
	var depType string

	cmd := &cobra.Command{
		Use:   "add <issue-id> <depends-on-id>",
		Short: "Add a dependency edge",
		Long: `Record that the first issue depends on the second.

Examples:
  braid dep add br-a1b2 br-c3d4
  braid dep add br-a1b2 br-c3d4 --type related`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			dt := issuestorage.DependencyType(depType)
			if !issuestorage.ValidDependencyTypes[dt] {
				return fmt.Errorf("invalid dependency type %q: %w", depType, issuestorage.ErrValidation)
			}
			if err := app.Store.AddDependency(cmd.Context(), args[0], args[1], dt); err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]string{
					"from": args[0], "to": args[1], "type": depType,
				})
			}
			fmt.Fprintf(app.Out, "%s %s now depends on %s (%s)\n", app.SuccessColor("✓"), args[0], args[1], depType)
			return nil
		},
	}

	cmd.Flags().StringVarP(&depType, "type", "t", string(issuestorage.DepTypeBlocks),
		"Edge type (blocks, related, parent-child, discovered-from)")

	return cmd
}

func newDepRmCmd(provider *AppProvider) *cobra.Command {
	var depType string

	cmd := &cobra.Command{
		Use:   "rm <issue-id> <depends-on-id>",
		Short: "Remove a dependency edge",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			dt := issuestorage.DependencyType(depType)
			if !issuestorage.ValidDependencyTypes[dt] {
				return fmt.Errorf("invalid dependency type %q: %w", depType, issuestorage.ErrValidation)
			}
			if err := app.Store.RemoveDependency(cmd.Context(), args[0], args[1], dt); err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]string{"removed": args[0] + " -> " + args[1]})
			}
			fmt.Fprintf(app.Out, "Removed %s -> %s (%s)\n", args[0], args[1], depType)
			return nil
		},
	}

	cmd.Flags().StringVarP(&depType, "type", "t", string(issuestorage.DepTypeBlocks), "Edge type")

	return cmd
}

func newDepListCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all dependency edges",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			deps, err := app.Store.ListDependencies(cmd.Context())
			if err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(deps)
			}
			if len(deps) == 0 {
				fmt.Fprintln(app.Out, "No dependencies")
				return nil
			}
			for _, dep := range deps {
				fmt.Fprintf(app.Out, "%s -> %s (%s)\n", dep.FromID, dep.ToID, dep.Type)
			}
			return nil
		},
	}

	return cmd
}
