package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"braid/internal/reconcile"
)

// newImportCmd creates the import command.
func newImportCmd(provider *AppProvider) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import issues from the interchange file",
		Long: `Reconcile the interchange file into the store. Existing records
merge newest-wins, unknown records are created, and hierarchical
children whose parent is missing get a reconstructed placeholder
parent. Malformed lines are reported and skipped, never fatal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			path := input
			if path == "" {
				path = app.WS.InterchangePath()
			}
			result, err := reconcile.Import(cmd.Context(), app.Store, path)
			if err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(result)
			}
			fmt.Fprintf(app.Out, "Imported: %d created, %d updated, %d unchanged, %d edges\n",
				result.Created, result.Updated, result.Unchanged, result.Edges)
			if result.Tombstones > 0 {
				fmt.Fprintf(app.Out, "%s %d missing parent(s) reconstructed\n", app.WarnColor("!"), result.Tombstones)
			}
			for _, w := range result.Warnings {
				fmt.Fprintf(app.Err, "Warning: %s\n", w)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Input file (default: .braid/issues.jsonl)")

	return cmd
}
