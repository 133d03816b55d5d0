package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"braid/internal/reconcile"
)

// newExportCmd creates the export command.
func newExportCmd(provider *AppProvider) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the issue graph to the interchange file",
		Long: `Write every issue and dependency edge as line-delimited JSON. By
default the workspace interchange file (.braid/issues.jsonl) is
overwritten; --output redirects elsewhere.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			path := output
			if path == "" {
				path = app.WS.InterchangePath()
			}
			if err := reconcile.Export(cmd.Context(), app.Store, path); err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]string{"exported": path})
			}
			fmt.Fprintf(app.Out, "Exported to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: .braid/issues.jsonl)")

	return cmd
}
