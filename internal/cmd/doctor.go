package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// newDoctorCmd creates the doctor command.
func newDoctorCmd(provider *AppProvider) *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the store for inconsistencies",
		Long: `Scan for orphaned dependency edges, dangling epic references,
missing hierarchy edges and closed_at drift. With --fix, repair what
can be repaired.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			findings, err := app.Store.Doctor(cmd.Context(), fix)
			if err != nil {
				return err
			}

			if app.JSON {
				if findings == nil {
					findings = []string{}
				}
				return json.NewEncoder(app.Out).Encode(map[string]any{"findings": findings, "fixed": fix})
			}
			if len(findings) == 0 {
				fmt.Fprintf(app.Out, "%s No problems found\n", app.SuccessColor("✓"))
				return nil
			}
			for _, f := range findings {
				fmt.Fprintf(app.Out, "%s %s\n", app.WarnColor("!"), f)
			}
			if !fix {
				fmt.Fprintln(app.Out, "Run with --fix to repair")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "Repair findings where possible")

	return cmd
}
