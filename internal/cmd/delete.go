package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// newDeleteCmd creates the delete command.
func newDeleteCmd(provider *AppProvider) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <issue-id>",
		Short: "Permanently delete an issue",
		Long: `Delete an issue and every dependency edge touching it. Prefer close;
delete is for issues created by mistake.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			if !force {
				return fmt.Errorf("refusing to delete %s without --force", args[0])
			}
			if err := app.Store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]string{"deleted": args[0]})
			}
			fmt.Fprintf(app.Out, "Deleted %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Actually delete")

	return cmd
}
