package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"braid/internal/config"
	"braid/internal/issuestorage/sqlite"
	"braid/internal/workspace"
)

// newInitCmd creates the init command.
func newInitCmd(provider *AppProvider) *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a braid workspace",
		Long: `Create the .braid metadata directory, the issue database, and a
default config file. Run inside a git repository to get sync for free.

Examples:
  braid init
  braid init ~/src/myproject
  braid init --prefix myproj`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			if provider.WorkspacePath != "" {
				root = provider.WorkspacePath
			}

			ws, err := workspace.Init(root)
			if err != nil {
				return err
			}
			cfg, err := config.Load(ws.ConfigPath())
			if err != nil {
				return err
			}
			if prefix != "" && prefix != cfg.ID.Prefix {
				cfg.ID.Prefix = prefix
				if err := config.Write(ws.ConfigPath(), cfg); err != nil {
					return err
				}
			}

			store, err := sqlite.New(ws.DatabasePath(), cfg.ID.Prefix)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Init(context.Background()); err != nil {
				return err
			}

			out := provider.Out
			if out == nil {
				out = os.Stdout
			}
			if provider.JSONOutput {
				return json.NewEncoder(out).Encode(map[string]string{
					"workspace": ws.Root,
					"database":  ws.DatabasePath(),
				})
			}
			fmt.Fprintf(out, "Initialized braid workspace in %s\n", ws.MetaDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "ID prefix for issues in this workspace (default br)")

	return cmd
}
