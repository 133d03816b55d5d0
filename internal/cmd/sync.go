package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"braid/internal/gitops"
	"braid/internal/reconcile"
	"braid/internal/rpc"
)

// newSyncCmd creates the sync command.
func newSyncCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a reconciliation cycle now",
		Long: `Force an immediate export/commit/pull/import/push cycle. Goes
through the daemon when one is running; otherwise runs the cycle
directly and says so.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if !app.NoDaemon {
				client := rpc.NewClient(app.WS.SocketPath(), Version)
				err := client.Sync(ctx)
				switch {
				case err == nil:
					if app.JSON {
						return json.NewEncoder(app.Out).Encode(map[string]string{"synced": "daemon"})
					}
					fmt.Fprintf(app.Out, "%s Synced via daemon\n", app.SuccessColor("✓"))
					return nil
				case errors.Is(err, rpc.ErrVersionMismatch):
					return err
				case errors.Is(err, rpc.ErrDaemonUnreachable):
					fmt.Fprintln(app.Err, "Daemon not running; syncing directly")
					if app.Config.Sync.AutoStart {
						// Best effort; this cycle runs directly either way.
						if serr := spawnDaemon(app); serr != nil {
							fmt.Fprintf(app.Err, "Warning: could not start daemon: %v\n", serr)
						}
					}
				default:
					return err
				}
			}

			p := &reconcile.Pipeline{
				Store:           app.Store,
				Repo:            gitops.New(app.WS.Root),
				InterchangePath: app.WS.InterchangePath(),
			}
			result, err := p.Run(ctx)
			if err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(result)
			}
			fmt.Fprintf(app.Out, "%s Synced: committed=%v pulled=%v pushed=%v\n",
				app.SuccessColor("✓"), result.Committed, result.Pulled, result.Pushed)
			if result.Import != nil {
				for _, w := range result.Import.Warnings {
					fmt.Fprintf(app.Err, "Warning: %s\n", w)
				}
			}
			return nil
		},
	}

	return cmd
}
