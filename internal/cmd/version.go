package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"braid/internal/rpc"
)

// Version is the current version of braid. It can be overridden at build
// time via -ldflags "-X braid/internal/cmd.Version=1.2.3".
var Version = "0.1.0"

// newVersionCmd creates the version command.
func newVersionCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the braid version",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()

			// Version must work outside a workspace too.
			if err != nil {
				if provider.JSONOutput {
					return json.NewEncoder(provider.Out).Encode(map[string]string{"version": Version})
				}
				fmt.Fprintf(provider.Out, "braid version %s\n", Version)
				return nil
			}

			daemonVersion := ""
			client := rpc.NewClient(app.WS.SocketPath(), Version)
			if v, err := client.Version(cmd.Context()); err == nil {
				daemonVersion = v
			} else if !errors.Is(err, rpc.ErrDaemonUnreachable) {
				return err
			}

			if app.JSON {
				result := map[string]string{"version": Version}
				if daemonVersion != "" {
					result["daemon_version"] = daemonVersion
				}
				return json.NewEncoder(app.Out).Encode(result)
			}
			fmt.Fprintf(app.Out, "braid version %s\n", Version)
			if daemonVersion != "" && daemonVersion != Version {
				fmt.Fprintf(app.Out, "%s daemon runs %s; run 'braid daemon stop' to refresh it\n",
					app.WarnColor("!"), daemonVersion)
			}
			return nil
		},
	}

	return cmd
}
