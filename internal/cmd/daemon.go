package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"braid/internal/daemon"
	"braid/internal/rpc"
)

// newDaemonCmd creates the daemon command with run/start/stop/restart/
// status subcommands.
func newDaemonCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the workspace sync daemon",
		Long: `One daemon runs per workspace. It watches the store, debounces
changes, and drives the export/commit/pull/import/push cycle against
git on a timer.`,
	}

	cmd.AddCommand(newDaemonRunCmd(provider))
	cmd.AddCommand(newDaemonStartCmd(provider))
	cmd.AddCommand(newDaemonStopCmd(provider))
	cmd.AddCommand(newDaemonRestartCmd(provider))
	cmd.AddCommand(newDaemonStatusCmd(provider))

	return cmd
}

func newDaemonRunCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			d := &daemon.Daemon{
				WS:       app.WS,
				Store:    app.Store,
				Version:  Version,
				Interval: app.Config.Sync.Interval.Std(),
			}
			return d.Run(cmd.Context())
		},
	}

	return cmd
}

func newDaemonStartCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			client := rpc.NewClient(app.WS.SocketPath(), Version)
			if info, err := client.Health(cmd.Context()); err == nil {
				if app.JSON {
					return json.NewEncoder(app.Out).Encode(info)
				}
				fmt.Fprintf(app.Out, "Daemon already running (pid %d)\n", info.PID)
				return nil
			}

			if err := spawnDaemon(app); err != nil {
				return err
			}

			// Wait briefly for the socket to come up.
			deadline := time.Now().Add(5 * time.Second)
			for time.Now().Before(deadline) {
				if info, err := client.Health(cmd.Context()); err == nil {
					if app.JSON {
						return json.NewEncoder(app.Out).Encode(info)
					}
					fmt.Fprintf(app.Out, "%s Daemon started (pid %d)\n", app.SuccessColor("✓"), info.PID)
					return nil
				}
				time.Sleep(100 * time.Millisecond)
			}
			return fmt.Errorf("daemon did not come up; check %s", app.WS.LogPath())
		},
	}

	return cmd
}

// spawnDaemon re-executes this binary as a detached "daemon run".
func spawnDaemon(app *App) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	child := exec.Command(exe, "daemon", "run", "--path", app.WS.Root)
	child.Stdout = nil
	child.Stderr = nil
	child.Stdin = nil
	if err := child.Start(); err != nil {
		return fmt.Errorf("spawning daemon: %w", err)
	}
	// The child owns its lifecycle from here.
	return child.Process.Release()
}

func newDaemonStopCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			client := rpc.NewClient(app.WS.SocketPath(), Version)
			err = client.Shutdown(cmd.Context())
			if errors.Is(err, rpc.ErrDaemonUnreachable) {
				if app.JSON {
					return json.NewEncoder(app.Out).Encode(map[string]bool{"running": false})
				}
				fmt.Fprintln(app.Out, "Daemon not running")
				return nil
			}
			if err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]bool{"stopped": true})
			}
			fmt.Fprintln(app.Out, "Daemon stopped")
			return nil
		},
	}

	return cmd
}

func newDaemonRestartCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			client := rpc.NewClient(app.WS.SocketPath(), Version)
			err = client.Shutdown(ctx)
			if err != nil && !errors.Is(err, rpc.ErrDaemonUnreachable) && !errors.Is(err, rpc.ErrVersionMismatch) {
				return err
			}

			// Wait for the old instance to release the socket and PID file.
			deadline := time.Now().Add(5 * time.Second)
			for time.Now().Before(deadline) {
				if _, err := client.Health(ctx); err != nil {
					break
				}
				time.Sleep(100 * time.Millisecond)
			}

			if err := spawnDaemon(app); err != nil {
				return err
			}
			deadline = time.Now().Add(5 * time.Second)
			for time.Now().Before(deadline) {
				if info, err := client.Health(ctx); err == nil {
					if app.JSON {
						return json.NewEncoder(app.Out).Encode(info)
					}
					fmt.Fprintf(app.Out, "%s Daemon restarted (pid %d)\n", app.SuccessColor("✓"), info.PID)
					return nil
				}
				time.Sleep(100 * time.Millisecond)
			}
			return fmt.Errorf("daemon did not come back up; check %s", app.WS.LogPath())
		},
	}

	return cmd
}

func newDaemonStatusCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon health",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			client := rpc.NewClient(app.WS.SocketPath(), Version)
			info, err := client.Health(cmd.Context())
			if errors.Is(err, rpc.ErrDaemonUnreachable) {
				if app.JSON {
					return json.NewEncoder(app.Out).Encode(map[string]bool{"running": false})
				}
				fmt.Fprintln(app.Out, "Daemon not running")
				return nil
			}
			if errors.Is(err, rpc.ErrVersionMismatch) {
				running, verr := client.Version(cmd.Context())
				if verr != nil {
					return err
				}
				return fmt.Errorf("daemon runs version %s, this binary is %s; restart it: %w",
					running, Version, rpc.ErrVersionMismatch)
			}
			if err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(info)
			}
			fmt.Fprintf(app.Out, "Daemon running (pid %d, version %s)\n", info.PID, info.Version)
			fmt.Fprintf(app.Out, "  Workspace:    %s\n", info.Workspace)
			fmt.Fprintf(app.Out, "  Started:      %s\n", info.StartedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(app.Out, "  Pending sync: %v\n", info.PendingSync)
			if !info.LastSyncAt.IsZero() {
				fmt.Fprintf(app.Out, "  Last sync:    %s\n", info.LastSyncAt.Format("2006-01-02 15:04:05"))
			}
			if info.LastSyncError != "" {
				fmt.Fprintf(app.Out, "  Last error:   %s\n", info.LastSyncError)
			}
			return nil
		},
	}

	return cmd
}
