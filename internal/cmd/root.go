package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/spf13/cobra"

	"braid/internal/config"
	"braid/internal/idgen"
	"braid/internal/issuestorage"
	"braid/internal/issuestorage/sqlite"
	"braid/internal/rpc"
	"braid/internal/workspace"
)

// Exit codes: 0 success, 1 user error (validation, not found), 2
// internal failure.
const (
	ExitOK       = 0
	ExitUser     = 1
	ExitInternal = 2
)

// AppProvider lazily initializes the App on first use.
type AppProvider struct {
	once sync.Once
	app  *App
	err  error

	// Config captured from flags before Execute()
	WorkspacePath string
	JSONOutput    bool
	NoDaemon      bool
	Out           io.Writer
	Err           io.Writer
}

// Get returns the App, initializing it on first call.
func (p *AppProvider) Get() (*App, error) {
	p.once.Do(func() {
		if p.app == nil {
			p.app, p.err = p.init()
		}
	})
	return p.app, p.err
}

// NewTestProvider creates a provider pre-initialized with the given App.
// Used for testing commands with a test App.
func NewTestProvider(app *App) *AppProvider {
	return &AppProvider{
		app: app,
		Out: app.Out,
		Err: app.Err,
	}
}

func (p *AppProvider) init() (*App, error) {
	start := p.WorkspacePath
	if start == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		start = cwd
	}
	ws, err := workspace.Find(start)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(ws.ConfigPath())
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(ws.DatabasePath(), cfg.ID.Prefix)
	if err != nil {
		return nil, err
	}
	if err := store.Init(context.Background()); err != nil {
		return nil, err
	}

	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	errOut := p.Err
	if errOut == nil {
		errOut = os.Stderr
	}

	jsonOut := p.JSONOutput
	if !jsonOut {
		jsonOut = boolEnv(config.EnvJSON)
	}
	noDaemon := p.NoDaemon || cfg.Sync.NoDaemon
	if !noDaemon {
		noDaemon = boolEnv(config.EnvNoDaemon)
	}

	return &App{
		Store:    store,
		WS:       ws,
		Config:   cfg,
		Out:      out,
		Err:      errOut,
		JSON:     jsonOut,
		NoDaemon: noDaemon,
	}, nil
}

func boolEnv(name string) bool {
	v, err := strconv.ParseBool(os.Getenv(name))
	return err == nil && v
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	provider := &AppProvider{
		Out: os.Stdout,
		Err: os.Stderr,
	}

	rootCmd := newRootCmd(provider)
	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return exitCode(err)
	}
	return ExitOK
}

// exitCode classifies an error: anything the user can fix is a user
// error, everything else is internal.
func exitCode(err error) int {
	for _, userErr := range []error{
		issuestorage.ErrNotFound,
		issuestorage.ErrAlreadyExists,
		issuestorage.ErrValidation,
		issuestorage.ErrInvalidTransition,
		issuestorage.ErrCycle,
		issuestorage.ErrSelfDependency,
		issuestorage.ErrDuplicateDependency,
		idgen.ErrMaxDepthExceeded,
		workspace.ErrNotFound,
		rpc.ErrVersionMismatch,
	} {
		if errors.Is(err, userErr) {
			return ExitUser
		}
	}
	return ExitInternal
}

// newRootCmd creates the root command with all subcommands.
func newRootCmd(provider *AppProvider) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "braid",
		Short: "A git-backed issue tracker with a dependency graph",
		Long: `Braid is a local-first issue tracker for humans and autonomous agents.
Issues live in a SQLite database under .braid/ and sync through a
line-delimited JSON file committed to git, so every clone carries the
full tracker.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags - these populate the provider config
	rootCmd.PersistentFlags().BoolVar(&provider.JSONOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&provider.WorkspacePath, "path", "", "Path to the workspace root (default: search from cwd)")
	rootCmd.PersistentFlags().BoolVar(&provider.NoDaemon, "no-daemon", false, "Operate directly on the store, never via the daemon")

	// Register all commands
	rootCmd.AddCommand(newInitCmd(provider))
	rootCmd.AddCommand(newCreateCmd(provider))
	rootCmd.AddCommand(newShowCmd(provider))
	rootCmd.AddCommand(newUpdateCmd(provider))
	rootCmd.AddCommand(newDeleteCmd(provider))
	rootCmd.AddCommand(newCloseCmd(provider))
	rootCmd.AddCommand(newReopenCmd(provider))
	rootCmd.AddCommand(newListCmd(provider))
	rootCmd.AddCommand(newReadyCmd(provider))
	rootCmd.AddCommand(newBlockedCmd(provider))
	rootCmd.AddCommand(newDepCmd(provider))
	rootCmd.AddCommand(newTreeCmd(provider))
	rootCmd.AddCommand(newCyclesCmd(provider))
	rootCmd.AddCommand(newChainCmd(provider))
	rootCmd.AddCommand(newExportCmd(provider))
	rootCmd.AddCommand(newImportCmd(provider))
	rootCmd.AddCommand(newDuplicatesCmd(provider))
	rootCmd.AddCommand(newMergeCmd(provider))
	rootCmd.AddCommand(newDoctorCmd(provider))
	rootCmd.AddCommand(newDaemonCmd(provider))
	rootCmd.AddCommand(newSyncCmd(provider))
	rootCmd.AddCommand(newVersionCmd(provider))

	return rootCmd
}
