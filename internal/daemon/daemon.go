// Package daemon implements the per-workspace background process: a
// single event loop that watches the store for changes, debounces them,
// drives the reconciliation pipeline against git, and answers IPC
// requests on a unix socket.
package daemon

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"braid/internal/gitops"
	"braid/internal/issuestorage"
	"braid/internal/reconcile"
	"braid/internal/rpc"
	"braid/internal/workspace"
)

// DebounceDelay is how long the store must stay quiet after a detected
// change before a sync cycle starts.
const DebounceDelay = 500 * time.Millisecond

// maxBackoff caps the retry delay after consecutive sync failures.
const maxBackoff = 5 * time.Minute

// Daemon is one workspace's sync daemon.
type Daemon struct {
	WS       *workspace.Workspace
	Store    issuestorage.Store
	Version  string
	Interval time.Duration
	// LogWriter receives the daemon log; defaults to the workspace log
	// file.
	LogWriter io.Writer

	instanceID string
	startedAt  time.Time
	logger     *log.Logger
	pipeline   *reconcile.Pipeline

	// syncMu serializes whole reconciliation cycles; no IPC request is
	// served concurrently with one.
	syncMu sync.Mutex

	stateMu        sync.Mutex
	lastExportHash string
	pending        bool
	lastSyncAt     time.Time
	lastSyncErr    string
	failCount      int
	retryAfter     time.Time

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// Run starts the daemon and blocks until shutdown. It refuses to start
// when another live daemon holds the workspace's PID file.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if d.Interval <= 0 {
		d.Interval = 5 * time.Second
	}
	d.instanceID = uuid.NewString()
	d.startedAt = time.Now().UTC()
	d.shutdownCh = make(chan struct{})
	d.pipeline = &reconcile.Pipeline{
		Store:           d.Store,
		Repo:            gitops.New(d.WS.Root),
		InterchangePath: d.WS.InterchangePath(),
	}

	if d.LogWriter == nil {
		f, err := os.OpenFile(d.WS.LogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open log: %w", err)
		}
		defer f.Close()
		d.LogWriter = f
	}
	d.logger = log.New(d.LogWriter, "", log.LstdFlags)

	release, err := acquirePIDFile(d.WS.PIDPath(), d.instanceID, d.Version)
	if err != nil {
		return err
	}
	defer release()

	socketPath := d.WS.SocketPath()
	if err := removeStaleSocket(socketPath); err != nil {
		return err
	}
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen %s: %w", socketPath, err)
	}
	defer func() {
		ln.Close()
		os.Remove(socketPath)
	}()

	d.logger.Printf("daemon %s starting: pid=%d workspace=%s version=%s interval=%s",
		d.instanceID, os.Getpid(), d.WS.Root, d.Version, d.Interval)

	go d.serve(ctx, ln)

	// Seed the change detector so a freshly started daemon does not
	// immediately sync an unchanged workspace.
	if digest, err := graphDigest(ctx, d.Store); err == nil {
		d.stateMu.Lock()
		d.lastExportHash = digest
		d.stateMu.Unlock()
	}

	debounced := make(chan struct{}, 1)
	debouncer := NewDebouncer(DebounceDelay, func() {
		select {
		case debounced <- struct{}{}:
		default:
		}
	})
	defer debouncer.Stop()

	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Printf("daemon stopping: signal")
			return nil
		case <-d.shutdownCh:
			d.logger.Printf("daemon stopping: shutdown request")
			return nil
		case <-ticker.C:
			if d.detectChange(ctx) {
				debouncer.Trigger()
			} else {
				// No fresh writes; flush anything still pending,
				// including cycles that failed last time.
				d.syncIfPending(ctx)
			}
		case <-debounced:
			d.syncIfPending(ctx)
		}
	}
}

// detectChange compares the store's current digest with the last export
// and arms the pending flag on drift. Returns true only for fresh
// drift, not for an already-armed flag.
func (d *Daemon) detectChange(ctx context.Context) bool {
	digest, err := graphDigest(ctx, d.Store)
	if err != nil {
		d.logger.Printf("change detection failed: %v", err)
		return false
	}
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if digest == d.lastExportHash {
		return false
	}
	d.lastExportHash = digest
	d.pending = true
	return true
}

func (d *Daemon) syncIfPending(ctx context.Context) {
	d.stateMu.Lock()
	pending := d.pending
	waiting := time.Now().Before(d.retryAfter)
	d.stateMu.Unlock()
	if !pending || waiting {
		return
	}
	if err := d.runSync(ctx); err != nil {
		d.logger.Printf("sync failed: %v", err)
	}
}

// runSync executes one reconciliation cycle under the sync mutex. An
// active exclusive lock suppresses the cycle without error.
func (d *Daemon) runSync(ctx context.Context) error {
	d.syncMu.Lock()
	defer d.syncMu.Unlock()

	if LockActive(d.WS.ExclusiveLockPath()) {
		d.logger.Printf("sync suppressed: exclusive lock held")
		return nil
	}

	result, err := d.pipeline.Run(ctx)

	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	d.lastSyncAt = time.Now().UTC()
	if err != nil {
		// Failed cycles retry with exponential backoff; the pending flag
		// stays armed.
		d.lastSyncErr = err.Error()
		d.failCount++
		delay := d.Interval << uint(d.failCount)
		if delay > maxBackoff || delay <= 0 {
			delay = maxBackoff
		}
		d.retryAfter = time.Now().Add(delay)
		return err
	}
	d.lastSyncErr = ""
	d.pending = false
	d.failCount = 0
	d.retryAfter = time.Time{}
	if digest, derr := graphDigest(ctx, d.Store); derr == nil {
		d.lastExportHash = digest
	}
	if result.Import != nil && len(result.Import.Warnings) > 0 {
		for _, w := range result.Import.Warnings {
			d.logger.Printf("import warning: %s", w)
		}
	}
	d.logger.Printf("sync done: committed=%v pulled=%v pushed=%v", result.Committed, result.Pulled, result.Pushed)
	return nil
}

func (d *Daemon) requestShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdownCh) })
}

func (d *Daemon) health() rpc.HealthInfo {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return rpc.HealthInfo{
		PID:           os.Getpid(),
		InstanceID:    d.instanceID,
		Version:       d.Version,
		Workspace:     d.WS.Root,
		StartedAt:     d.startedAt,
		PendingSync:   d.pending,
		LastSyncAt:    d.lastSyncAt,
		LastSyncError: d.lastSyncErr,
	}
}

// graphDigest summarizes the store contents for change detection:
// issue IDs with update stamps plus every edge.
func graphDigest(ctx context.Context, store issuestorage.Store) (string, error) {
	issues, err := store.List(ctx, nil)
	if err != nil {
		return "", err
	}
	deps, err := store.ListDependencies(ctx)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	for _, issue := range issues {
		fmt.Fprintf(h, "%s|%s|%s|%d\n", issue.ID, issue.ContentHash, issue.Status, issue.UpdatedAt.UnixNano())
	}
	for _, dep := range deps {
		fmt.Fprintf(h, "%s>%s|%s\n", dep.FromID, dep.ToID, dep.Type)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func removeStaleSocket(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	// Something is listening only if a dial succeeds.
	conn, err := net.DialTimeout("unix", path, time.Second)
	if err == nil {
		conn.Close()
		return fmt.Errorf("daemon already listening on %s", path)
	}
	return os.Remove(path)
}
