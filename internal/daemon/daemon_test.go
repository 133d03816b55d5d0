package daemon

import (
	"context"
	"io"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"braid/internal/issuestorage"
	"braid/internal/issuestorage/sqlite"
	"braid/internal/rpc"
	"braid/internal/workspace"
)

func startTestDaemon(t *testing.T) (*workspace.Workspace, issuestorage.Store, <-chan error) {
	t.Helper()
	ws, err := workspace.Init(t.TempDir())
	require.NoError(t, err)

	store, err := sqlite.New(ws.DatabasePath(), "br-")
	require.NoError(t, err)
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { store.Close() })

	d := &Daemon{
		WS:        ws,
		Store:     store,
		Version:   "test",
		Interval:  100 * time.Millisecond,
		LogWriter: io.Discard,
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	client := rpc.NewClient(ws.SocketPath(), "test")
	require.Eventually(t, func() bool {
		_, err := client.Health(context.Background())
		return err == nil
	}, 3*time.Second, 20*time.Millisecond, "daemon did not come up")

	return ws, store, done
}

func TestDaemonHealth(t *testing.T) {
	ws, _, _ := startTestDaemon(t)
	client := rpc.NewClient(ws.SocketPath(), "test")

	info, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), info.PID)
	assert.Equal(t, "test", info.Version)
	assert.NotEmpty(t, info.InstanceID)
	assert.Equal(t, ws.Root, info.Workspace)
}

func TestDaemonVersionMismatch(t *testing.T) {
	ws, _, _ := startTestDaemon(t)
	stale := rpc.NewClient(ws.SocketPath(), "older")

	_, err := stale.Health(context.Background())
	assert.ErrorIs(t, err, rpc.ErrVersionMismatch)

	// The version method still answers, so the client can say what runs.
	v, err := stale.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", v)
}

func TestDaemonShutdownFromStaleClient(t *testing.T) {
	ws, _, done := startTestDaemon(t)
	stale := rpc.NewClient(ws.SocketPath(), "newer")

	// An upgraded CLI must be able to replace a stale daemon.
	require.NoError(t, stale.Shutdown(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not exit after cross-version shutdown")
	}
}

func TestConnDeadlinePerMethod(t *testing.T) {
	// A sync request must be allowed to outlive the short exchange
	// deadline, or a slow git pull makes the reply write fail and the
	// client falls back to a concurrent direct cycle.
	assert.Equal(t, rpc.SyncTimeout, connDeadline(rpc.MethodSync))
	assert.Equal(t, connTimeout, connDeadline(rpc.MethodHealth))
	assert.Equal(t, connTimeout, connDeadline(rpc.MethodShutdown))
	assert.Equal(t, connTimeout, connDeadline(rpc.MethodVersion))
	assert.Equal(t, connTimeout, connDeadline("bogus"))
}

func TestDaemonUnknownMethod(t *testing.T) {
	ws, _, _ := startTestDaemon(t)
	client := rpc.NewClient(ws.SocketPath(), "test")

	err := client.Call(context.Background(), "bogus", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown method")
}

func TestDaemonManualSyncExports(t *testing.T) {
	ws, store, _ := startTestDaemon(t)
	client := rpc.NewClient(ws.SocketPath(), "test")

	_, err := store.Create(context.Background(), &issuestorage.Issue{Title: "tracked work"})
	require.NoError(t, err)

	require.NoError(t, client.Sync(context.Background()))
	_, err = os.Stat(ws.InterchangePath())
	assert.NoError(t, err)
}

func TestDaemonExclusiveLockSuppressesSync(t *testing.T) {
	ws, store, _ := startTestDaemon(t)
	client := rpc.NewClient(ws.SocketPath(), "test")

	_, err := store.Create(context.Background(), &issuestorage.Issue{Title: "locked out"})
	require.NoError(t, err)

	require.NoError(t, AcquireExclusiveLock(ws.ExclusiveLockPath()))
	require.NoError(t, client.Sync(context.Background()))
	_, err = os.Stat(ws.InterchangePath())
	assert.True(t, os.IsNotExist(err), "sync ran despite exclusive lock")

	require.NoError(t, ReleaseExclusiveLock(ws.ExclusiveLockPath()))
	require.NoError(t, client.Sync(context.Background()))
	_, err = os.Stat(ws.InterchangePath())
	assert.NoError(t, err)
}

func TestDaemonBackgroundSyncPicksUpChanges(t *testing.T) {
	ws, store, _ := startTestDaemon(t)

	_, err := store.Create(context.Background(), &issuestorage.Issue{Title: "debounced work"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := os.Stat(ws.InterchangePath())
		return err == nil
	}, 5*time.Second, 50*time.Millisecond, "timer-driven sync never exported")
}

func TestDaemonShutdown(t *testing.T) {
	ws, _, done := startTestDaemon(t)
	client := rpc.NewClient(ws.SocketPath(), "test")

	require.NoError(t, client.Shutdown(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not exit after shutdown request")
	}

	_, err := client.Health(context.Background())
	assert.ErrorIs(t, err, rpc.ErrDaemonUnreachable)
}

func TestDaemonRefusesSecondInstance(t *testing.T) {
	ws, store, _ := startTestDaemon(t)

	second := &Daemon{WS: ws, Store: store, Version: "test", LogWriter: io.Discard}
	err := second.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already")
}

func TestDebouncerCoalesces(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(50*time.Millisecond, func() { fired.Add(1) })
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 10*time.Millisecond)

	// Quiet period passed; a new trigger fires again.
	d.Trigger()
	assert.Eventually(t, func() bool { return fired.Load() == 2 }, time.Second, 10*time.Millisecond)
}

func TestDebouncerStop(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { fired.Add(1) })
	d.Trigger()
	d.Stop()
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, fired.Load())
}
