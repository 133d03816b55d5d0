package daemon

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deadPID returns the pid of a process that has already exited.
func deadPID(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("true")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	require.NoError(t, cmd.Wait())
	return pid
}

func TestLockActiveLivePID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.lock")
	require.NoError(t, AcquireExclusiveLock(path))
	assert.True(t, LockActive(path))

	require.NoError(t, ReleaseExclusiveLock(path))
	assert.False(t, LockActive(path))
	// Releasing twice is fine.
	assert.NoError(t, ReleaseExclusiveLock(path))
}

func TestLockStaleHolderRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.lock")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(deadPID(t))+"\n"), 0644))

	assert.False(t, LockActive(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "stale lock file should be removed")
}

func TestLockWithoutPIDStaysActive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.lock")
	// A bare touch has no holder to probe; only its owner may remove it.
	require.NoError(t, os.WriteFile(path, []byte{}, 0644))
	assert.True(t, LockActive(path))
}

func TestLockWithoutPIDExpires(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.lock")
	require.NoError(t, os.WriteFile(path, []byte{}, 0644))
	old := time.Now().Add(-2 * maxLockAge)
	require.NoError(t, os.Chtimes(path, old, old))

	assert.False(t, LockActive(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "expired lock file should be removed")
}

func TestAcquireExclusiveLockHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.lock")
	require.NoError(t, AcquireExclusiveLock(path))
	assert.Error(t, AcquireExclusiveLock(path))
}

func TestPIDFileLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")

	release, err := acquirePIDFile(path, "instance-1", "test")
	require.NoError(t, err)

	info, err := ReadPIDFile(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), info.PID)
	assert.Equal(t, "instance-1", info.InstanceID)

	// A live holder blocks a second acquire.
	_, err = acquirePIDFile(path, "instance-2", "test")
	assert.Error(t, err)

	release()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestPIDFileStaleReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	stale, err := json.Marshal(PIDInfo{PID: deadPID(t), InstanceID: "gone", Version: "old"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, stale, 0644))

	release, err := acquirePIDFile(path, "fresh", "test")
	require.NoError(t, err)
	defer release()

	info, err := ReadPIDFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fresh", info.InstanceID)
}
