package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// PIDInfo is the JSON contents of the daemon PID file.
type PIDInfo struct {
	PID        int    `json:"pid"`
	InstanceID string `json:"instance_id"`
	Version    string `json:"version"`
}

// ReadPIDFile loads the PID file at path.
func ReadPIDFile(path string) (*PIDInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info PIDInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("malformed pid file %s: %w", path, err)
	}
	return &info, nil
}

// acquirePIDFile writes the PID file for this process, refusing when a
// live daemon already owns it. A PID file whose process is gone is
// treated as stale and replaced. Returns a release func that removes
// the file.
func acquirePIDFile(path, instanceID, version string) (func(), error) {
	if existing, err := ReadPIDFile(path); err == nil {
		if ProcessAlive(existing.PID) {
			return nil, fmt.Errorf("daemon already running: pid %d", existing.PID)
		}
		os.Remove(path)
	} else if !errors.Is(err, os.ErrNotExist) {
		// Unreadable file: replace it rather than deadlock the
		// workspace.
		os.Remove(path)
	}

	data, err := json.Marshal(PIDInfo{PID: os.Getpid(), InstanceID: instanceID, Version: version})
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	return func() { os.Remove(path) }, nil
}

// ProcessAlive probes whether pid refers to a live process.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	// Signal 0 performs the permission/existence check without
	// delivering anything.
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// maxLockAge bounds how long an exclusive lock without a live holder
// PID keeps suppressing syncs.
const maxLockAge = time.Hour

// LockActive reports whether the exclusive-lock file at path currently
// suppresses syncing. A lock naming a dead holder PID is stale: it is
// removed and reported inactive. A lock with no parseable PID stays
// active until its owner deletes it or it outlives maxLockAge.
func LockActive(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		if fi, serr := os.Stat(path); serr == nil && time.Since(fi.ModTime()) > maxLockAge {
			os.Remove(path)
			return false
		}
		return true
	}
	if ProcessAlive(pid) {
		return true
	}
	os.Remove(path)
	return false
}

// AcquireExclusiveLock writes this process's PID to the lock file,
// claiming manual control of syncing.
func AcquireExclusiveLock(path string) error {
	if LockActive(path) {
		return fmt.Errorf("exclusive lock already held: %s", path)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)
}

// ReleaseExclusiveLock removes the lock file. Idempotent.
func ReleaseExclusiveLock(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
