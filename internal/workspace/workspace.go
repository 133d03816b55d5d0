// Package workspace locates the .braid metadata directory and derives the
// well-known paths inside it.
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"braid/internal/config"
)

// MetaDirName is the workspace metadata directory.
const MetaDirName = ".braid"

// ErrNotFound is returned when no workspace exists at or above a directory.
var ErrNotFound = errors.New("no .braid directory found")

// Workspace holds the resolved paths for one workspace root.
type Workspace struct {
	// Root is the directory containing the .braid metadata directory.
	Root string
	// MetaDir is Root/.braid.
	MetaDir string
}

// Find walks up from startDir looking for a .braid directory.
// BRAID_DIR overrides discovery entirely.
func Find(startDir string) (*Workspace, error) {
	if override := os.Getenv(config.EnvBraidDir); override != "" {
		info, err := os.Stat(override)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%s: %q is not a directory", config.EnvBraidDir, override)
		}
		return &Workspace{Root: filepath.Dir(override), MetaDir: override}, nil
	}

	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		meta := filepath.Join(dir, MetaDirName)
		if info, err := os.Stat(meta); err == nil && info.IsDir() {
			return &Workspace{Root: dir, MetaDir: meta}, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, fmt.Errorf("searched from %s upward: %w", startDir, ErrNotFound)
		}
		dir = parent
	}
}

// Init creates the metadata directory under root and a default config file
// if none exists. Reinitializing an existing workspace is a no-op.
func Init(root string) (*Workspace, error) {
	meta := filepath.Join(root, MetaDirName)
	if err := os.MkdirAll(meta, 0755); err != nil {
		return nil, fmt.Errorf("create %s: %w", meta, err)
	}
	ws := &Workspace{Root: root, MetaDir: meta}
	if _, err := os.Stat(ws.ConfigPath()); os.IsNotExist(err) {
		if err := config.WriteDefault(ws.ConfigPath()); err != nil {
			return nil, err
		}
	}
	return ws, nil
}

// ConfigPath is the workspace configuration file.
func (ws *Workspace) ConfigPath() string {
	return filepath.Join(ws.MetaDir, "config.yml")
}

// DatabasePath is the canonical SQLite database location.
func (ws *Workspace) DatabasePath() string {
	return filepath.Join(ws.MetaDir, "braid.db")
}

// InterchangePath is the line-delimited JSON interchange file tracked in
// git alongside the workspace.
func (ws *Workspace) InterchangePath() string {
	return filepath.Join(ws.MetaDir, "issues.jsonl")
}

// PIDPath is the daemon PID file.
func (ws *Workspace) PIDPath() string {
	return filepath.Join(ws.MetaDir, "daemon.pid")
}

// LogPath is the daemon log file.
func (ws *Workspace) LogPath() string {
	return filepath.Join(ws.MetaDir, "daemon.log")
}

// ExclusiveLockPath is the external signal file that suppresses
// daemon-driven synchronization while present.
func (ws *Workspace) ExclusiveLockPath() string {
	return filepath.Join(ws.MetaDir, "sync.lock")
}

// SocketPath derives the daemon socket path deterministically from the
// workspace root. The socket lives under the system temp dir rather than
// the metadata dir to keep the path short: unix socket paths have a tight
// kernel limit (~104 bytes) that deep workspace trees would overflow.
func (ws *Workspace) SocketPath() string {
	sum := sha256.Sum256([]byte(ws.Root))
	name := fmt.Sprintf("braid-%s.sock", hex.EncodeToString(sum[:])[:12])
	return filepath.Join(socketDir(), name)
}

func socketDir() string {
	if runtime := os.Getenv("XDG_RUNTIME_DIR"); runtime != "" {
		return runtime
	}
	return os.TempDir()
}
