package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"braid/internal/config"
	"braid/internal/issuestorage"
	"braid/internal/rpc"
	"braid/internal/workspace"
)

func TestInitCreatesWorkspace(t *testing.T) {
	dir := t.TempDir()
	out := &bytes.Buffer{}
	provider := &AppProvider{Out: out, Err: &bytes.Buffer{}}

	cmd := newInitCmd(provider)
	cmd.SetArgs([]string{dir})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	if !strings.Contains(out.String(), "Initialized braid workspace") {
		t.Errorf("output = %q", out.String())
	}
	for _, name := range []string{"config.yml", "braid.db"} {
		if _, err := os.Stat(filepath.Join(dir, ".braid", name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestInitCustomPrefix(t *testing.T) {
	dir := t.TempDir()
	provider := &AppProvider{Out: &bytes.Buffer{}, Err: &bytes.Buffer{}}

	cmd := newInitCmd(provider)
	cmd.SetArgs([]string{dir, "--prefix", "proj-"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	cfg, err := config.Load(filepath.Join(dir, ".braid", "config.yml"))
	if err != nil {
		t.Fatalf("load config failed: %v", err)
	}
	if cfg.ID.Prefix != "proj-" {
		t.Errorf("prefix = %q", cfg.ID.Prefix)
	}
}

func TestInitIdempotent(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		provider := &AppProvider{Out: &bytes.Buffer{}, Err: &bytes.Buffer{}}
		cmd := newInitCmd(provider)
		cmd.SetArgs([]string{dir})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("init run %d failed: %v", i+1, err)
		}
	}
}

func TestVersionOutsideWorkspace(t *testing.T) {
	out := &bytes.Buffer{}
	provider := &AppProvider{
		WorkspacePath: t.TempDir(),
		Out:           out,
		Err:           &bytes.Buffer{},
	}

	cmd := newVersionCmd(provider)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out.String(), "braid version "+Version) {
		t.Errorf("output = %q", out.String())
	}
}

func TestVersionInWorkspaceNoDaemon(t *testing.T) {
	app, _ := setupTestApp(t)
	out := app.Out.(*bytes.Buffer)

	cmd := newVersionCmd(NewTestProvider(app))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out.String(), "braid version "+Version) {
		t.Errorf("output = %q", out.String())
	}
}

func TestExitCodeClassification(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{issuestorage.ErrNotFound, ExitUser},
		{fmt.Errorf("wrapped: %w", issuestorage.ErrCycle), ExitUser},
		{issuestorage.ErrInvalidTransition, ExitUser},
		{workspace.ErrNotFound, ExitUser},
		{rpc.ErrVersionMismatch, ExitUser},
		{os.ErrPermission, ExitInternal},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
