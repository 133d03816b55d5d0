package gitops

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func initTestRepo(t *testing.T) *Repo {
	t.Helper()
	dir := t.TempDir()
	for _, args := range [][]string{
		{"init"},
		{"config", "user.name", "Test User"},
		{"config", "user.email", "test@example.com"},
		{"config", "commit.gpgsign", "false"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v (%s)", args, err, out)
		}
	}
	return New(dir)
}

func TestIsRepo(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t)
	if !r.IsRepo(ctx) {
		t.Error("expected IsRepo true in initialized repo")
	}
	if New(t.TempDir()).IsRepo(ctx) {
		t.Error("expected IsRepo false outside a repo")
	}
}

func TestCommitPath(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t)
	file := filepath.Join(r.Dir, "issues.jsonl")
	if err := os.WriteFile(file, []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	committed, err := r.CommitPath(ctx, "issues.jsonl", "sync: export issues")
	if err != nil {
		t.Fatalf("CommitPath failed: %v", err)
	}
	if !committed {
		t.Error("expected a commit for a new file")
	}

	// Unchanged file: no commit.
	committed, err = r.CommitPath(ctx, "issues.jsonl", "sync: export issues")
	if err != nil {
		t.Fatalf("CommitPath failed: %v", err)
	}
	if committed {
		t.Error("expected no commit when path is unchanged")
	}

	if err := os.WriteFile(file, []byte("{\"id\":\"br-1a2b\"}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	committed, err = r.CommitPath(ctx, "issues.jsonl", "sync: export issues")
	if err != nil {
		t.Fatalf("CommitPath failed: %v", err)
	}
	if !committed {
		t.Error("expected a commit for a modified file")
	}
}

func TestPullPushWithoutRemote(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t)
	if err := r.Pull(ctx); err != ErrNoRemote {
		t.Errorf("Pull without remote: got %v, want ErrNoRemote", err)
	}
	if err := r.Push(ctx); err != ErrNoRemote {
		t.Errorf("Push without remote: got %v, want ErrNoRemote", err)
	}
}
