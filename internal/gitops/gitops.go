// Package gitops shells out to the git CLI for the synchronization
// pipeline. All commands run with the workspace root as their working
// directory.
package gitops

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNoRemote is returned when the repository has no configured remote.
var ErrNoRemote = errors.New("no git remote configured")

// Repo wraps git operations on a single working tree.
type Repo struct {
	// Dir is the working tree root.
	Dir string
}

func New(dir string) *Repo {
	return &Repo{Dir: dir}
}

func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w (%s)", args[0], err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// IsRepo reports whether Dir is inside a git working tree.
func (r *Repo) IsRepo(ctx context.Context) bool {
	out, err := r.run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// HasRemote reports whether any remote is configured.
func (r *Repo) HasRemote(ctx context.Context) (bool, error) {
	out, err := r.run(ctx, "remote")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// CurrentBranch returns the checked-out branch name.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	return r.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// HasChanges reports whether path differs from HEAD (staged or not).
// An untracked path counts as changed.
func (r *Repo) HasChanges(ctx context.Context, path string) (bool, error) {
	out, err := r.run(ctx, "status", "--porcelain", "--", path)
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// CommitPath stages path and commits it with message. Returns false
// without committing when the path has no changes.
func (r *Repo) CommitPath(ctx context.Context, path, message string) (bool, error) {
	changed, err := r.HasChanges(ctx, path)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	if _, err := r.run(ctx, "add", "--", path); err != nil {
		return false, err
	}
	if _, err := r.run(ctx, "commit", "-m", message, "--", path); err != nil {
		return false, err
	}
	return true, nil
}

// Pull rebases the current branch onto its upstream. Returns ErrNoRemote
// when the repository has no remote to pull from.
func (r *Repo) Pull(ctx context.Context) error {
	hasRemote, err := r.HasRemote(ctx)
	if err != nil {
		return err
	}
	if !hasRemote {
		return ErrNoRemote
	}
	_, err = r.run(ctx, "pull", "--rebase", "--autostash")
	return err
}

// Push publishes the current branch. Returns ErrNoRemote when the
// repository has no remote.
func (r *Repo) Push(ctx context.Context) error {
	hasRemote, err := r.HasRemote(ctx)
	if err != nil {
		return err
	}
	if !hasRemote {
		return ErrNoRemote
	}
	_, err = r.run(ctx, "push")
	return err
}
