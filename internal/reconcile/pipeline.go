package reconcile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"braid/internal/gitops"
	"braid/internal/issuestorage"
)

// Step names one stage of the reconciliation cycle.
type Step string

const (
	StepExport Step = "export"
	StepCommit Step = "commit"
	StepPull   Step = "pull"
	StepImport Step = "import"
	StepPush   Step = "push"
)

// StepError wraps a failure with the pipeline step it occurred in.
// A failed step does not roll back steps already completed; the cycle
// is retried as a whole on the next tick.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("sync %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Pipeline runs the export/commit/pull/import/push cycle for one
// workspace.
type Pipeline struct {
	Store issuestorage.Store
	Repo  *gitops.Repo
	// InterchangePath is the absolute path of the interchange file,
	// inside Repo.Dir.
	InterchangePath string
}

// SyncResult reports what one cycle did.
type SyncResult struct {
	Committed bool          `json:"committed"`
	Pulled    bool          `json:"pulled"`
	Pushed    bool          `json:"pushed"`
	Import    *ImportResult `json:"import,omitempty"`
}

// Run executes one full reconciliation cycle. Without a git repository
// only the export step runs; without a remote, pull and push are
// skipped. Any failing step aborts the cycle with a StepError naming it.
func (p *Pipeline) Run(ctx context.Context) (*SyncResult, error) {
	result := &SyncResult{}

	if err := Export(ctx, p.Store, p.InterchangePath); err != nil {
		return result, &StepError{Step: StepExport, Err: err}
	}

	if p.Repo == nil || !p.Repo.IsRepo(ctx) {
		return result, nil
	}
	rel, err := filepath.Rel(p.Repo.Dir, p.InterchangePath)
	if err != nil {
		return result, &StepError{Step: StepCommit, Err: err}
	}

	committed, err := p.Repo.CommitPath(ctx, rel, "braid: sync issues")
	if err != nil {
		return result, &StepError{Step: StepCommit, Err: err}
	}
	result.Committed = committed

	switch err := p.Repo.Pull(ctx); {
	case err == nil:
		result.Pulled = true
	case errors.Is(err, gitops.ErrNoRemote):
		// Local-only repository: reconcile against the working tree.
	default:
		return result, &StepError{Step: StepPull, Err: err}
	}

	imported, err := Import(ctx, p.Store, p.InterchangePath)
	if err != nil {
		return result, &StepError{Step: StepImport, Err: err}
	}
	result.Import = imported

	if result.Pulled {
		if err := p.Repo.Push(ctx); err != nil && !errors.Is(err, gitops.ErrNoRemote) {
			return result, &StepError{Step: StepPush, Err: err}
		}
		result.Pushed = true
	}
	return result, nil
}
