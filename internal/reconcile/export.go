// Package reconcile serializes the issue graph to the line-delimited
// interchange file and re-imports it, resolving the differences that
// accumulate when multiple clones edit the same workspace.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"braid/internal/issuestorage"
)

// Export writes every issue, then every dependency edge, one JSON object
// per line, to path. Issues are ordered by ID and edges by (from, to,
// type) so unchanged graphs export byte-identically. The file is written
// to a temp file and renamed into place.
func Export(ctx context.Context, store issuestorage.Store, path string) error {
	issues, err := store.List(ctx, nil)
	if err != nil {
		return fmt.Errorf("list issues: %w", err)
	}
	deps, err := store.ListDependencies(ctx)
	if err != nil {
		return fmt.Errorf("list dependencies: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	enc := json.NewEncoder(tmp)
	for _, issue := range issues {
		if err := enc.Encode(issue); err != nil {
			return fmt.Errorf("encode issue %s: %w", issue.ID, err)
		}
	}
	for _, dep := range deps {
		// parent-child edges are derived from epic_id and re-derived on
		// import; writing them too would double the hierarchy's source
		// of truth in the file.
		if dep.Type == issuestorage.DepTypeParentChild {
			continue
		}
		if err := enc.Encode(dep); err != nil {
			return fmt.Errorf("encode dependency %s->%s: %w", dep.FromID, dep.ToID, err)
		}
	}

	if err := tmp.Close(); err != nil {
		return err
	}
	// CreateTemp opens 0600; the interchange file is git-tracked and
	// should carry conventional permissions.
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
