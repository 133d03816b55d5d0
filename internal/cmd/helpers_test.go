package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"braid/internal/config"
	"braid/internal/issuestorage"
	"braid/internal/issuestorage/sqlite"
	"braid/internal/workspace"
)

func setupTestApp(t *testing.T) (*App, issuestorage.Store) {
	t.Helper()
	ws, err := workspace.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init workspace: %v", err)
	}
	store, err := sqlite.New(ws.DatabasePath(), "br-")
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to init storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.Sync.AutoStart = false

	return &App{
		Store:    store,
		WS:       ws,
		Config:   cfg,
		Out:      &bytes.Buffer{},
		Err:      &bytes.Buffer{},
		NoDaemon: true,
	}, store
}

func mustCreateIssue(t *testing.T, store issuestorage.Store, title string, tweak func(*issuestorage.Issue)) string {
	t.Helper()
	issue := &issuestorage.Issue{
		Title:    title,
		Status:   issuestorage.StatusOpen,
		Priority: issuestorage.PriorityMedium,
		Type:     issuestorage.TypeTask,
	}
	if tweak != nil {
		tweak(issue)
	}
	id, err := store.Create(context.Background(), issue)
	if err != nil {
		t.Fatalf("failed to create issue %q: %v", title, err)
	}
	return id
}

// extractCreatedID extracts the issue ID from create command output.
// The output format is:
//
//	✓ Created issue: br-xxxx
//	  Title: ...
func extractCreatedID(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "Created issue:") {
			parts := strings.Split(line, "Created issue:")
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1])
			}
		}
	}
	return ""
}
