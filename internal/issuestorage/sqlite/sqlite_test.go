package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"braid/internal/issuestorage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "braid.db"), "br")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestContract(t *testing.T) {
	issuestorage.RunContractTests(t, func() issuestorage.Store {
		return newTestStore(t)
	})
}

func TestDoctorCleanStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer s.Close()

	epic := &issuestorage.Issue{Title: "Epic", Type: issuestorage.TypeEpic}
	epicID, err := s.Create(ctx, epic)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	task := &issuestorage.Issue{Title: "Task", Type: issuestorage.TypeTask, EpicID: epicID}
	if _, err := s.Create(ctx, task); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	findings, err := s.Doctor(ctx, false)
	if err != nil {
		t.Fatalf("Doctor failed: %v", err)
	}
	if len(findings) != 0 {
		t.Errorf("Doctor on clean store reported: %v", findings)
	}
}

func TestDoctorFixesDanglingEpic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer s.Close()

	id, err := s.Create(ctx, &issuestorage.Issue{Title: "Orphan", Type: issuestorage.TypeTask})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	// Corrupt the row directly, bypassing validation.
	if _, err := s.db.ExecContext(ctx, `UPDATE issues SET epic_id = 'br-gone' WHERE id = ?;`, id); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	findings, err := s.Doctor(ctx, false)
	if err != nil {
		t.Fatalf("Doctor failed: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("Doctor findings: got %v, want 1 dangling epic", findings)
	}

	if _, err := s.Doctor(ctx, true); err != nil {
		t.Fatalf("Doctor fix failed: %v", err)
	}
	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.EpicID != "" {
		t.Errorf("epic_id not cleared by fix: %q", got.EpicID)
	}
}

func TestReopenDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "braid.db")

	s, err := New(path, "br")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	id, err := s.Create(ctx, &issuestorage.Issue{Title: "Persisted", Type: issuestorage.TypeTask})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2, err := New(path, "br")
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()
	if err := s2.Init(ctx); err != nil {
		t.Fatalf("Init after reopen failed: %v", err)
	}
	got, err := s2.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if got.Title != "Persisted" {
		t.Errorf("Title after reopen: got %q", got.Title)
	}
}
