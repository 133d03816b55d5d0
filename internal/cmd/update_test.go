package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"braid/internal/issuestorage"
)

func TestUpdateFields(t *testing.T) {
	app, store := setupTestApp(t)
	id := mustCreateIssue(t, store, "Old title", nil)

	cmd := newUpdateCmd(NewTestProvider(app))
	cmd.SetArgs([]string{id, "--title", "New title", "--priority", "1", "--assignee", "alice"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Title != "New title" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Priority != issuestorage.PriorityHigh {
		t.Errorf("priority = %v", got.Priority)
	}
	if got.Assignee != "alice" {
		t.Errorf("assignee = %q", got.Assignee)
	}
}

func TestUpdateLabels(t *testing.T) {
	app, store := setupTestApp(t)
	id := mustCreateIssue(t, store, "Labeled", func(i *issuestorage.Issue) {
		i.Labels = []string{"triage"}
	})

	cmd := newUpdateCmd(NewTestProvider(app))
	cmd.SetArgs([]string{id, "--add-label", "backend", "--remove-label", "triage"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(got.Labels) != 1 || got.Labels[0] != "backend" {
		t.Errorf("labels = %v", got.Labels)
	}
}

func TestUpdateInvalidTransition(t *testing.T) {
	app, store := setupTestApp(t)
	id := mustCreateIssue(t, store, "Archived", nil)
	ctx := context.Background()
	for _, st := range []issuestorage.Status{issuestorage.StatusClosed, issuestorage.StatusArchived} {
		st := st
		err := store.Modify(ctx, id, func(issue *issuestorage.Issue) error {
			issue.Status = st
			return nil
		})
		if err != nil {
			t.Fatalf("setup transition to %s failed: %v", st, err)
		}
	}

	cmd := newUpdateCmd(NewTestProvider(app))
	cmd.SetArgs([]string{id, "--status", "in_progress"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected invalid transition error")
	}
}

func TestShow(t *testing.T) {
	app, store := setupTestApp(t)
	out := app.Out.(*bytes.Buffer)
	id := mustCreateIssue(t, store, "Visible issue", func(i *issuestorage.Issue) {
		i.Description = "Some context"
		i.Assignee = "bob"
		i.Labels = []string{"frontend"}
	})
	blocker := mustCreateIssue(t, store, "Blocker", nil)
	if err := store.AddDependency(context.Background(), id, blocker, issuestorage.DepTypeBlocks); err != nil {
		t.Fatalf("add dependency failed: %v", err)
	}

	cmd := newShowCmd(NewTestProvider(app))
	cmd.SetArgs([]string{id})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("show failed: %v", err)
	}

	output := out.String()
	for _, want := range []string{"Visible issue", "Some context", "bob", "frontend", "Blocked by: " + blocker} {
		if !strings.Contains(output, want) {
			t.Errorf("missing %q in output:\n%s", want, output)
		}
	}
}

func TestShowNotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	cmd := newShowCmd(NewTestProvider(app))
	cmd.SetArgs([]string{"br-nope"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected not found error")
	}
}

func TestDeleteRequiresForce(t *testing.T) {
	app, store := setupTestApp(t)
	id := mustCreateIssue(t, store, "Mistake", nil)

	cmd := newDeleteCmd(NewTestProvider(app))
	cmd.SetArgs([]string{id})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected refusal without --force")
	}
	if _, err := store.Get(context.Background(), id); err != nil {
		t.Fatalf("issue should survive: %v", err)
	}

	cmd = newDeleteCmd(NewTestProvider(app))
	cmd.SetArgs([]string{id, "--force"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Get(context.Background(), id); err == nil {
		t.Fatal("issue should be gone")
	}
}
