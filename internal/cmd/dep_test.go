package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"braid/internal/issuestorage"
)

func TestDepAddAndList(t *testing.T) {
	app, store := setupTestApp(t)
	out := app.Out.(*bytes.Buffer)
	a := mustCreateIssue(t, store, "Needs B", nil)
	b := mustCreateIssue(t, store, "Blocker", nil)

	addCmd := newDepCmd(NewTestProvider(app))
	addCmd.SetArgs([]string{"add", a, b})
	if err := addCmd.Execute(); err != nil {
		t.Fatalf("dep add failed: %v", err)
	}
	if !strings.Contains(out.String(), a+" now depends on "+b) {
		t.Errorf("output = %q", out.String())
	}
	out.Reset()

	listCmd := newDepCmd(NewTestProvider(app))
	listCmd.SetArgs([]string{"list"})
	if err := listCmd.Execute(); err != nil {
		t.Fatalf("dep list failed: %v", err)
	}
	if !strings.Contains(out.String(), a+" -> "+b+" (blocks)") {
		t.Errorf("output = %q", out.String())
	}
}

func TestDepAddRejectsCycle(t *testing.T) {
	app, store := setupTestApp(t)
	a := mustCreateIssue(t, store, "First", nil)
	b := mustCreateIssue(t, store, "Second", nil)
	if err := store.AddDependency(context.Background(), a, b, issuestorage.DepTypeBlocks); err != nil {
		t.Fatalf("add dependency failed: %v", err)
	}

	cmd := newDepCmd(NewTestProvider(app))
	cmd.SetArgs([]string{"add", b, a})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected cycle to be rejected")
	}
}

func TestDepAddInvalidType(t *testing.T) {
	app, store := setupTestApp(t)
	a := mustCreateIssue(t, store, "First", nil)
	b := mustCreateIssue(t, store, "Second", nil)

	cmd := newDepCmd(NewTestProvider(app))
	cmd.SetArgs([]string{"add", a, b, "--type", "mystery"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected invalid type error")
	}
}

func TestDepRm(t *testing.T) {
	app, store := setupTestApp(t)
	out := app.Out.(*bytes.Buffer)
	a := mustCreateIssue(t, store, "First", nil)
	b := mustCreateIssue(t, store, "Second", nil)
	if err := store.AddDependency(context.Background(), a, b, issuestorage.DepTypeBlocks); err != nil {
		t.Fatalf("add dependency failed: %v", err)
	}

	cmd := newDepCmd(NewTestProvider(app))
	cmd.SetArgs([]string{"rm", a, b})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("dep rm failed: %v", err)
	}
	if !strings.Contains(out.String(), "Removed "+a+" -> "+b) {
		t.Errorf("output = %q", out.String())
	}

	deps, err := store.ListDependencies(context.Background())
	if err != nil {
		t.Fatalf("list dependencies failed: %v", err)
	}
	if len(deps) != 0 {
		t.Errorf("expected no edges, got %+v", deps)
	}
}

func TestReadyAndBlocked(t *testing.T) {
	app, store := setupTestApp(t)
	out := app.Out.(*bytes.Buffer)
	free := mustCreateIssue(t, store, "No blockers", func(i *issuestorage.Issue) {
		i.Priority = issuestorage.PriorityHigh
	})
	gated := mustCreateIssue(t, store, "Waiting on blocker", nil)
	blocker := mustCreateIssue(t, store, "The blocker", nil)
	if err := store.AddDependency(context.Background(), gated, blocker, issuestorage.DepTypeBlocks); err != nil {
		t.Fatalf("add dependency failed: %v", err)
	}

	readyCmd := newReadyCmd(NewTestProvider(app))
	if err := readyCmd.Execute(); err != nil {
		t.Fatalf("ready failed: %v", err)
	}
	if !strings.Contains(out.String(), free) {
		t.Errorf("unblocked issue missing from ready: %q", out.String())
	}
	if strings.Contains(out.String(), gated) {
		t.Errorf("blocked issue leaked into ready: %q", out.String())
	}
	out.Reset()

	blockedCmd := newBlockedCmd(NewTestProvider(app))
	if err := blockedCmd.Execute(); err != nil {
		t.Fatalf("blocked failed: %v", err)
	}
	if !strings.Contains(out.String(), gated) {
		t.Errorf("blocked issue missing: %q", out.String())
	}
	if !strings.Contains(out.String(), "blocked by: "+blocker) {
		t.Errorf("blocker not named: %q", out.String())
	}
}

func TestReadyUnblocksAfterClose(t *testing.T) {
	app, store := setupTestApp(t)
	out := app.Out.(*bytes.Buffer)
	gated := mustCreateIssue(t, store, "Waiting", nil)
	blocker := mustCreateIssue(t, store, "Blocker", nil)
	if err := store.AddDependency(context.Background(), gated, blocker, issuestorage.DepTypeBlocks); err != nil {
		t.Fatalf("add dependency failed: %v", err)
	}
	err := store.Modify(context.Background(), blocker, func(issue *issuestorage.Issue) error {
		issue.Status = issuestorage.StatusClosed
		return nil
	})
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}

	cmd := newReadyCmd(NewTestProvider(app))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("ready failed: %v", err)
	}
	if !strings.Contains(out.String(), gated) {
		t.Errorf("issue should be ready after blocker closed: %q", out.String())
	}
}

func TestReadyLimit(t *testing.T) {
	app, store := setupTestApp(t)
	out := app.Out.(*bytes.Buffer)
	mustCreateIssue(t, store, "One", nil)
	mustCreateIssue(t, store, "Two", nil)
	mustCreateIssue(t, store, "Three", nil)

	cmd := newReadyCmd(NewTestProvider(app))
	cmd.SetArgs([]string{"--limit", "2"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("ready failed: %v", err)
	}
	lines := strings.Count(strings.TrimSpace(out.String()), "\n") + 1
	if lines != 2 {
		t.Errorf("expected 2 lines, got %d:\n%s", lines, out.String())
	}
}
