package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"braid/internal/issuestorage"
)

func makeChild(t *testing.T, store issuestorage.Store, parentID, title string, typ issuestorage.IssueType) string {
	t.Helper()
	ctx := context.Background()
	childID, err := store.GetNextChildID(ctx, parentID)
	if err != nil {
		t.Fatalf("child ID for %s failed: %v", parentID, err)
	}
	issue := &issuestorage.Issue{
		ID:     childID,
		Title:  title,
		Status: issuestorage.StatusOpen,
		Type:   typ,
		EpicID: parentID,
	}
	if _, err := store.Create(ctx, issue); err != nil {
		t.Fatalf("create child failed: %v", err)
	}
	return childID
}

func TestTree(t *testing.T) {
	app, store := setupTestApp(t)
	out := app.Out.(*bytes.Buffer)
	epic := mustCreateIssue(t, store, "Release 1.0", func(i *issuestorage.Issue) {
		i.Type = issuestorage.TypeEpic
	})
	c1 := makeChild(t, store, epic, "Ship feature", issuestorage.TypeTask)
	c2 := makeChild(t, store, epic, "Write changelog", issuestorage.TypeTask)

	cmd := newTreeCmd(NewTestProvider(app))
	cmd.SetArgs([]string{epic})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("tree failed: %v", err)
	}

	output := out.String()
	for _, id := range []string{epic, c1, c2} {
		if !strings.Contains(output, id) {
			t.Errorf("missing %s in tree:\n%s", id, output)
		}
	}
	// Children indented under the root.
	if !strings.Contains(output, "  "+c1) {
		t.Errorf("child not indented:\n%s", output)
	}
}

func TestTreeDepthTruncation(t *testing.T) {
	app, store := setupTestApp(t)
	out := app.Out.(*bytes.Buffer)
	epic := mustCreateIssue(t, store, "Deep epic", func(i *issuestorage.Issue) {
		i.Type = issuestorage.TypeEpic
	})
	mid := makeChild(t, store, epic, "Middle", issuestorage.TypeEpic)
	leaf := makeChild(t, store, mid, "Leaf", issuestorage.TypeTask)

	cmd := newTreeCmd(NewTestProvider(app))
	cmd.SetArgs([]string{epic, "--depth", "1"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("tree failed: %v", err)
	}

	if !strings.Contains(out.String(), "...") {
		t.Errorf("expected truncation marker:\n%s", out.String())
	}
	if strings.Contains(out.String(), leaf) {
		t.Errorf("leaf beyond depth should not appear:\n%s", out.String())
	}
}

func TestCyclesClean(t *testing.T) {
	app, store := setupTestApp(t)
	out := app.Out.(*bytes.Buffer)
	a := mustCreateIssue(t, store, "A", nil)
	b := mustCreateIssue(t, store, "B", nil)
	if err := store.AddDependency(context.Background(), a, b, issuestorage.DepTypeBlocks); err != nil {
		t.Fatalf("add dependency failed: %v", err)
	}

	cmd := newCyclesCmd(NewTestProvider(app))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("cycles failed: %v", err)
	}
	if !strings.Contains(out.String(), "No cycles found") {
		t.Errorf("output = %q", out.String())
	}
}

func TestCyclesDetectsImportedCycle(t *testing.T) {
	app, store := setupTestApp(t)
	out := app.Out.(*bytes.Buffer)
	ctx := context.Background()
	a := mustCreateIssue(t, store, "A", nil)
	b := mustCreateIssue(t, store, "B", nil)
	// ImportDependency skips the cycle check, same as a sync import.
	if err := store.ImportDependency(ctx, issuestorage.Dependency{FromID: a, ToID: b, Type: issuestorage.DepTypeBlocks}); err != nil {
		t.Fatalf("import edge failed: %v", err)
	}
	if err := store.ImportDependency(ctx, issuestorage.Dependency{FromID: b, ToID: a, Type: issuestorage.DepTypeBlocks}); err != nil {
		t.Fatalf("import edge failed: %v", err)
	}

	cmd := newCyclesCmd(NewTestProvider(app))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("cycles failed: %v", err)
	}
	if !strings.Contains(out.String(), "cycle(s) found") {
		t.Errorf("output = %q", out.String())
	}
}

func TestChain(t *testing.T) {
	app, store := setupTestApp(t)
	out := app.Out.(*bytes.Buffer)
	ctx := context.Background()
	a := mustCreateIssue(t, store, "A", nil)
	b := mustCreateIssue(t, store, "B", nil)
	c := mustCreateIssue(t, store, "C", nil)
	if err := store.AddDependency(ctx, a, b, issuestorage.DepTypeBlocks); err != nil {
		t.Fatalf("add dependency failed: %v", err)
	}
	if err := store.AddDependency(ctx, b, c, issuestorage.DepTypeBlocks); err != nil {
		t.Fatalf("add dependency failed: %v", err)
	}

	cmd := newChainCmd(NewTestProvider(app))
	cmd.SetArgs([]string{a, c})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("chain failed: %v", err)
	}
	want := a + " -> " + b + " -> " + c
	if strings.TrimSpace(out.String()) != want {
		t.Errorf("chain = %q, want %q", strings.TrimSpace(out.String()), want)
	}
}

func TestChainNoPath(t *testing.T) {
	app, store := setupTestApp(t)
	out := app.Out.(*bytes.Buffer)
	a := mustCreateIssue(t, store, "A", nil)
	b := mustCreateIssue(t, store, "B", nil)

	cmd := newChainCmd(NewTestProvider(app))
	cmd.SetArgs([]string{a, b})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("chain failed: %v", err)
	}
	if !strings.Contains(out.String(), "No dependency chain") {
		t.Errorf("output = %q", out.String())
	}
}
