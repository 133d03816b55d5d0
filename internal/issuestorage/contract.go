package issuestorage

import (
	"context"
	"errors"
	"testing"
	"time"

	"braid/internal/idgen"
)

// RunContractTests runs the full contract test suite against a Store
// implementation. Each storage engine should call this with its own factory
// function to ensure consistent behavior across implementations.
func RunContractTests(t *testing.T, factory func() Store) {
	t.Run("Create", func(t *testing.T) { testCreate(t, factory()) })
	t.Run("ContentID", func(t *testing.T) { testContentID(t, factory()) })
	t.Run("Get", func(t *testing.T) { testGet(t, factory()) })
	t.Run("Modify", func(t *testing.T) { testModify(t, factory()) })
	t.Run("Transitions", func(t *testing.T) { testTransitions(t, factory()) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, factory()) })
	t.Run("List", func(t *testing.T) { testList(t, factory()) })
	t.Run("CloseReopen", func(t *testing.T) { testCloseReopen(t, factory()) })
	t.Run("Dependencies", func(t *testing.T) { testDependencies(t, factory()) })
	t.Run("CycleRejection", func(t *testing.T) { testCycleRejection(t, factory()) })
	t.Run("ImportDependency", func(t *testing.T) { testImportDependency(t, factory()) })
	t.Run("EpicLink", func(t *testing.T) { testEpicLink(t, factory()) })
	t.Run("ChildSequence", func(t *testing.T) { testChildSequence(t, factory()) })
	t.Run("HierarchyDepthLimit", func(t *testing.T) { testHierarchyDepthLimit(t, factory()) })
}

func mustInit(t *testing.T, s Store) {
	t.Helper()
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
}

func mustCreate(t *testing.T, s Store, issue *Issue) string {
	t.Helper()
	id, err := s.Create(context.Background(), issue)
	if err != nil {
		t.Fatalf("Create %q failed: %v", issue.Title, err)
	}
	return id
}

func testCreate(t *testing.T, s Store) {
	ctx := context.Background()
	mustInit(t, s)

	issue := &Issue{
		Title:       "Test Issue",
		Description: "Test description",
		Status:      StatusOpen,
		Priority:    PriorityMedium,
		Type:        TypeTask,
	}

	id, err := s.Create(ctx, issue)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id == "" {
		t.Error("Create returned empty ID")
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get after Create failed: %v", err)
	}
	if got.Title != issue.Title {
		t.Errorf("Title mismatch: got %q, want %q", got.Title, issue.Title)
	}
	if got.Description != issue.Description {
		t.Errorf("Description mismatch: got %q, want %q", got.Description, issue.Description)
	}
	if got.Status != issue.Status {
		t.Errorf("Status mismatch: got %q, want %q", got.Status, issue.Status)
	}
	if got.Priority != issue.Priority {
		t.Errorf("Priority mismatch: got %d, want %d", got.Priority, issue.Priority)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps should be set on create")
	}
	if got.ContentHash == "" {
		t.Error("content hash should be computed on create")
	}

	// Missing title is rejected before any mutation.
	if _, err := s.Create(ctx, &Issue{Title: "   "}); !errors.Is(err, ErrValidation) {
		t.Errorf("Create without title: got %v, want ErrValidation", err)
	}
}

func testContentID(t *testing.T, s Store) {
	ctx := context.Background()
	mustInit(t, s)

	id := mustCreate(t, s, &Issue{Title: "Set up DB", Description: "postgres", Type: TypeTask})

	// Identical content converges on the existing issue.
	again, err := s.Create(ctx, &Issue{Title: "Set up DB", Description: "postgres", Type: TypeTask})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate content create: got %v, want ErrAlreadyExists", err)
	}
	if again != id {
		t.Errorf("duplicate content create returned %q, want existing %q", again, id)
	}

	// Distinct content gets a distinct id.
	other := mustCreate(t, s, &Issue{Title: "Set up DC", Description: "postgres", Type: TypeTask})
	if other == id {
		t.Errorf("distinct content produced the same id %q", id)
	}
}

func testGet(t *testing.T, s Store) {
	ctx := context.Background()
	mustInit(t, s)

	if _, err := s.Get(ctx, "nonexistent-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get non-existent: got %v, want ErrNotFound", err)
	}

	id := mustCreate(t, s, &Issue{Title: "Get Test", Priority: PriorityLow, Type: TypeBug})

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != id {
		t.Errorf("ID mismatch: got %q, want %q", got.ID, id)
	}
}

func testModify(t *testing.T, s Store) {
	ctx := context.Background()
	mustInit(t, s)

	err := s.Modify(ctx, "nonexistent-id", func(i *Issue) error { i.Title = "x"; return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Modify non-existent: got %v, want ErrNotFound", err)
	}

	id := mustCreate(t, s, &Issue{Title: "Original Title", Priority: PriorityLow, Type: TypeTask})
	before, _ := s.Get(ctx, id)

	if err := s.Modify(ctx, id, func(i *Issue) error {
		i.Title = "Updated Title"
		i.Status = StatusInProgress
		i.Priority = PriorityHigh
		i.Labels = []string{"urgent"}
		i.Assignee = "alice"
		return nil
	}); err != nil {
		t.Fatalf("Modify failed: %v", err)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get after Modify failed: %v", err)
	}
	if got.Title != "Updated Title" {
		t.Errorf("Title mismatch: got %q", got.Title)
	}
	if got.Status != StatusInProgress {
		t.Errorf("Status mismatch: got %q", got.Status)
	}
	if got.Assignee != "alice" {
		t.Errorf("Assignee mismatch: got %q", got.Assignee)
	}
	if len(got.Labels) != 1 || got.Labels[0] != "urgent" {
		t.Errorf("Labels mismatch: got %v, want [urgent]", got.Labels)
	}
	if got.ContentHash == before.ContentHash {
		t.Error("content hash should change when content changes")
	}
	if !got.UpdatedAt.After(before.UpdatedAt) && !got.UpdatedAt.Equal(before.UpdatedAt) {
		t.Error("UpdatedAt should not go backwards")
	}
}

func testTransitions(t *testing.T, s Store) {
	ctx := context.Background()
	mustInit(t, s)

	id := mustCreate(t, s, &Issue{Title: "Transition Test", Type: TypeTask})

	if err := s.Modify(ctx, id, func(i *Issue) error { i.Status = StatusClosed; return nil }); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// closed → in_progress must pass through open.
	err := s.Modify(ctx, id, func(i *Issue) error { i.Status = StatusInProgress; return nil })
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("closed → in_progress: got %v, want ErrInvalidTransition", err)
	}

	// The store is unchanged after a rejected transition.
	got, _ := s.Get(ctx, id)
	if got.Status != StatusClosed {
		t.Errorf("status after rejected transition: got %q, want closed", got.Status)
	}

	if err := s.Modify(ctx, id, func(i *Issue) error { i.Status = StatusArchived; return nil }); err != nil {
		t.Fatalf("closed → archived failed: %v", err)
	}
	if err := s.Modify(ctx, id, func(i *Issue) error { i.Status = StatusOpen; return nil }); err != nil {
		t.Fatalf("archived → open failed: %v", err)
	}
	err = s.Modify(ctx, id, func(i *Issue) error { i.Status = StatusArchived; return nil })
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("open → archived: got %v, want ErrInvalidTransition", err)
	}
}

func testDelete(t *testing.T, s Store) {
	ctx := context.Background()
	mustInit(t, s)

	if err := s.Delete(ctx, "nonexistent-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete non-existent: got %v, want ErrNotFound", err)
	}

	a := mustCreate(t, s, &Issue{Title: "To Delete", Type: TypeChore})
	b := mustCreate(t, s, &Issue{Title: "Depends on deleted", Type: TypeTask})
	if err := s.AddDependency(ctx, b, a, DepTypeBlocks); err != nil {
		t.Fatalf("AddDependency failed: %v", err)
	}

	if err := s.Delete(ctx, a); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, a); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete: got %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, a); !errors.Is(err, ErrNotFound) {
		t.Errorf("Double Delete: got %v, want ErrNotFound", err)
	}

	// Edges touching the deleted issue are cascaded away.
	deps, err := s.ListDependencies(ctx)
	if err != nil {
		t.Fatalf("ListDependencies failed: %v", err)
	}
	for _, dep := range deps {
		if dep.FromID == a || dep.ToID == a {
			t.Errorf("dangling edge survived delete: %+v", dep)
		}
	}
}

func testList(t *testing.T, s Store) {
	ctx := context.Background()
	mustInit(t, s)

	issues, err := s.List(ctx, nil)
	if err != nil {
		t.Fatalf("List empty: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("List empty: got %d issues, want 0", len(issues))
	}

	for _, spec := range []struct {
		title    string
		status   Status
		priority Priority
		typ      IssueType
		labels   []string
	}{
		{"Task 1", StatusOpen, PriorityHigh, TypeTask, []string{"frontend"}},
		{"Task 2", StatusInProgress, PriorityLow, TypeTask, []string{"backend"}},
		{"Bug 1", StatusOpen, PriorityHigh, TypeBug, []string{"frontend", "urgent"}},
		{"Feature 1", StatusOpen, PriorityMedium, TypeFeature, nil},
	} {
		issue := &Issue{
			Title:    spec.title,
			Status:   spec.status,
			Priority: spec.priority,
			Type:     spec.typ,
			Labels:   spec.labels,
		}
		mustCreate(t, s, issue)
	}

	all, err := s.List(ctx, nil)
	if err != nil {
		t.Fatalf("List nil filter: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("List nil filter: got %d issues, want 4", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Errorf("List not ordered by id: %q before %q", all[i-1].ID, all[i].ID)
		}
	}

	statusOpen := StatusOpen
	issues, err = s.List(ctx, &ListFilter{Status: &statusOpen})
	if err != nil {
		t.Fatalf("List by status: %v", err)
	}
	if len(issues) != 3 {
		t.Errorf("List by status open: got %d issues, want 3", len(issues))
	}

	priorityHigh := PriorityHigh
	issues, err = s.List(ctx, &ListFilter{Priority: &priorityHigh})
	if err != nil {
		t.Fatalf("List by priority: %v", err)
	}
	if len(issues) != 2 {
		t.Errorf("List by priority high: got %d issues, want 2", len(issues))
	}

	typeBug := TypeBug
	issues, err = s.List(ctx, &ListFilter{Type: &typeBug})
	if err != nil {
		t.Fatalf("List by type: %v", err)
	}
	if len(issues) != 1 {
		t.Errorf("List by type bug: got %d issues, want 1", len(issues))
	}

	issues, err = s.List(ctx, &ListFilter{Labels: []string{"frontend"}})
	if err != nil {
		t.Fatalf("List by labels: %v", err)
	}
	if len(issues) != 2 {
		t.Errorf("List by label frontend: got %d issues, want 2", len(issues))
	}

	issues, err = s.List(ctx, &ListFilter{Labels: []string{"frontend", "urgent"}})
	if err != nil {
		t.Fatalf("List by multiple labels: %v", err)
	}
	if len(issues) != 1 {
		t.Errorf("List by labels [frontend, urgent]: got %d issues, want 1", len(issues))
	}
}

func testCloseReopen(t *testing.T, s Store) {
	ctx := context.Background()
	mustInit(t, s)

	id := mustCreate(t, s, &Issue{Title: "To Close", Priority: PriorityLow, Type: TypeTask})

	if err := s.Modify(ctx, id, func(i *Issue) error {
		i.Status = StatusClosed
		i.CloseReason = "done"
		return nil
	}); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get after Close failed: %v", err)
	}
	if got.Status != StatusClosed {
		t.Errorf("Status after Close: got %q, want closed", got.Status)
	}
	if got.ClosedAt == nil {
		t.Error("ClosedAt should be set automatically on close")
	}
	if got.CloseReason != "done" {
		t.Errorf("CloseReason: got %q, want done", got.CloseReason)
	}

	if err := s.Modify(ctx, id, func(i *Issue) error {
		i.Status = StatusOpen
		return nil
	}); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}

	got, err = s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get after Reopen failed: %v", err)
	}
	if got.Status != StatusOpen {
		t.Errorf("Status after Reopen: got %q, want open", got.Status)
	}
	if got.ClosedAt != nil {
		t.Error("ClosedAt should be cleared on reopen")
	}
}

func testDependencies(t *testing.T, s Store) {
	ctx := context.Background()
	mustInit(t, s)

	a := mustCreate(t, s, &Issue{Title: "A", Type: TypeTask})
	b := mustCreate(t, s, &Issue{Title: "B", Type: TypeTask})

	if err := s.AddDependency(ctx, a, a, DepTypeBlocks); !errors.Is(err, ErrSelfDependency) {
		t.Errorf("self dependency: got %v, want ErrSelfDependency", err)
	}
	if err := s.AddDependency(ctx, a, "nonexistent-id", DepTypeBlocks); !errors.Is(err, ErrNotFound) {
		t.Errorf("dependency on missing issue: got %v, want ErrNotFound", err)
	}
	if err := s.AddDependency(ctx, a, b, "bogus"); !errors.Is(err, ErrValidation) {
		t.Errorf("bogus dependency type: got %v, want ErrValidation", err)
	}

	if err := s.AddDependency(ctx, a, b, DepTypeBlocks); err != nil {
		t.Fatalf("AddDependency failed: %v", err)
	}
	if err := s.AddDependency(ctx, a, b, DepTypeBlocks); !errors.Is(err, ErrDuplicateDependency) {
		t.Errorf("duplicate triple: got %v, want ErrDuplicateDependency", err)
	}
	// Same pair, different type is a different edge.
	if err := s.AddDependency(ctx, a, b, DepTypeRelated); err != nil {
		t.Errorf("same pair different type: %v", err)
	}

	deps, err := s.ListDependencies(ctx)
	if err != nil {
		t.Fatalf("ListDependencies failed: %v", err)
	}
	if len(deps) != 2 {
		t.Fatalf("ListDependencies: got %d edges, want 2", len(deps))
	}

	if err := s.RemoveDependency(ctx, a, b, DepTypeRelated); err != nil {
		t.Fatalf("RemoveDependency failed: %v", err)
	}
	// Removing an absent edge is a no-op.
	if err := s.RemoveDependency(ctx, a, b, DepTypeRelated); err != nil {
		t.Errorf("RemoveDependency absent edge: got %v, want nil", err)
	}
}

func testCycleRejection(t *testing.T, s Store) {
	ctx := context.Background()
	mustInit(t, s)

	t1 := mustCreate(t, s, &Issue{Title: "Set up DB", Priority: PriorityHigh, Type: TypeTask})
	t2 := mustCreate(t, s, &Issue{Title: "Build API", Priority: PriorityHigh, Type: TypeTask})
	t3 := mustCreate(t, s, &Issue{Title: "Ship UI", Priority: PriorityHigh, Type: TypeTask})

	if err := s.AddDependency(ctx, t2, t1, DepTypeBlocks); err != nil {
		t.Fatalf("AddDependency failed: %v", err)
	}
	if err := s.AddDependency(ctx, t3, t2, DepTypeBlocks); err != nil {
		t.Fatalf("AddDependency failed: %v", err)
	}

	// Direct cycle.
	if err := s.AddDependency(ctx, t1, t2, DepTypeBlocks); !errors.Is(err, ErrCycle) {
		t.Errorf("direct cycle: got %v, want ErrCycle", err)
	}
	// Transitive cycle.
	if err := s.AddDependency(ctx, t1, t3, DepTypeBlocks); !errors.Is(err, ErrCycle) {
		t.Errorf("transitive cycle: got %v, want ErrCycle", err)
	}

	// Rejected edges leave the graph unchanged.
	deps, err := s.ListDependencies(ctx)
	if err != nil {
		t.Fatalf("ListDependencies failed: %v", err)
	}
	if len(deps) != 2 {
		t.Errorf("graph changed by rejected edge: %d edges, want 2", len(deps))
	}

	// Informational edges may close graph loops freely.
	if err := s.AddDependency(ctx, t1, t2, DepTypeRelated); err != nil {
		t.Errorf("related edge in would-be cycle: %v", err)
	}
}

func testImportDependency(t *testing.T, s Store) {
	ctx := context.Background()
	mustInit(t, s)

	a := mustCreate(t, s, &Issue{Title: "A", Type: TypeTask})
	b := mustCreate(t, s, &Issue{Title: "B", Type: TypeTask})

	recorded := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	dep := Dependency{FromID: a, ToID: b, Type: DepTypeBlocks, CreatedAt: recorded}
	if err := s.ImportDependency(ctx, dep); err != nil {
		t.Fatalf("ImportDependency failed: %v", err)
	}
	// Importing the same edge again is a no-op.
	if err := s.ImportDependency(ctx, dep); err != nil {
		t.Errorf("re-import: got %v, want nil", err)
	}

	deps, err := s.ListDependencies(ctx)
	if err != nil {
		t.Fatalf("ListDependencies failed: %v", err)
	}
	if len(deps) != 1 {
		t.Fatalf("got %d edges, want 1", len(deps))
	}
	if !deps[0].CreatedAt.Equal(recorded) {
		t.Errorf("CreatedAt not preserved: got %v, want %v", deps[0].CreatedAt, recorded)
	}

	// Import skips the cycle check; the standalone audit finds these.
	back := Dependency{FromID: b, ToID: a, Type: DepTypeBlocks, CreatedAt: recorded}
	if err := s.ImportDependency(ctx, back); err != nil {
		t.Errorf("import of cycle-closing edge: got %v, want nil", err)
	}

	if err := s.ImportDependency(ctx, Dependency{FromID: a, ToID: a, Type: DepTypeBlocks}); !errors.Is(err, ErrSelfDependency) {
		t.Errorf("self-loop import: got %v, want ErrSelfDependency", err)
	}
	if err := s.ImportDependency(ctx, Dependency{FromID: a, ToID: "missing", Type: DepTypeBlocks}); !errors.Is(err, ErrNotFound) {
		t.Errorf("import with missing endpoint: got %v, want ErrNotFound", err)
	}
}

func testEpicLink(t *testing.T, s Store) {
	ctx := context.Background()
	mustInit(t, s)

	epic := mustCreate(t, s, &Issue{Title: "Epic", Type: TypeEpic})
	task := mustCreate(t, s, &Issue{Title: "Member", Type: TypeTask})
	nonEpic := mustCreate(t, s, &Issue{Title: "Not an epic", Type: TypeTask})

	// Only an epic may be the target of epic_id.
	err := s.Modify(ctx, task, func(i *Issue) error { i.EpicID = nonEpic; return nil })
	if !errors.Is(err, ErrValidation) {
		t.Errorf("epic_id on non-epic: got %v, want ErrValidation", err)
	}

	if err := s.Modify(ctx, task, func(i *Issue) error { i.EpicID = epic; return nil }); err != nil {
		t.Fatalf("set epic failed: %v", err)
	}

	// The parent-child edge is derived from epic_id.
	deps, err := s.ListDependencies(ctx)
	if err != nil {
		t.Fatalf("ListDependencies failed: %v", err)
	}
	found := false
	for _, dep := range deps {
		if dep.FromID == task && dep.ToID == epic && dep.Type == DepTypeParentChild {
			found = true
		}
	}
	if !found {
		t.Error("setting epic_id should create a parent-child edge")
	}

	// Removing the edge clears epic_id.
	if err := s.RemoveDependency(ctx, task, epic, DepTypeParentChild); err != nil {
		t.Fatalf("RemoveDependency failed: %v", err)
	}
	got, _ := s.Get(ctx, task)
	if got.EpicID != "" {
		t.Errorf("epic_id not cleared with edge: %q", got.EpicID)
	}
}

func testChildSequence(t *testing.T, s Store) {
	ctx := context.Background()
	mustInit(t, s)

	idA := mustCreate(t, s, &Issue{Title: "Parent A", Type: TypeEpic})
	idB := mustCreate(t, s, &Issue{Title: "Parent B", Type: TypeEpic})

	childID, err := s.GetNextChildID(ctx, idA)
	if err != nil {
		t.Fatalf("GetNextChildID failed: %v", err)
	}
	if want := idA + ".1"; childID != want {
		t.Errorf("first child ID: got %q, want %q", childID, want)
	}
	mustCreate(t, s, &Issue{ID: childID, Title: "Child A.1", Type: TypeTask})

	childID, err = s.GetNextChildID(ctx, idA)
	if err != nil {
		t.Fatalf("GetNextChildID failed: %v", err)
	}
	if want := idA + ".2"; childID != want {
		t.Errorf("second child ID: got %q, want %q", childID, want)
	}
	mustCreate(t, s, &Issue{ID: childID, Title: "Child A.2", Type: TypeTask})

	// A hierarchical child gets its parent as epic automatically.
	child, _ := s.Get(ctx, idA+".1")
	if child.EpicID != idA {
		t.Errorf("child epic_id: got %q, want %q", child.EpicID, idA)
	}

	// Different parent starts from .1 again.
	childID, err = s.GetNextChildID(ctx, idB)
	if err != nil {
		t.Fatalf("GetNextChildID failed: %v", err)
	}
	if want := idB + ".1"; childID != want {
		t.Errorf("first child of B: got %q, want %q", childID, want)
	}

	// Deleting a child frees its slot: smallest unused wins.
	if err := s.Delete(ctx, idA+".1"); err != nil {
		t.Fatalf("Delete child failed: %v", err)
	}
	childID, err = s.GetNextChildID(ctx, idA)
	if err != nil {
		t.Fatalf("GetNextChildID failed: %v", err)
	}
	if want := idA + ".1"; childID != want {
		t.Errorf("refilled child ID: got %q, want %q", childID, want)
	}

	if _, err := s.GetNextChildID(ctx, "nonexistent-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetNextChildID on non-existent parent: got %v, want ErrNotFound", err)
	}
}

func testHierarchyDepthLimit(t *testing.T, s Store) {
	ctx := context.Background()
	mustInit(t, s)

	rootID := mustCreate(t, s, &Issue{Title: "Root", Type: TypeEpic})

	parentID := rootID
	for depth := 1; depth <= idgen.DefaultMaxHierarchyDepth; depth++ {
		childID, err := s.GetNextChildID(ctx, parentID)
		if err != nil {
			t.Fatalf("GetNextChildID at depth %d failed: %v", depth, err)
		}
		mustCreate(t, s, &Issue{ID: childID, Title: "Depth", Type: TypeEpic})
		parentID = childID
	}

	if _, err := s.GetNextChildID(ctx, parentID); !errors.Is(err, idgen.ErrMaxDepthExceeded) {
		t.Errorf("GetNextChildID past max depth: got %v, want idgen.ErrMaxDepthExceeded", err)
	}
}
