package reconcile

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"braid/internal/idgen"
	"braid/internal/issuestorage"
)

// scanBufSize bounds a single interchange line. Descriptions are free
// text, so lines can be large.
const scanBufSize = 2 * 1024 * 1024

// ImportResult summarizes one import pass.
type ImportResult struct {
	Created    int `json:"created"`
	Updated    int `json:"updated"`
	Unchanged  int `json:"unchanged"`
	Tombstones int `json:"tombstones"`
	Edges      int `json:"edges"`
	// Skipped counts lines that could not be applied: malformed JSON,
	// invalid field values, unresolvable dependency endpoints.
	Skipped int `json:"skipped"`
	// Warnings carries one message per skipped line.
	Warnings []string `json:"warnings,omitempty"`
}

func (r *ImportResult) warnf(format string, args ...any) {
	r.Skipped++
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Import reads the interchange file at path and reconciles it into the
// store. Per-line failures are collected as warnings, not fatal errors:
// a half-merged file pulled from another clone must never abort the
// whole import.
//
// Records are applied parents-first (by hierarchy depth) so that a child
// can attach to a parent defined later in the same file. A child whose
// parent exists neither in the store nor in the file gets a synthesized
// tombstone parent instead of failing. Dependency lines are applied last,
// after every issue in the file is resolvable.
func Import(ctx context.Context, store issuestorage.Store, path string) (*ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ImportResult{}, nil
		}
		return nil, err
	}
	defer f.Close()

	result := &ImportResult{}
	var issues []*issuestorage.Issue
	var deps []issuestorage.Dependency

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), scanBufSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		issue, dep, err := parseLine([]byte(line))
		if err != nil {
			result.warnf("line %d: %v", lineNo, err)
			continue
		}
		if dep != nil {
			deps = append(deps, *dep)
			continue
		}
		issues = append(issues, issue)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	// Parents before children, stable within a depth level.
	sort.SliceStable(issues, func(i, j int) bool {
		di, dj := idgen.HierarchyDepth(issues[i].ID), idgen.HierarchyDepth(issues[j].ID)
		if di != dj {
			return di < dj
		}
		return issues[i].ID < issues[j].ID
	})

	inFile := make(map[string]bool, len(issues))
	for _, issue := range issues {
		inFile[issue.ID] = true
	}

	for _, issue := range issues {
		if err := importIssue(ctx, store, issue, inFile, result); err != nil {
			result.warnf("issue %s: %v", issue.ID, err)
		}
	}
	for _, dep := range deps {
		if err := store.ImportDependency(ctx, dep); err != nil {
			result.warnf("dependency %s->%s (%s): %v", dep.FromID, dep.ToID, dep.Type, err)
			continue
		}
		result.Edges++
	}
	return result, nil
}

// parseLine decodes one interchange line. Issue records carry an id;
// dependency records carry from_id/to_id and no id.
func parseLine(line []byte) (*issuestorage.Issue, *issuestorage.Dependency, error) {
	var probe struct {
		ID     string `json:"id"`
		FromID string `json:"from_id"`
		ToID   string `json:"to_id"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return nil, nil, fmt.Errorf("malformed JSON: %v", err)
	}
	if probe.ID != "" {
		var issue issuestorage.Issue
		if err := json.Unmarshal(line, &issue); err != nil {
			return nil, nil, fmt.Errorf("malformed issue record: %v", err)
		}
		if strings.TrimSpace(issue.Title) == "" {
			return nil, nil, errors.New("issue record missing title")
		}
		return &issue, nil, nil
	}
	if probe.FromID != "" && probe.ToID != "" {
		var dep issuestorage.Dependency
		if err := json.Unmarshal(line, &dep); err != nil {
			return nil, nil, fmt.Errorf("malformed dependency record: %v", err)
		}
		if dep.Type == "" {
			dep.Type = issuestorage.DepTypeBlocks
		}
		return nil, &dep, nil
	}
	return nil, nil, errors.New("record has neither id nor from_id/to_id")
}

func importIssue(ctx context.Context, store issuestorage.Store, incoming *issuestorage.Issue, inFile map[string]bool, result *ImportResult) error {
	existing, err := store.Get(ctx, incoming.ID)
	switch {
	case err == nil:
		return mergeIssue(ctx, store, existing, incoming, result)
	case errors.Is(err, issuestorage.ErrNotFound):
		return createImported(ctx, store, incoming, inFile, result)
	default:
		return err
	}
}

// mergeIssue folds an incoming record into an existing issue. An exact
// content match is a no-op; otherwise the newer record wins, with status
// transitions validated the same way direct updates are.
func mergeIssue(ctx context.Context, store issuestorage.Store, existing, incoming *issuestorage.Issue, result *ImportResult) error {
	incoming.ContentHash = incoming.ComputeContentHash()
	if sameRecord(existing, incoming) {
		result.Unchanged++
		return nil
	}
	if !incoming.UpdatedAt.After(existing.UpdatedAt) {
		// Local copy is at least as new; keep it.
		result.Unchanged++
		return nil
	}
	err := store.Modify(ctx, existing.ID, func(issue *issuestorage.Issue) error {
		issue.Title = incoming.Title
		issue.Description = incoming.Description
		issue.Status = incoming.Status
		issue.Priority = incoming.Priority
		issue.Type = incoming.Type
		issue.EpicID = incoming.EpicID
		issue.Labels = incoming.Labels
		issue.Assignee = incoming.Assignee
		issue.CloseReason = incoming.CloseReason
		if incoming.ClosedAt != nil {
			t := incoming.ClosedAt.UTC()
			issue.ClosedAt = &t
		} else {
			issue.ClosedAt = nil
		}
		return nil
	})
	if err != nil {
		return err
	}
	result.Updated++
	return nil
}

func sameRecord(a, b *issuestorage.Issue) bool {
	return a.ContentHash == b.ContentHash &&
		a.Status == b.Status &&
		a.EpicID == b.EpicID &&
		a.Assignee == b.Assignee &&
		a.CloseReason == b.CloseReason
}

func createImported(ctx context.Context, store issuestorage.Store, incoming *issuestorage.Issue, inFile map[string]bool, result *ImportResult) error {
	if parentID, _, ok := idgen.ParseHierarchicalID(incoming.ID); ok {
		if err := ensureParent(ctx, store, parentID, incoming.ID, inFile, result); err != nil {
			return err
		}
	}
	// Closed records from older tools may lack closed_at.
	if incoming.Status == issuestorage.StatusClosed && incoming.ClosedAt == nil {
		t := incoming.UpdatedAt
		if t.IsZero() {
			t = time.Now().UTC()
		}
		incoming.ClosedAt = &t
	}
	if _, err := store.Create(ctx, incoming); err != nil {
		if errors.Is(err, issuestorage.ErrAlreadyExists) {
			result.Unchanged++
			return nil
		}
		return err
	}
	result.Created++
	return nil
}

// ensureParent guarantees childID's parent exists before the child is
// created. A parent that appears later in the file was already created
// by the depth-ordered pass; one that exists nowhere is synthesized as a
// closed tombstone so the child is never orphaned.
func ensureParent(ctx context.Context, store issuestorage.Store, parentID, childID string, inFile map[string]bool, result *ImportResult) error {
	_, err := store.Get(ctx, parentID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, issuestorage.ErrNotFound) {
		return err
	}
	if inFile[parentID] {
		// The parent's own record was skipped earlier; fall through and
		// synthesize so the child still imports.
		inFile[parentID] = false
	}
	if grandparent, _, ok := idgen.ParseHierarchicalID(parentID); ok {
		if err := ensureParent(ctx, store, grandparent, parentID, inFile, result); err != nil {
			return err
		}
	}
	now := time.Now().UTC()
	tombstone := &issuestorage.Issue{
		ID:          parentID,
		Title:       fmt.Sprintf("[reconstructed] parent of %s", childID),
		Status:      issuestorage.StatusClosed,
		Priority:    issuestorage.PriorityBacklog,
		Type:        issuestorage.TypeEpic,
		CreatedAt:   now,
		UpdatedAt:   now,
		ClosedAt:    &now,
		CloseReason: "synthesized during import",
	}
	if _, err := store.Create(ctx, tombstone); err != nil && !errors.Is(err, issuestorage.ErrAlreadyExists) {
		return fmt.Errorf("synthesize parent %s: %w", parentID, err)
	}
	result.Tombstones++
	return nil
}
