package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"braid/internal/issuestorage"
)

// ErrSelfMerge is returned when an issue is asked to merge into itself.
var ErrSelfMerge = errors.New("cannot merge an issue into itself")

// DuplicateGroup is a set of issues sharing one content hash.
type DuplicateGroup struct {
	ContentHash string   `json:"content_hash"`
	Target      string   `json:"target"`
	Sources     []string `json:"sources"`
}

// FindDuplicates groups issues by content hash. Only issues in the same
// status class group together: open-class (open, in_progress, blocked)
// with open-class, terminal with terminal. The merge target is the group
// member with the most incoming dependency edges, ties broken by
// smallest ID.
func FindDuplicates(ctx context.Context, store issuestorage.Store) ([]DuplicateGroup, error) {
	issues, err := store.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	deps, err := store.ListDependencies(ctx)
	if err != nil {
		return nil, err
	}
	incoming := make(map[string]int)
	for _, dep := range deps {
		incoming[dep.ToID]++
	}

	type classKey struct {
		hash     string
		terminal bool
	}
	byKey := make(map[classKey][]*issuestorage.Issue)
	for _, issue := range issues {
		key := classKey{hash: issue.ContentHash, terminal: issue.Status.Terminal()}
		byKey[key] = append(byKey[key], issue)
	}

	var groups []DuplicateGroup
	for key, members := range byKey {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool {
			ci, cj := incoming[members[i].ID], incoming[members[j].ID]
			if ci != cj {
				return ci > cj
			}
			return members[i].ID < members[j].ID
		})
		group := DuplicateGroup{ContentHash: key.hash, Target: members[0].ID}
		for _, m := range members[1:] {
			group.Sources = append(group.Sources, m.ID)
		}
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Target < groups[j].Target })
	return groups, nil
}

// MergeResult reports what one Merge call changed.
type MergeResult struct {
	Target        string   `json:"target"`
	Closed        []string `json:"closed"`
	MovedEdges    int      `json:"moved_edges"`
	RewrittenRefs int      `json:"rewritten_refs"`
}

// Merge folds each source issue into target: every dependency edge
// touching a source is re-pointed at target (duplicates collapse), each
// source still open is closed with a reason naming the target, and
// textual references to source IDs in other issues are rewritten.
// Re-running a completed merge is a no-op.
func Merge(ctx context.Context, store issuestorage.Store, target string, sources []string) (*MergeResult, error) {
	if _, err := store.Get(ctx, target); err != nil {
		return nil, fmt.Errorf("merge target %s: %w", target, err)
	}
	sourceSet := make(map[string]bool, len(sources))
	for _, src := range sources {
		if src == target {
			return nil, fmt.Errorf("%s: %w", src, ErrSelfMerge)
		}
		if _, err := store.Get(ctx, src); err != nil {
			return nil, fmt.Errorf("merge source %s: %w", src, err)
		}
		sourceSet[src] = true
	}

	result := &MergeResult{Target: target}

	deps, err := store.ListDependencies(ctx)
	if err != nil {
		return nil, err
	}
	for _, dep := range deps {
		if !sourceSet[dep.FromID] && !sourceSet[dep.ToID] {
			continue
		}
		moved := dep
		if sourceSet[moved.FromID] {
			moved.FromID = target
		}
		if sourceSet[moved.ToID] {
			moved.ToID = target
		}
		if err := store.RemoveDependency(ctx, dep.FromID, dep.ToID, dep.Type); err != nil {
			return nil, err
		}
		// Edges collapsing onto the target itself just disappear.
		if moved.FromID == moved.ToID {
			continue
		}
		if err := store.ImportDependency(ctx, moved); err != nil {
			return nil, err
		}
		result.MovedEdges++
	}

	for _, src := range sources {
		issue, err := store.Get(ctx, src)
		if err != nil {
			return nil, err
		}
		if issue.Status.Terminal() {
			continue
		}
		err = store.Modify(ctx, src, func(issue *issuestorage.Issue) error {
			issue.Status = issuestorage.StatusClosed
			issue.CloseReason = fmt.Sprintf("duplicate of %s", target)
			return nil
		})
		if err != nil {
			return nil, err
		}
		result.Closed = append(result.Closed, src)
	}

	rewritten, err := rewriteReferences(ctx, store, sourceSet, target)
	if err != nil {
		return nil, err
	}
	result.RewrittenRefs = rewritten
	return result, nil
}

// rewriteReferences replaces mentions of merged-away IDs in every other
// issue's title and description.
func rewriteReferences(ctx context.Context, store issuestorage.Store, sources map[string]bool, target string) (int, error) {
	issues, err := store.List(ctx, nil)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, issue := range issues {
		if sources[issue.ID] || issue.ID == target {
			continue
		}
		title, description := issue.Title, issue.Description
		for src := range sources {
			title = strings.ReplaceAll(title, src, target)
			description = strings.ReplaceAll(description, src, target)
		}
		if title == issue.Title && description == issue.Description {
			continue
		}
		err := store.Modify(ctx, issue.ID, func(issue *issuestorage.Issue) error {
			issue.Title = title
			issue.Description = description
			return nil
		})
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
