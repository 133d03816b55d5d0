// Package graph provides stateless traversal and analysis functions over the
// issue dependency graph. All functions take (ctx, issuestorage.Store, ...)
// with no struct state.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"braid/internal/issuestorage"
)

// ErrNoPath is returned by DependencyChain when no blocks path exists.
var ErrNoPath = errors.New("no dependency path exists")

// DefaultTreeDepth bounds BuildTree expansion on malformed data.
const DefaultTreeDepth = 3

// blocksAdjacency maps each issue ID to the IDs it is blocked by
// (the targets of its outgoing blocks edges).
func blocksAdjacency(deps []issuestorage.Dependency) map[string][]string {
	adj := make(map[string][]string)
	for _, dep := range deps {
		if dep.Type.AffectsReadiness() {
			adj[dep.FromID] = append(adj[dep.FromID], dep.ToID)
		}
	}
	return adj
}

func loadGraph(ctx context.Context, store issuestorage.Store) (map[string]*issuestorage.Issue, []issuestorage.Dependency, error) {
	issues, err := store.List(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("list issues: %w", err)
	}
	byID := make(map[string]*issuestorage.Issue, len(issues))
	for _, issue := range issues {
		byID[issue.ID] = issue
	}
	deps, err := store.ListDependencies(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list dependencies: %w", err)
	}
	return byID, deps, nil
}

// DetectCycles finds every elementary cycle in the blocks subgraph and
// returns each as an ordered list of IDs, rotated so the lexicographically
// smallest ID comes first. An empty result means the graph is acyclic.
// This is a standalone audit: edges introduced by reconciliation import
// bypass insertion-time checking, so acyclicity cannot be assumed.
//
// Each cycle is rooted at its smallest node: the search from a start node
// only walks nodes ordered after it, so every elementary cycle is emitted
// exactly once. A single passing node can appear in many cycles.
func DetectCycles(ctx context.Context, store issuestorage.Store) ([][]string, error) {
	_, deps, err := loadGraph(ctx, store)
	if err != nil {
		return nil, err
	}
	adj := blocksAdjacency(deps)

	nodes := make([]string, 0, len(adj))
	for id := range adj {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)

	var cycles [][]string
	onPath := make(map[string]bool)
	var path []string

	var dfs func(start, id string)
	dfs = func(start, id string) {
		onPath[id] = true
		path = append(path, id)

		targets := append([]string(nil), adj[id]...)
		sort.Strings(targets)
		for _, next := range targets {
			if next == start {
				cycles = append(cycles, append([]string(nil), path...))
				continue
			}
			// Cycles containing a smaller node belong to that node's
			// search; onPath keeps the walk a simple path.
			if next < start || onPath[next] {
				continue
			}
			dfs(start, next)
		}

		path = path[:len(path)-1]
		onPath[id] = false
	}

	for _, id := range nodes {
		dfs(id, id)
	}
	return cycles, nil
}

// Filter narrows the ready queue. Criteria compose as conjunctions.
type Filter struct {
	Priority *issuestorage.Priority
	Labels   []string
	Assignee *string
}

func (f *Filter) matches(issue *issuestorage.Issue) bool {
	if f == nil {
		return true
	}
	if f.Priority != nil && issue.Priority != *f.Priority {
		return false
	}
	if f.Assignee != nil && issue.Assignee != *f.Assignee {
		return false
	}
	for _, label := range f.Labels {
		if !issue.HasLabel(label) {
			return false
		}
	}
	return true
}

// ReadyIssues returns all open issues whose blocks dependencies are all
// resolved (closed, resolved or archived). Sorted by priority ascending
// (0 = most urgent first), then created_at ascending.
func ReadyIssues(ctx context.Context, store issuestorage.Store, filter *Filter) ([]*issuestorage.Issue, error) {
	byID, deps, err := loadGraph(ctx, store)
	if err != nil {
		return nil, err
	}
	adj := blocksAdjacency(deps)

	var ready []*issuestorage.Issue
	for _, issue := range byID {
		if issue.Status != issuestorage.StatusOpen || !filter.matches(issue) {
			continue
		}
		if len(unresolvedBlockers(issue.ID, adj, byID)) == 0 {
			ready = append(ready, issue)
		}
	}

	sort.Slice(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority < ready[j].Priority
		}
		if !ready[i].CreatedAt.Equal(ready[j].CreatedAt) {
			return ready[i].CreatedAt.Before(ready[j].CreatedAt)
		}
		return ready[i].ID < ready[j].ID
	})
	return ready, nil
}

// BlockedIssue pairs an issue with the IDs still blocking it.
type BlockedIssue struct {
	Issue     *issuestorage.Issue `json:"issue"`
	BlockedBy []string            `json:"blocked_by"`
}

// BlockedIssues returns every unresolved issue with at least one unresolved
// blocks dependency, listing the blocking IDs still in the way. Any
// non-terminal status qualifies, not just open: an issue someone already
// marked in_progress or blocked still belongs on this list, since the list
// exists to show what stands in the way of active work.
func BlockedIssues(ctx context.Context, store issuestorage.Store) ([]BlockedIssue, error) {
	byID, deps, err := loadGraph(ctx, store)
	if err != nil {
		return nil, err
	}
	adj := blocksAdjacency(deps)

	var blocked []BlockedIssue
	for _, issue := range byID {
		if issue.Status.Terminal() {
			continue
		}
		blockers := unresolvedBlockers(issue.ID, adj, byID)
		if len(blockers) > 0 {
			sort.Strings(blockers)
			blocked = append(blocked, BlockedIssue{Issue: issue, BlockedBy: blockers})
		}
	}
	sort.Slice(blocked, func(i, j int) bool {
		return blocked[i].Issue.ID < blocked[j].Issue.ID
	})
	return blocked, nil
}

// unresolvedBlockers returns the blocks targets of id that are not yet in a
// terminal status. A missing target counts as unresolved rather than being
// silently skipped.
func unresolvedBlockers(id string, adj map[string][]string, byID map[string]*issuestorage.Issue) []string {
	var out []string
	for _, blockerID := range adj[id] {
		blocker, ok := byID[blockerID]
		if !ok || !blocker.Status.Terminal() {
			out = append(out, blockerID)
		}
	}
	return out
}

// DependencyChain finds the shortest blocks path from one issue to another
// using breadth-first search. The returned path includes both endpoints.
// Returns ErrNoPath when the target is unreachable.
func DependencyChain(ctx context.Context, store issuestorage.Store, from, to string) ([]string, error) {
	for _, id := range []string{from, to} {
		if _, err := store.Get(ctx, id); err != nil {
			return nil, err
		}
	}

	_, deps, err := loadGraph(ctx, store)
	if err != nil {
		return nil, err
	}
	adj := blocksAdjacency(deps)
	for id := range adj {
		sort.Strings(adj[id])
	}

	if from == to {
		return []string{from}, nil
	}

	parent := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range adj[current] {
			if _, visited := parent[next]; visited {
				continue
			}
			parent[next] = current
			if next == to {
				var path []string
				for id := to; id != ""; id = parent[id] {
					path = append(path, id)
				}
				// Reverse into from → to order.
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path, nil
			}
			queue = append(queue, next)
		}
	}
	return nil, fmt.Errorf("%s → %s: %w", from, to, ErrNoPath)
}

// TreeNode is one node of a hierarchical epic tree.
type TreeNode struct {
	Issue     *issuestorage.Issue `json:"issue"`
	Depth     int                 `json:"depth"`
	Children  []*TreeNode         `json:"children,omitempty"`
	Truncated bool                `json:"truncated,omitempty"`
}

// BuildTree expands the epic hierarchy below root, depth-limited to bound
// output on malformed data. Children keep creation order. maxDepth <= 0
// uses DefaultTreeDepth.
func BuildTree(ctx context.Context, store issuestorage.Store, rootID string, maxDepth int) (*TreeNode, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultTreeDepth
	}
	root, err := store.Get(ctx, rootID)
	if err != nil {
		return nil, err
	}

	byID, _, err := loadGraph(ctx, store)
	if err != nil {
		return nil, err
	}
	childrenOf := make(map[string][]*issuestorage.Issue)
	for _, issue := range byID {
		if issue.EpicID != "" {
			childrenOf[issue.EpicID] = append(childrenOf[issue.EpicID], issue)
		}
	}
	for id := range childrenOf {
		kids := childrenOf[id]
		sort.Slice(kids, func(i, j int) bool {
			if !kids[i].CreatedAt.Equal(kids[j].CreatedAt) {
				return kids[i].CreatedAt.Before(kids[j].CreatedAt)
			}
			return kids[i].ID < kids[j].ID
		})
	}

	visited := make(map[string]bool)
	var build func(issue *issuestorage.Issue, depth int) *TreeNode
	build = func(issue *issuestorage.Issue, depth int) *TreeNode {
		node := &TreeNode{Issue: issue, Depth: depth}
		visited[issue.ID] = true
		kids := childrenOf[issue.ID]
		if len(kids) == 0 {
			return node
		}
		if depth >= maxDepth {
			node.Truncated = true
			return node
		}
		for _, child := range kids {
			if visited[child.ID] {
				// Malformed parent loop; stop rather than recurse forever.
				node.Truncated = true
				continue
			}
			node.Children = append(node.Children, build(child, depth+1))
		}
		return node
	}
	return build(root, 0), nil
}
