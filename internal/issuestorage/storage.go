package issuestorage

import "context"

// Store defines the interface for issue graph persistence.
// All mutations are applied as a single durable transaction; partial
// application is never observable by another reader.
type Store interface {
	// Init initializes the storage (creates schema, directories, etc.).
	Init(ctx context.Context) error

	// Close releases the underlying resources.
	Close() error

	// Create creates a new issue and returns its ID.
	// If issue.ID is already set, that ID is used directly (hierarchical
	// child IDs, reconciliation import). Otherwise a deterministic
	// content-based ID is generated, widening on collision; creating an
	// issue whose content matches an existing issue returns the existing
	// ID with ErrAlreadyExists.
	Create(ctx context.Context, issue *Issue) (string, error)

	// Get retrieves an issue by ID.
	// Returns ErrNotFound if the issue doesn't exist.
	Get(ctx context.Context, id string) (*Issue, error)

	// Modify atomically reads an issue, applies fn to it, and writes it
	// back in one transaction. Status transitions are validated and
	// ClosedAt/CloseReason kept consistent; the content hash is recomputed
	// and UpdatedAt bumped. Returns ErrNotFound if the issue doesn't exist.
	Modify(ctx context.Context, id string, fn func(*Issue) error) error

	// Delete permanently removes an issue, cascading its dependency edges.
	// Returns ErrNotFound if the issue doesn't exist.
	Delete(ctx context.Context, id string) error

	// List returns all issues matching the filter, ordered by ID.
	// A nil filter returns every issue.
	List(ctx context.Context, filter *ListFilter) ([]*Issue, error)

	// AddDependency inserts a typed edge. Fails with ErrSelfDependency if
	// from == to, ErrDuplicateDependency if the exact triple exists,
	// ErrNotFound if either endpoint is absent, and ErrCycle if a blocks
	// edge would close a cycle (checked via reachability before insert).
	// A parent-child edge also sets the child's EpicID.
	AddDependency(ctx context.Context, from, to string, depType DependencyType) error

	// RemoveDependency deletes an edge. Idempotent: removing an absent
	// edge is a no-op. Removing a parent-child edge clears the child's
	// EpicID.
	RemoveDependency(ctx context.Context, from, to string, depType DependencyType) error

	// ImportDependency inserts an edge as recorded in an interchange file:
	// the original CreatedAt is preserved, an existing triple is a no-op,
	// and no cycle check runs (imported graphs are audited afterwards with
	// the standalone cycle detector instead). Self-loops are still
	// rejected and both endpoints must exist.
	ImportDependency(ctx context.Context, dep Dependency) error

	// ListDependencies returns every edge, ordered by (from, to, type).
	ListDependencies(ctx context.Context) ([]Dependency, error)

	// GetNextChildID validates the parent exists, checks hierarchy depth
	// limits, scans for existing children, and returns the next child ID
	// (e.g. "br-a3f8" → "br-a3f8.1"). The returned ID is not reserved;
	// callers retry on create collision. Returns ErrNotFound if the parent
	// doesn't exist, idgen.ErrMaxDepthExceeded if the parent is already at
	// the maximum hierarchy depth.
	GetNextChildID(ctx context.Context, parentID string) (string, error)

	// Doctor checks for and optionally fixes inconsistencies: orphaned
	// edges, dangling epic references, closed_at drift.
	Doctor(ctx context.Context, fix bool) ([]string, error)
}
