// Package issuestorage defines the issue graph model and the interface for
// its persistence. Storage engines (SQLite today) implement Store.
package issuestorage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DependencyType represents the type of relationship between two issues.
type DependencyType string

const (
	DepTypeBlocks         DependencyType = "blocks"
	DepTypeRelated        DependencyType = "related"
	DepTypeParentChild    DependencyType = "parent-child"
	DepTypeDiscoveredFrom DependencyType = "discovered-from"
)

// ValidDependencyTypes is the set of all valid dependency types.
var ValidDependencyTypes = map[DependencyType]bool{
	DepTypeBlocks:         true,
	DepTypeRelated:        true,
	DepTypeParentChild:    true,
	DepTypeDiscoveredFrom: true,
}

// AffectsReadiness reports whether edges of this type participate in
// readiness and cycle computation. Only blocks edges do; the rest are
// informational or mirror the epic hierarchy.
func (t DependencyType) AffectsReadiness() bool {
	return t == DepTypeBlocks
}

// Dependency is a directed, typed edge between two issue IDs.
// For parent-child edges, FromID is the child and ToID the parent epic;
// these edges mirror the child's EpicID and are maintained by the store,
// never written independently of it.
type Dependency struct {
	FromID    string         `json:"from_id"`
	ToID      string         `json:"to_id"`
	Type      DependencyType `json:"type"`
	CreatedAt time.Time      `json:"created_at"`
}

// Issue represents a task/bug/feature in the system.
type Issue struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	Type        IssueType `json:"type"`

	// EpicID is the canonical representation of the hierarchy; the
	// parent-child dependency edge is derived from it.
	EpicID string `json:"epic_id,omitempty"`

	Labels    []string `json:"labels,omitempty"`
	Assignee  string   `json:"assignee,omitempty"`
	CreatedBy string   `json:"created_by,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CloseReason string     `json:"close_reason,omitempty"`

	ContentHash string `json:"content_hash,omitempty"`
}

// ComputeContentHash derives the duplicate-detection hash from the issue's
// content fields. Identity fields (id, status, timestamps) are excluded so
// that two independently created copies of the same work hash identically.
func (issue *Issue) ComputeContentHash() string {
	labels := append([]string(nil), issue.Labels...)
	sort.Strings(labels)

	var b strings.Builder
	for _, field := range []string{
		issue.Title,
		issue.Description,
		string(issue.Type),
		fmt.Sprintf("%d", issue.Priority),
		strings.Join(labels, ","),
	} {
		b.WriteString(field)
		b.WriteByte(0)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:16]
}

// Validate checks field values and cross-field invariants.
func (issue *Issue) Validate() error {
	if strings.TrimSpace(issue.Title) == "" {
		return fmt.Errorf("title is required: %w", ErrValidation)
	}
	if !ValidStatuses[issue.Status] {
		return fmt.Errorf("invalid status %q: %w", issue.Status, ErrValidation)
	}
	if issue.Priority < PriorityCritical || issue.Priority > PriorityBacklog {
		return fmt.Errorf("priority %d out of range [0,4]: %w", int(issue.Priority), ErrValidation)
	}
	if !ValidIssueTypes[issue.Type] {
		return fmt.Errorf("invalid issue type %q: %w", issue.Type, ErrValidation)
	}
	if issue.Status == StatusClosed && issue.ClosedAt == nil {
		return fmt.Errorf("closed issue must have closed_at: %w", ErrValidation)
	}
	if issue.Status != StatusClosed && issue.ClosedAt != nil {
		return fmt.Errorf("non-closed issue must not have closed_at: %w", ErrValidation)
	}
	return nil
}

// SetDefaults fills zero-valued fields with sane defaults.
func (issue *Issue) SetDefaults() {
	if issue.Status == "" {
		issue.Status = StatusOpen
	}
	if issue.Type == "" {
		issue.Type = TypeTask
	}
	now := time.Now().UTC()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	if issue.UpdatedAt.IsZero() {
		issue.UpdatedAt = issue.CreatedAt
	}
	if issue.ContentHash == "" {
		issue.ContentHash = issue.ComputeContentHash()
	}
}

// HasLabel reports whether the issue carries the given label.
func (issue *Issue) HasLabel(label string) bool {
	for _, l := range issue.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Status represents the current state of an issue.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
	StatusArchived   Status = "archived"
)

// ValidStatuses is the set of all valid statuses.
var ValidStatuses = map[Status]bool{
	StatusOpen:       true,
	StatusInProgress: true,
	StatusBlocked:    true,
	StatusResolved:   true,
	StatusClosed:     true,
	StatusArchived:   true,
}

// Terminal reports whether the status counts as resolved for readiness:
// a blocks edge from an issue in one of these states no longer blocks.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusResolved || s == StatusArchived
}

// statusTransitions maps each status to the statuses it may move to.
// Work states move freely among themselves; terminal states must pass
// back through open to resume, and only terminal issues may be archived.
var statusTransitions = map[Status][]Status{
	StatusOpen:       {StatusInProgress, StatusBlocked, StatusResolved, StatusClosed},
	StatusInProgress: {StatusOpen, StatusBlocked, StatusResolved, StatusClosed},
	StatusBlocked:    {StatusOpen, StatusInProgress, StatusResolved, StatusClosed},
	StatusResolved:   {StatusOpen, StatusClosed, StatusArchived},
	StatusClosed:     {StatusOpen, StatusArchived},
	StatusArchived:   {StatusOpen},
}

// ValidateTransition checks whether moving an issue from one status to
// another is allowed. Staying in the same status is always allowed.
// Both direct updates and reconciliation imports go through this check.
func ValidateTransition(from, to Status) error {
	if !ValidStatuses[to] {
		return fmt.Errorf("invalid status %q: %w", to, ErrValidation)
	}
	if from == to {
		return nil
	}
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("status transition %s → %s not allowed: %w", from, to, ErrInvalidTransition)
}

// ApplyStatusDefaults keeps ClosedAt and CloseReason consistent with the
// status after a transition.
func ApplyStatusDefaults(issue *Issue, previous Status) {
	if issue.Status == StatusClosed && previous != StatusClosed {
		now := time.Now().UTC()
		issue.ClosedAt = &now
	}
	if issue.Status != StatusClosed {
		issue.ClosedAt = nil
		issue.CloseReason = ""
	}
}

// ParseStatus converts a string to a Status value.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !ValidStatuses[st] {
		return "", fmt.Errorf("unknown status %q: %w", s, ErrValidation)
	}
	return st, nil
}

// Priority represents the urgency of an issue (0=critical .. 4=backlog).
type Priority int

const (
	PriorityCritical Priority = 0
	PriorityHigh     Priority = 1
	PriorityMedium   Priority = 2
	PriorityLow      Priority = 3
	PriorityBacklog  Priority = 4
)

// Display returns the priority in P0-P4 format for human-readable output.
func (p Priority) Display() string {
	return fmt.Sprintf("P%d", p)
}

// MarshalJSON writes priority as an integer.
func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(p))
}

// UnmarshalJSON reads priority from an integer or a legacy word-form string
// ("critical", "high", "medium", "low", "backlog") for compatibility with
// interchange files written by older tools.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*p = Priority(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("priority must be int or string, got %s", string(data))
	}
	parsed, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePriority converts a string to a Priority value.
// Accepts numeric ("0"-"4"), P-format ("P0"-"P4"), or word forms.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "p0", "critical":
		return PriorityCritical, nil
	case "1", "p1", "high":
		return PriorityHigh, nil
	case "2", "p2", "medium", "":
		return PriorityMedium, nil
	case "3", "p3", "low":
		return PriorityLow, nil
	case "4", "p4", "backlog":
		return PriorityBacklog, nil
	default:
		return PriorityMedium, fmt.Errorf("unknown priority %q: %w", s, ErrValidation)
	}
}

// IssueType represents the category of an issue.
type IssueType string

const (
	TypeBug     IssueType = "bug"
	TypeFeature IssueType = "feature"
	TypeTask    IssueType = "task"
	TypeEpic    IssueType = "epic"
	TypeChore   IssueType = "chore"
)

// ValidIssueTypes is the set of all valid issue types.
var ValidIssueTypes = map[IssueType]bool{
	TypeBug:     true,
	TypeFeature: true,
	TypeTask:    true,
	TypeEpic:    true,
	TypeChore:   true,
}

// ListFilter specifies criteria for listing issues. A nil filter matches
// every issue, including closed and archived ones.
type ListFilter struct {
	Status   *Status    // nil means any
	Priority *Priority  // nil means any
	Type     *IssueType // nil means any
	EpicID   *string    // nil means any, empty string means root issues only
	Labels   []string   // issues must carry all of these
	Assignee *string    // nil means any
}

// Matches reports whether the issue satisfies every criterion.
func (f *ListFilter) Matches(issue *Issue) bool {
	if f == nil {
		return true
	}
	if f.Status != nil && issue.Status != *f.Status {
		return false
	}
	if f.Priority != nil && issue.Priority != *f.Priority {
		return false
	}
	if f.Type != nil && issue.Type != *f.Type {
		return false
	}
	if f.EpicID != nil && issue.EpicID != *f.EpicID {
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
