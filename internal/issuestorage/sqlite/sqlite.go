// Package sqlite implements issuestorage.Store on a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver

	"braid/internal/idgen"
	"braid/internal/issuestorage"
)

const (
	pragmaJournalModeWAL = `PRAGMA journal_mode = WAL;`
	pragmaForeignKeysOn  = `PRAGMA foreign_keys = ON;`
	pragmaBusyTimeout    = `PRAGMA busy_timeout = 5000;`
)

const issueColumns = `id, title, description, status, priority, "type", epic_id, labels, assignee, created_by, created_at, updated_at, closed_at, close_reason, content_hash`

const (
	issueTableSchema = `CREATE TABLE IF NOT EXISTS issues (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'open',
		priority INTEGER NOT NULL DEFAULT 2,
		"type" TEXT NOT NULL DEFAULT 'task',
		epic_id TEXT NOT NULL DEFAULT '',
		labels TEXT NOT NULL DEFAULT '[]',
		assignee TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		closed_at DATETIME,
		close_reason TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL DEFAULT ''
	);`

	dependencyTableSchema = `CREATE TABLE IF NOT EXISTS dependencies (
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		"type" TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (from_id, to_id, "type"),
		FOREIGN KEY (from_id) REFERENCES issues(id) ON DELETE CASCADE,
		FOREIGN KEY (to_id) REFERENCES issues(id) ON DELETE CASCADE
	);`

	contentHashIndexSchema = `CREATE INDEX IF NOT EXISTS idx_issues_content_hash ON issues(content_hash);`
)

const (
	insertIssueSQL = `INSERT INTO issues (` + issueColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

	getIssueSQL = `SELECT ` + issueColumns + ` FROM issues WHERE id = ?;`

	updateIssueSQL = `UPDATE issues SET
		title = ?, description = ?, status = ?, priority = ?, "type" = ?,
		epic_id = ?, labels = ?, assignee = ?, created_by = ?,
		created_at = ?, updated_at = ?, closed_at = ?, close_reason = ?, content_hash = ?
		WHERE id = ?;`

	deleteIssueSQL = `DELETE FROM issues WHERE id = ?;`

	clearEpicRefsSQL = `UPDATE issues SET epic_id = '' WHERE epic_id = ?;`

	listIssuesSQL = `SELECT ` + issueColumns + ` FROM issues`

	childIDsSQL = `SELECT id FROM issues WHERE id LIKE ? ESCAPE '\';`

	insertDependencySQL = `INSERT INTO dependencies (from_id, to_id, "type", created_at) VALUES (?, ?, ?, ?);`
	deleteDependencySQL = `DELETE FROM dependencies WHERE from_id = ? AND to_id = ? AND "type" = ?;`
	listDependenciesSQL = `SELECT from_id, to_id, "type", created_at FROM dependencies ORDER BY from_id, to_id, "type";`

	// Reachability over blocks edges only. Adding from→to closes a cycle
	// when from is already reachable from to.
	cycleCheckSQL = `
		WITH RECURSIVE reachable(issue_id) AS (
			SELECT to_id FROM dependencies WHERE from_id = ? AND "type" = 'blocks'
			UNION
			SELECT d.to_id
			FROM dependencies d
			INNER JOIN reachable r ON d.from_id = r.issue_id
			WHERE d."type" = 'blocks'
		)
		SELECT 1 FROM reachable WHERE issue_id = ? LIMIT 1;`
)

type rowScanner interface {
	Scan(dest ...any) error
}

// Store is a SQLite-backed issuestorage.Store.
type Store struct {
	db     *sql.DB
	prefix string
}

var _ issuestorage.Store = (*Store)(nil)

// New opens (or creates) the database at path. prefix is prepended to
// generated issue IDs, e.g. "br-".
func New(path, prefix string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// A single writer connection avoids SQLITE_BUSY between our own
	// transactions.
	db.SetMaxOpenConns(1)
	return &Store{db: db, prefix: idgen.BuildPrefix(prefix)}, nil
}

// Init applies pragmas and creates the schema.
func (s *Store) Init(ctx context.Context) error {
	for _, stmt := range []string{
		pragmaJournalModeWAL,
		pragmaForeignKeysOn,
		pragmaBusyTimeout,
		issueTableSchema,
		dependencyTableSchema,
		contentHashIndexSchema,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, issue *issuestorage.Issue) (string, error) {
	issue.SetDefaults()
	if err := issue.Validate(); err != nil {
		return "", err
	}

	if issue.ID == "" {
		id, err := s.deriveID(ctx, issue)
		if err != nil {
			return id, err
		}
		issue.ID = id
	} else if idgen.HierarchyDepth(issue.ID) > idgen.DefaultMaxHierarchyDepth {
		return "", fmt.Errorf("create %s: %w", issue.ID, idgen.ErrMaxDepthExceeded)
	}

	// A hierarchical ID implies its parent epic.
	if issue.EpicID == "" {
		if parent, _, ok := idgen.ParseHierarchicalID(issue.ID); ok {
			issue.EpicID = parent
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback()

	if issue.EpicID != "" {
		if err := validateEpicTarget(ctx, tx, issue.EpicID); err != nil {
			return "", err
		}
	}

	if _, err := tx.ExecContext(ctx, insertIssueSQL, issueArgs(issue)...); err != nil {
		if isUniqueConstraintError(err, "issues.id") {
			return "", fmt.Errorf("create %s: %w", issue.ID, issuestorage.ErrAlreadyExists)
		}
		return "", fmt.Errorf("create %s: %w", issue.ID, err)
	}

	if issue.EpicID != "" {
		if _, err := tx.ExecContext(ctx, insertDependencySQL,
			issue.ID, issue.EpicID, string(issuestorage.DepTypeParentChild), issue.CreatedAt); err != nil {
			return "", fmt.Errorf("link %s to epic %s: %w", issue.ID, issue.EpicID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit create: %w", err)
	}
	return issue.ID, nil
}

// deriveID generates a content hash ID, widening on collision. A collision
// with an issue of identical content returns that issue's ID so repeated
// submissions converge instead of multiplying.
func (s *Store) deriveID(ctx context.Context, issue *issuestorage.Issue) (string, error) {
	content := idgen.Content{
		Title:       issue.Title,
		Description: issue.Description,
		Type:        string(issue.Type),
		Actor:       issue.CreatedBy,
	}
	for width := idgen.MinWidth; width <= idgen.MaxWidth; width++ {
		candidate := idgen.HashID(s.prefix, content, width)
		existing, err := s.Get(ctx, candidate)
		if errors.Is(err, issuestorage.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		if existing.ContentHash == issue.ContentHash {
			return existing.ID, fmt.Errorf("identical issue exists as %s: %w", existing.ID, issuestorage.ErrAlreadyExists)
		}
	}
	return "", fmt.Errorf("create %q: %w", issue.Title, idgen.ErrIDSpaceExhausted)
}

func (s *Store) Get(ctx context.Context, id string) (*issuestorage.Issue, error) {
	row := s.db.QueryRowContext(ctx, getIssueSQL, id)
	issue, err := scanIssue(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get %s: %w", id, issuestorage.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return issue, nil
}

func (s *Store) Modify(ctx context.Context, id string, fn func(*issuestorage.Issue) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin modify: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, getIssueSQL, id)
	issue, err := scanIssue(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("modify %s: %w", id, issuestorage.ErrNotFound)
		}
		return fmt.Errorf("modify %s: %w", id, err)
	}

	previousStatus := issue.Status
	previousEpic := issue.EpicID

	if err := fn(issue); err != nil {
		return err
	}
	issue.ID = id // fn must not rename

	if err := issuestorage.ValidateTransition(previousStatus, issue.Status); err != nil {
		return fmt.Errorf("modify %s: %w", id, err)
	}
	issuestorage.ApplyStatusDefaults(issue, previousStatus)
	issue.ContentHash = issue.ComputeContentHash()
	issue.UpdatedAt = time.Now().UTC()
	if err := issue.Validate(); err != nil {
		return fmt.Errorf("modify %s: %w", id, err)
	}

	if issue.EpicID != previousEpic {
		if issue.EpicID != "" {
			if err := validateEpicTarget(ctx, tx, issue.EpicID); err != nil {
				return err
			}
		}
		if previousEpic != "" {
			if _, err := tx.ExecContext(ctx, deleteDependencySQL,
				id, previousEpic, string(issuestorage.DepTypeParentChild)); err != nil {
				return fmt.Errorf("unlink %s from epic %s: %w", id, previousEpic, err)
			}
		}
		if issue.EpicID != "" {
			if _, err := tx.ExecContext(ctx, insertDependencySQL,
				id, issue.EpicID, string(issuestorage.DepTypeParentChild), time.Now().UTC()); err != nil && !isUniqueConstraintError(err, "") {
				return fmt.Errorf("link %s to epic %s: %w", id, issue.EpicID, err)
			}
		}
	}

	args := issueArgs(issue)
	// UPDATE takes the id last, not first.
	args = append(args[1:], id)
	if _, err := tx.ExecContext(ctx, updateIssueSQL, args...); err != nil {
		return fmt.Errorf("modify %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit modify: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, clearEpicRefsSQL, id); err != nil {
		return fmt.Errorf("delete %s: clear epic refs: %w", id, err)
	}
	result, err := tx.ExecContext(ctx, deleteIssueSQL, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete %s: %w", id, issuestorage.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, filter *issuestorage.ListFilter) ([]*issuestorage.Issue, error) {
	query := listIssuesSQL
	var clauses []string
	var args []any
	if filter != nil {
		if filter.Status != nil {
			clauses = append(clauses, "status = ?")
			args = append(args, string(*filter.Status))
		}
		if filter.Priority != nil {
			clauses = append(clauses, "priority = ?")
			args = append(args, int(*filter.Priority))
		}
		if filter.Type != nil {
			clauses = append(clauses, `"type" = ?`)
			args = append(args, string(*filter.Type))
		}
		if filter.EpicID != nil {
			clauses = append(clauses, "epic_id = ?")
			args = append(args, *filter.EpicID)
		}
		if filter.Assignee != nil {
			clauses = append(clauses, "assignee = ?")
			args = append(args, *filter.Assignee)
		}
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id;"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	var issues []*issuestorage.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		// Label conjunctions filter in Go; labels live in a JSON column.
		if filter != nil && len(filter.Labels) > 0 && !filter.Matches(issue) {
			continue
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	return issues, nil
}

func (s *Store) AddDependency(ctx context.Context, from, to string, depType issuestorage.DependencyType) error {
	if !issuestorage.ValidDependencyTypes[depType] {
		return fmt.Errorf("dependency type %q: %w", depType, issuestorage.ErrValidation)
	}
	if from == to {
		return fmt.Errorf("%s: %w", from, issuestorage.ErrSelfDependency)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add dependency: %w", err)
	}
	defer tx.Rollback()

	for _, id := range []string{from, to} {
		if err := issueExists(ctx, tx, id); err != nil {
			return err
		}
	}
	if depType == issuestorage.DepTypeParentChild {
		if err := validateEpicTarget(ctx, tx, to); err != nil {
			return err
		}
	}
	if depType.AffectsReadiness() {
		var marker int
		err := tx.QueryRowContext(ctx, cycleCheckSQL, to, from).Scan(&marker)
		if err == nil {
			return fmt.Errorf("%s → %s: %w", from, to, issuestorage.ErrCycle)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("cycle check: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, insertDependencySQL, from, to, string(depType), time.Now().UTC()); err != nil {
		if isUniqueConstraintError(err, "") {
			return fmt.Errorf("%s → %s (%s): %w", from, to, depType, issuestorage.ErrDuplicateDependency)
		}
		return fmt.Errorf("add dependency %s → %s: %w", from, to, err)
	}

	if depType == issuestorage.DepTypeParentChild {
		if _, err := tx.ExecContext(ctx, `UPDATE issues SET epic_id = ? WHERE id = ?;`, to, from); err != nil {
			return fmt.Errorf("set epic of %s: %w", from, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add dependency: %w", err)
	}
	return nil
}

func (s *Store) RemoveDependency(ctx context.Context, from, to string, depType issuestorage.DependencyType) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remove dependency: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, deleteDependencySQL, from, to, string(depType))
	if err != nil {
		return fmt.Errorf("remove dependency %s → %s: %w", from, to, err)
	}
	affected, _ := result.RowsAffected()
	if affected > 0 && depType == issuestorage.DepTypeParentChild {
		if _, err := tx.ExecContext(ctx, `UPDATE issues SET epic_id = '' WHERE id = ? AND epic_id = ?;`, from, to); err != nil {
			return fmt.Errorf("clear epic of %s: %w", from, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit remove dependency: %w", err)
	}
	return nil
}

func (s *Store) ImportDependency(ctx context.Context, dep issuestorage.Dependency) error {
	if !issuestorage.ValidDependencyTypes[dep.Type] {
		return fmt.Errorf("dependency type %q: %w", dep.Type, issuestorage.ErrValidation)
	}
	if dep.FromID == dep.ToID {
		return fmt.Errorf("%s: %w", dep.FromID, issuestorage.ErrSelfDependency)
	}
	createdAt := dep.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import dependency: %w", err)
	}
	defer tx.Rollback()

	for _, id := range []string{dep.FromID, dep.ToID} {
		if err := issueExists(ctx, tx, id); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, insertDependencySQL,
		dep.FromID, dep.ToID, string(dep.Type), createdAt.UTC()); err != nil {
		if isUniqueConstraintError(err, "") {
			return nil // already present, import is idempotent
		}
		return fmt.Errorf("import dependency %s → %s: %w", dep.FromID, dep.ToID, err)
	}
	if dep.Type == issuestorage.DepTypeParentChild {
		if _, err := tx.ExecContext(ctx, `UPDATE issues SET epic_id = ? WHERE id = ?;`, dep.ToID, dep.FromID); err != nil {
			return fmt.Errorf("set epic of %s: %w", dep.FromID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import dependency: %w", err)
	}
	return nil
}

func (s *Store) ListDependencies(ctx context.Context) ([]issuestorage.Dependency, error) {
	rows, err := s.db.QueryContext(ctx, listDependenciesSQL)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	defer rows.Close()

	var deps []issuestorage.Dependency
	for rows.Next() {
		var dep issuestorage.Dependency
		var depType string
		if err := rows.Scan(&dep.FromID, &dep.ToID, &depType, &dep.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		dep.Type = issuestorage.DependencyType(depType)
		dep.CreatedAt = dep.CreatedAt.UTC()
		deps = append(deps, dep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	return deps, nil
}

func (s *Store) GetNextChildID(ctx context.Context, parentID string) (string, error) {
	if _, err := s.Get(ctx, parentID); err != nil {
		return "", err
	}
	if err := idgen.CheckHierarchyDepth(parentID, idgen.DefaultMaxHierarchyDepth); err != nil {
		return "", err
	}

	pattern := escapeLike(parentID) + ".%"
	rows, err := s.db.QueryContext(ctx, childIDsSQL, pattern)
	if err != nil {
		return "", fmt.Errorf("scan children of %s: %w", parentID, err)
	}
	defer rows.Close()

	used := make(map[int]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan child id: %w", err)
		}
		parent, num, ok := idgen.ParseHierarchicalID(id)
		if ok && parent == parentID {
			used[num] = true
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("scan children of %s: %w", parentID, err)
	}

	// Smallest unused positive sequence, so gaps left by deletes refill.
	next := 1
	for used[next] {
		next++
	}
	return idgen.ChildID(parentID, next), nil
}

func (s *Store) Doctor(ctx context.Context, fix bool) ([]string, error) {
	var findings []string

	issues, err := s.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*issuestorage.Issue, len(issues))
	for _, issue := range issues {
		byID[issue.ID] = issue
	}

	deps, err := s.ListDependencies(ctx)
	if err != nil {
		return nil, err
	}

	for _, dep := range deps {
		if byID[dep.FromID] == nil || byID[dep.ToID] == nil {
			findings = append(findings, fmt.Sprintf("orphaned edge %s → %s (%s)", dep.FromID, dep.ToID, dep.Type))
			if fix {
				if err := s.RemoveDependency(ctx, dep.FromID, dep.ToID, dep.Type); err != nil {
					return findings, err
				}
			}
		}
	}

	edgeParent := make(map[string]string)
	for _, dep := range deps {
		if dep.Type == issuestorage.DepTypeParentChild {
			edgeParent[dep.FromID] = dep.ToID
		}
	}

	for _, issue := range issues {
		if issue.EpicID != "" {
			epic := byID[issue.EpicID]
			switch {
			case epic == nil:
				findings = append(findings, fmt.Sprintf("%s: epic %s does not exist", issue.ID, issue.EpicID))
				if fix {
					if err := s.Modify(ctx, issue.ID, func(i *issuestorage.Issue) error {
						i.EpicID = ""
						return nil
					}); err != nil {
						return findings, err
					}
				}
			case epic.Type != issuestorage.TypeEpic:
				findings = append(findings, fmt.Sprintf("%s: epic %s has type %s", issue.ID, issue.EpicID, epic.Type))
			case edgeParent[issue.ID] != issue.EpicID:
				findings = append(findings, fmt.Sprintf("%s: missing parent-child edge to %s", issue.ID, issue.EpicID))
				if fix {
					_, err := s.db.ExecContext(ctx, insertDependencySQL,
						issue.ID, issue.EpicID, string(issuestorage.DepTypeParentChild), time.Now().UTC())
					if err != nil && !isUniqueConstraintError(err, "") {
						return findings, err
					}
				}
			}
		}
		if issue.Status == issuestorage.StatusClosed && issue.ClosedAt == nil {
			findings = append(findings, fmt.Sprintf("%s: closed without closed_at", issue.ID))
		}
		if issue.Status != issuestorage.StatusClosed && issue.ClosedAt != nil {
			findings = append(findings, fmt.Sprintf("%s: closed_at set on %s issue", issue.ID, issue.Status))
		}
	}

	return findings, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func issueExists(ctx context.Context, q execer, id string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM issues WHERE id = ?;`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", id, issuestorage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lookup %s: %w", id, err)
	}
	return nil
}

func validateEpicTarget(ctx context.Context, q execer, epicID string) error {
	var issueType string
	err := q.QueryRowContext(ctx, `SELECT "type" FROM issues WHERE id = ?;`, epicID).Scan(&issueType)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("epic %s: %w", epicID, issuestorage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lookup epic %s: %w", epicID, err)
	}
	if issuestorage.IssueType(issueType) != issuestorage.TypeEpic {
		return fmt.Errorf("epic_id target %s has type %s, want epic: %w", epicID, issueType, issuestorage.ErrValidation)
	}
	return nil
}

func issueArgs(issue *issuestorage.Issue) []any {
	labels, _ := json.Marshal(orEmpty(issue.Labels))
	var closedAt any
	if issue.ClosedAt != nil {
		closedAt = issue.ClosedAt.UTC()
	}
	return []any{
		issue.ID,
		issue.Title,
		issue.Description,
		string(issue.Status),
		int(issue.Priority),
		string(issue.Type),
		issue.EpicID,
		string(labels),
		issue.Assignee,
		issue.CreatedBy,
		issue.CreatedAt.UTC(),
		issue.UpdatedAt.UTC(),
		closedAt,
		issue.CloseReason,
		issue.ContentHash,
	}
}

func scanIssue(scanner rowScanner) (*issuestorage.Issue, error) {
	var issue issuestorage.Issue
	var status, issueType, labelsJSON string
	var priority int
	var closedAt sql.NullTime

	if err := scanner.Scan(
		&issue.ID,
		&issue.Title,
		&issue.Description,
		&status,
		&priority,
		&issueType,
		&issue.EpicID,
		&labelsJSON,
		&issue.Assignee,
		&issue.CreatedBy,
		&issue.CreatedAt,
		&issue.UpdatedAt,
		&closedAt,
		&issue.CloseReason,
		&issue.ContentHash,
	); err != nil {
		return nil, err
	}

	issue.Status = issuestorage.Status(status)
	issue.Priority = issuestorage.Priority(priority)
	issue.Type = issuestorage.IssueType(issueType)
	issue.CreatedAt = issue.CreatedAt.UTC()
	issue.UpdatedAt = issue.UpdatedAt.UTC()
	if closedAt.Valid {
		t := closedAt.Time.UTC()
		issue.ClosedAt = &t
	}
	if labelsJSON != "" {
		if err := json.Unmarshal([]byte(labelsJSON), &issue.Labels); err != nil {
			return nil, fmt.Errorf("invalid labels JSON: %w", err)
		}
	}
	if len(issue.Labels) == 0 {
		issue.Labels = nil
	}
	return &issue, nil
}

func orEmpty(labels []string) []string {
	if labels == nil {
		return []string{}
	}
	return labels
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func isUniqueConstraintError(err error, column string) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	if !strings.Contains(text, "unique constraint failed") {
		return false
	}
	return column == "" || strings.Contains(text, strings.ToLower(column))
}
