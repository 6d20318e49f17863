package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	owner       TEXT,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	completed   INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_owner_completed ON tasks(owner, completed);
`

// taskColumns is the shared SELECT column list; scanTask must match it.
const taskColumns = "id, owner, title, description, completed, created_at"

// SQLiteStore is the Store implementation backed by SQLite. Timestamps
// are stored as unix nanoseconds so creation order stays total even for
// tasks created within the same second.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (and creates if needed) the task database at path.
// Use ":memory:" for an ephemeral store in tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open task database: %w", err)
	}
	// A single connection keeps :memory: databases alive and serializes
	// writers, matching SQLite's own single-writer model.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize task schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Create(ctx context.Context, input CreateInput) (Task, error) {
	t := Task{
		ID:          uuid.New(),
		Owner:       input.Owner,
		Title:       input.Title,
		Description: input.Description,
		CreatedAt:   s.now().UTC(),
	}

	var owner sql.NullString
	if t.Owner != nil {
		owner = sql.NullString{String: t.Owner.String(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO tasks (id, owner, title, description, completed, created_at) VALUES (?, ?, ?, ?, 0, ?)",
		t.ID.String(), owner, t.Title, t.Description, t.CreatedAt.UnixNano())
	if err != nil {
		return Task{}, fmt.Errorf("failed to insert task: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id uuid.UUID) (Task, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", id.String())
	return scanTask(row)
}

func (s *SQLiteStore) List(ctx context.Context, owner *uuid.UUID, filter StatusFilter) ([]Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks"
	where, args := ownerPredicate(owner)
	switch filter {
	case StatusPending:
		where = append(where, "completed = 0")
	case StatusCompleted:
		where = append(where, "completed = 1")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id uuid.UUID, patch UpdateInput) (Task, error) {
	sets := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if len(sets) == 0 {
		return s.Get(ctx, id)
	}
	args = append(args, id.String())

	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return Task{}, fmt.Errorf("failed to update task: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return Task{}, fmt.Errorf("failed to update task: %w", err)
	} else if n == 0 {
		return Task{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) SetCompleted(ctx context.Context, id uuid.UUID, completed bool) (Task, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET completed = ? WHERE id = ?", boolToInt(completed), id.String())
	if err != nil {
		return Task{}, fmt.Errorf("failed to set task completion: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return Task{}, fmt.Errorf("failed to set task completion: %w", err)
	} else if n == 0 {
		return Task{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) FindByTitle(ctx context.Context, owner *uuid.UUID, title string) (Task, error) {
	where, args := ownerPredicate(owner)
	where = append(where, "title = ?")
	args = append(args, title)

	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE "+strings.Join(where, " AND ")+
			" ORDER BY created_at DESC, id DESC LIMIT 1", args...)
	return scanTask(row)
}

func (s *SQLiteStore) SearchByTitle(ctx context.Context, owner *uuid.UUID, substring string) (Task, error) {
	where, args := ownerPredicate(owner)
	// instr avoids LIKE wildcard escaping for user-supplied text.
	where = append(where, "instr(lower(title), lower(?)) > 0")
	args = append(args, substring)

	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE "+strings.Join(where, " AND ")+
			" ORDER BY created_at DESC, id DESC LIMIT 1", args...)
	return scanTask(row)
}

func ownerPredicate(owner *uuid.UUID) ([]string, []any) {
	if owner == nil {
		return nil, nil
	}
	return []string{"owner = ?"}, []any{owner.String()}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var (
		t         Task
		idStr     string
		owner     sql.NullString
		completed int
		createdNs int64
	)
	err := row.Scan(&idStr, &owner, &t.Title, &t.Description, &completed, &createdNs)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("failed to scan task row: %w", err)
	}

	t.ID, err = uuid.Parse(idStr)
	if err != nil {
		return Task{}, fmt.Errorf("corrupt task id %q: %w", idStr, err)
	}
	if owner.Valid {
		ownerID, err := uuid.Parse(owner.String)
		if err != nil {
			return Task{}, fmt.Errorf("corrupt task owner %q: %w", owner.String, err)
		}
		t.Owner = &ownerID
	}
	t.Completed = completed != 0
	t.CreatedAt = time.Unix(0, createdNs).UTC()
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
