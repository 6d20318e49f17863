package task

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Store lookups that match no task.
var ErrNotFound = errors.New("task not found")

// Store is the persistence facade for tasks. List and the title lookups
// are owner-scoped when owner is non-nil; a nil owner matches every row
// (the ownerless/demo view). Lookups order newest-created first so that
// callers picking "the" match out of several get a deterministic answer.
type Store interface {
	// Create inserts a task and returns the post-commit row, including
	// the server-assigned ID and creation timestamp.
	Create(ctx context.Context, input CreateInput) (Task, error)

	// Get returns the task with the given ID, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (Task, error)

	// List returns tasks matching the owner scope and status filter,
	// newest-created first.
	List(ctx context.Context, owner *uuid.UUID, filter StatusFilter) ([]Task, error)

	// Update applies the non-nil fields of patch and returns the
	// post-commit row, or ErrNotFound.
	Update(ctx context.Context, id uuid.UUID, patch UpdateInput) (Task, error)

	// SetCompleted sets the completed flag and returns the post-commit
	// row, or ErrNotFound.
	SetCompleted(ctx context.Context, id uuid.UUID, completed bool) (Task, error)

	// Delete removes the task permanently, or returns ErrNotFound.
	Delete(ctx context.Context, id uuid.UUID) error

	// FindByTitle returns the newest task whose title equals title
	// (case-sensitive), or ErrNotFound.
	FindByTitle(ctx context.Context, owner *uuid.UUID, title string) (Task, error)

	// SearchByTitle returns the newest task whose title contains
	// substring case-insensitively, or ErrNotFound.
	SearchByTitle(ctx context.Context, owner *uuid.UUID, substring string) (Task, error)

	// Close releases the underlying store resources.
	Close() error
}
