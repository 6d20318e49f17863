package task

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Task is a single task row. Owner is nil for ownerless tasks created in
// demo mode; such tasks are only visible to callers without an owner
// context.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Owner       *uuid.UUID `json:"owner,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
}

// StatusFilter selects which tasks a list operation returns.
type StatusFilter string

const (
	StatusAll       StatusFilter = "all"
	StatusPending   StatusFilter = "pending"
	StatusCompleted StatusFilter = "completed"
)

// ParseStatusFilter validates a status filter value. The empty string
// defaults to StatusAll.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch StatusFilter(s) {
	case "":
		return StatusAll, nil
	case StatusAll, StatusPending, StatusCompleted:
		return StatusFilter(s), nil
	default:
		return "", fmt.Errorf("invalid status filter %q (expected all, pending or completed)", s)
	}
}

// CreateInput carries the fields for Store.Create. Title must already be
// trimmed and non-empty; Description must already be normalized (trimmed,
// empty meaning absent).
type CreateInput struct {
	Owner       *uuid.UUID
	Title       string
	Description string
}

// UpdateInput is a partial patch for Store.Update. Nil fields are left
// untouched.
type UpdateInput struct {
	Title       *string
	Description *string
}
