package task

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mhoffm/taskdeck/internal/logging"
)

// internalErrorMessage is the only text a caller ever sees for a store
// fault; the raw error goes to the log.
const internalErrorMessage = "internal storage error"

// Options control dispatcher behavior that the data model leaves open.
type Options struct {
	// ClearDescriptionOnBlank makes an update with a present-but-blank
	// description clear the stored description. When false (the default)
	// a blank description is ignored, matching the behavior the HTTP
	// clients of the original backend relied on.
	ClearDescriptionOnBlank bool
}

// Dispatcher executes task operations against a Store and converts every
// outcome, including store faults, into an Envelope. Within one call the
// order is fixed: argument validation, then target resolution, then the
// mutation; a failure at any step leaves the store untouched.
type Dispatcher struct {
	store  Store
	opts   Options
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher over the given store.
func NewDispatcher(store Store, opts Options, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{store: store, opts: opts, logger: logger}
}

// Selector identifies the target of a mutating operation: an explicit
// task ID, or a title to match exactly first and by case-insensitive
// substring second.
type Selector struct {
	ID    *uuid.UUID
	Title string
}

func (s Selector) empty() bool {
	return s.ID == nil && strings.TrimSpace(s.Title) == ""
}

// AddRequest creates a task.
type AddRequest struct {
	Owner       *uuid.UUID
	Title       string
	Description string
}

// ListRequest lists tasks for an owner with an optional status filter.
type ListRequest struct {
	Owner  *uuid.UUID
	Filter StatusFilter
}

// CompleteRequest marks the selected task completed.
type CompleteRequest struct {
	Owner  *uuid.UUID
	Target Selector
}

// DeleteRequest removes the selected task permanently.
type DeleteRequest struct {
	Owner  *uuid.UUID
	Target Selector
}

// UpdateRequest patches the selected task. Nil fields are left
// untouched; a present-but-blank Title is rejected.
type UpdateRequest struct {
	Owner       *uuid.UUID
	Target      Selector
	Title       *string
	Description *string
}

// GetRequest reads one task by ID.
type GetRequest struct {
	Owner *uuid.UUID
	ID    uuid.UUID
}

// SetCompletedRequest sets the completed flag to an explicit value.
type SetCompletedRequest struct {
	Owner     *uuid.UUID
	ID        uuid.UUID
	Completed bool
}

// Add creates a task. The title must be non-blank after trimming; the
// description is normalized (trimmed, blank meaning absent).
func (d *Dispatcher) Add(ctx context.Context, req AddRequest) Envelope {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return Failure(KindInvalidArgument, "title must not be blank")
	}

	t, err := d.store.Create(ctx, CreateInput{
		Owner:       req.Owner,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		return d.internal("add", err)
	}
	return withTask(OK("add"), t)
}

// List returns the owner's tasks, newest-created first. An empty result
// is a success, not an error.
func (d *Dispatcher) List(ctx context.Context, req ListRequest) Envelope {
	filter := req.Filter
	if filter == "" {
		filter = StatusAll
	}
	tasks, err := d.store.List(ctx, req.Owner, filter)
	if err != nil {
		return d.internal("list", err)
	}
	env := OK("list")
	env.List = &ListPayload{Tasks: tasks, Total: len(tasks)}
	return env
}

// Complete resolves the target within the owner scope and marks it
// completed.
func (d *Dispatcher) Complete(ctx context.Context, req CompleteRequest) Envelope {
	t, fail := d.resolve(ctx, "complete", req.Owner, req.Target)
	if fail != nil {
		return *fail
	}
	updated, err := d.store.SetCompleted(ctx, t.ID, true)
	if err != nil {
		return d.internal("complete", err)
	}
	return withTask(OK("complete"), updated)
}

// Delete resolves the target within the owner scope and removes it.
func (d *Dispatcher) Delete(ctx context.Context, req DeleteRequest) Envelope {
	t, fail := d.resolve(ctx, "delete", req.Owner, req.Target)
	if fail != nil {
		return *fail
	}
	if err := d.store.Delete(ctx, t.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Failure(KindNotFound, "task not found")
		}
		return d.internal("delete", err)
	}
	env := OK("delete")
	env.TaskID = t.ID.String()
	env.Title = t.Title
	return env
}

// Update resolves the target and applies the supplied patches. Argument
// validation happens before any store access.
func (d *Dispatcher) Update(ctx context.Context, req UpdateRequest) Envelope {
	patch := UpdateInput{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return Failure(KindInvalidArgument, "title must not be blank")
		}
		patch.Title = &title
	}
	if req.Description != nil {
		desc := strings.TrimSpace(*req.Description)
		if desc != "" || d.opts.ClearDescriptionOnBlank {
			patch.Description = &desc
		}
	}

	t, fail := d.resolve(ctx, "update", req.Owner, req.Target)
	if fail != nil {
		return *fail
	}
	updated, err := d.store.Update(ctx, t.ID, patch)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Failure(KindNotFound, "task not found")
		}
		return d.internal("update", err)
	}
	return withTask(OK("update"), updated)
}

// Get reads a single task by ID within the owner scope.
func (d *Dispatcher) Get(ctx context.Context, req GetRequest) Envelope {
	t, fail := d.resolve(ctx, "get", req.Owner, Selector{ID: &req.ID})
	if fail != nil {
		return *fail
	}
	return withTask(OK("get"), t)
}

// SetCompleted sets the completed flag to an explicit value within the
// owner scope.
func (d *Dispatcher) SetCompleted(ctx context.Context, req SetCompletedRequest) Envelope {
	t, fail := d.resolve(ctx, "set_completed", req.Owner, Selector{ID: &req.ID})
	if fail != nil {
		return *fail
	}
	updated, err := d.store.SetCompleted(ctx, t.ID, req.Completed)
	if err != nil {
		return d.internal("set_completed", err)
	}
	return withTask(OK("set_completed"), updated)
}

// DispatchTool maps a tool name and its loosely-typed argument bag onto
// one of the five task operations.
func (d *Dispatcher) DispatchTool(ctx context.Context, name string, args map[string]any) Envelope {
	switch name {
	case ToolAddTask:
		req, fail := ParseAddRequest(args)
		if fail != nil {
			return *fail
		}
		return d.Add(ctx, req)
	case ToolListTasks:
		req, fail := ParseListRequest(args)
		if fail != nil {
			return *fail
		}
		return d.List(ctx, req)
	case ToolCompleteTask:
		req, fail := ParseCompleteRequest(args)
		if fail != nil {
			return *fail
		}
		return d.Complete(ctx, req)
	case ToolDeleteTask:
		req, fail := ParseDeleteRequest(args)
		if fail != nil {
			return *fail
		}
		return d.Delete(ctx, req)
	case ToolUpdateTask:
		req, fail := ParseUpdateRequest(args)
		if fail != nil {
			return *fail
		}
		return d.Update(ctx, req)
	default:
		return Failure(KindInvalidArgument, "unknown tool: "+name)
	}
}

// resolve locates the target task. Resolution order: explicit ID, then
// exact title match, then case-insensitive substring match where the
// most recently created task wins. Tasks outside the owner scope are
// reported as not found rather than revealing their existence.
func (d *Dispatcher) resolve(ctx context.Context, operation string, owner *uuid.UUID, target Selector) (Task, *Envelope) {
	if target.ID != nil {
		t, err := d.store.Get(ctx, *target.ID)
		if errors.Is(err, ErrNotFound) {
			return Task{}, failurePtr(KindNotFound, "task not found")
		}
		if err != nil {
			env := d.internal(operation, err)
			return Task{}, &env
		}
		if !ownerMatches(owner, t.Owner) {
			return Task{}, failurePtr(KindNotFound, "task not found")
		}
		return t, nil
	}

	title := strings.TrimSpace(target.Title)
	if title == "" {
		return Task{}, failurePtr(KindMissingSelector, "provide task_id or title")
	}

	t, err := d.store.FindByTitle(ctx, owner, title)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, ErrNotFound) {
		env := d.internal(operation, err)
		return Task{}, &env
	}

	t, err = d.store.SearchByTitle(ctx, owner, title)
	if errors.Is(err, ErrNotFound) {
		return Task{}, failurePtr(KindNotFound, "task not found")
	}
	if err != nil {
		env := d.internal(operation, err)
		return Task{}, &env
	}
	return t, nil
}

func (d *Dispatcher) internal(operation string, err error) Envelope {
	d.logger.Error("store operation failed",
		logging.Operation(operation),
		logging.Err(err),
	)
	return Failure(KindInternal, internalErrorMessage)
}

// ownerMatches reports whether a task row is visible in the given owner
// scope. A nil scope (the ownerless/demo view) sees every row.
func ownerMatches(scope, rowOwner *uuid.UUID) bool {
	if scope == nil {
		return true
	}
	return rowOwner != nil && *rowOwner == *scope
}

func failurePtr(kind ErrorKind, message string) *Envelope {
	env := Failure(kind, message)
	return &env
}
