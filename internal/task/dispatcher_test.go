package task

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, opts Options) (*Dispatcher, *SQLiteStore) {
	t.Helper()
	store := newTestStore(t)
	return NewDispatcher(store, opts, nil), store
}

func seedTask(t *testing.T, store *SQLiteStore, owner *uuid.UUID, title string, at time.Time) Task {
	t.Helper()
	return mustCreate(t, store, owner, title, at)
}

func TestDispatcherAdd(t *testing.T) {
	d, _ := newTestDispatcher(t, Options{})
	owner := ownerID(t)

	env := d.Add(context.Background(), AddRequest{
		Owner:       owner,
		Title:       "  Buy milk  ",
		Description: " two liters ",
	})
	require.False(t, env.IsError(), env.Message)
	assert.Equal(t, "add", env.Operation)
	require.NotNil(t, env.Task)
	assert.Equal(t, "Buy milk", env.Task.Title)
	assert.Equal(t, "two liters", env.Task.Description)
	assert.False(t, env.Task.Completed)
	assert.Equal(t, env.Task.ID.String(), env.TaskID)
}

func TestDispatcherAddBlankTitleLeavesStoreUntouched(t *testing.T) {
	d, store := newTestDispatcher(t, Options{})
	owner := ownerID(t)

	for _, title := range []string{"", "   ", "\t\n"} {
		env := d.Add(context.Background(), AddRequest{Owner: owner, Title: title})
		require.True(t, env.IsError())
		assert.Equal(t, KindInvalidArgument, env.Kind)
	}

	tasks, err := store.List(context.Background(), owner, StatusAll)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestDispatcherListPartition(t *testing.T) {
	d, store := newTestDispatcher(t, Options{})
	ctx := context.Background()
	owner := ownerID(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	seedTask(t, store, owner, "one", base)
	done := seedTask(t, store, owner, "two", base.Add(time.Second))
	seedTask(t, store, owner, "three", base.Add(2*time.Second))
	_, err := store.SetCompleted(ctx, done.ID, true)
	require.NoError(t, err)

	all := d.List(ctx, ListRequest{Owner: owner, Filter: StatusAll})
	pending := d.List(ctx, ListRequest{Owner: owner, Filter: StatusPending})
	completed := d.List(ctx, ListRequest{Owner: owner, Filter: StatusCompleted})
	for _, env := range []Envelope{all, pending, completed} {
		require.False(t, env.IsError())
		require.NotNil(t, env.List)
		assert.Equal(t, len(env.List.Tasks), env.List.Total)
	}
	assert.Equal(t, all.List.Total, pending.List.Total+completed.List.Total)

	// An empty filter defaults to all.
	defaulted := d.List(ctx, ListRequest{Owner: owner})
	require.NotNil(t, defaulted.List)
	assert.Equal(t, all.List.Total, defaulted.List.Total)
}

func TestDispatcherListEmptyIsSuccess(t *testing.T) {
	d, _ := newTestDispatcher(t, Options{})

	env := d.List(context.Background(), ListRequest{Owner: ownerID(t)})
	require.False(t, env.IsError())
	require.NotNil(t, env.List)
	assert.Equal(t, 0, env.List.Total)
	assert.NotNil(t, env.List.Tasks)
}

func TestDispatcherCompleteByID(t *testing.T) {
	d, store := newTestDispatcher(t, Options{})
	owner := ownerID(t)
	created := seedTask(t, store, owner, "finish report", time.Now())

	env := d.Complete(context.Background(), CompleteRequest{
		Owner:  owner,
		Target: Selector{ID: &created.ID},
	})
	require.False(t, env.IsError(), env.Message)
	require.NotNil(t, env.Task)
	assert.True(t, env.Task.Completed)

	// Completing an already completed task succeeds and stays completed.
	again := d.Complete(context.Background(), CompleteRequest{
		Owner:  owner,
		Target: Selector{ID: &created.ID},
	})
	require.False(t, again.IsError())
	assert.True(t, again.Task.Completed)
}

func TestDispatcherResolutionOrder(t *testing.T) {
	d, store := newTestDispatcher(t, Options{})
	ctx := context.Background()
	owner := ownerID(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	exact := seedTask(t, store, owner, "Buy milk", base)
	newer := seedTask(t, store, owner, "buy milk and eggs", base.Add(time.Second))

	// Exact title wins over a newer substring match.
	env := d.Complete(ctx, CompleteRequest{Owner: owner, Target: Selector{Title: "Buy milk"}})
	require.False(t, env.IsError(), env.Message)
	assert.Equal(t, exact.ID.String(), env.TaskID)

	// A non-exact title falls back to case-insensitive substring, most
	// recently created first.
	env = d.Complete(ctx, CompleteRequest{Owner: owner, Target: Selector{Title: "MILK"}})
	require.False(t, env.IsError(), env.Message)
	assert.Equal(t, newer.ID.String(), env.TaskID)

	// An explicit ID short-circuits title matching entirely.
	env = d.Complete(ctx, CompleteRequest{Owner: owner, Target: Selector{ID: &exact.ID, Title: "buy milk and eggs"}})
	require.False(t, env.IsError())
	assert.Equal(t, exact.ID.String(), env.TaskID)
}

func TestDispatcherResolveMissingSelector(t *testing.T) {
	d, _ := newTestDispatcher(t, Options{})

	env := d.Complete(context.Background(), CompleteRequest{Owner: ownerID(t)})
	require.True(t, env.IsError())
	assert.Equal(t, KindMissingSelector, env.Kind)

	blank := d.Delete(context.Background(), DeleteRequest{Owner: ownerID(t), Target: Selector{Title: "   "}})
	require.True(t, blank.IsError())
	assert.Equal(t, KindMissingSelector, blank.Kind)
}

func TestDispatcherDelete(t *testing.T) {
	d, store := newTestDispatcher(t, Options{})
	ctx := context.Background()
	owner := ownerID(t)
	created := seedTask(t, store, owner, "obsolete", time.Now())

	env := d.Delete(ctx, DeleteRequest{Owner: owner, Target: Selector{ID: &created.ID}})
	require.False(t, env.IsError(), env.Message)
	assert.Equal(t, created.ID.String(), env.TaskID)
	assert.Equal(t, "obsolete", env.Title)
	assert.Nil(t, env.Task)

	// Deleting the same target again reports NotFound, and repeating the
	// call keeps reporting NotFound.
	for range 2 {
		again := d.Delete(ctx, DeleteRequest{Owner: owner, Target: Selector{ID: &created.ID}})
		require.True(t, again.IsError())
		assert.Equal(t, KindNotFound, again.Kind)
	}
}

func TestDispatcherUpdate(t *testing.T) {
	d, store := newTestDispatcher(t, Options{})
	ctx := context.Background()
	owner := ownerID(t)
	created := seedTask(t, store, owner, "draft", time.Now())

	newTitle := "final"
	newDesc := "reviewed"
	env := d.Update(ctx, UpdateRequest{
		Owner:       owner,
		Target:      Selector{ID: &created.ID},
		Title:       &newTitle,
		Description: &newDesc,
	})
	require.False(t, env.IsError(), env.Message)
	require.NotNil(t, env.Task)
	assert.Equal(t, "final", env.Task.Title)
	assert.Equal(t, "reviewed", env.Task.Description)

	// Nil fields leave the task untouched.
	env = d.Update(ctx, UpdateRequest{Owner: owner, Target: Selector{ID: &created.ID}})
	require.False(t, env.IsError())
	assert.Equal(t, "final", env.Task.Title)
	assert.Equal(t, "reviewed", env.Task.Description)
}

func TestDispatcherUpdateBlankTitleRejectedBeforeResolution(t *testing.T) {
	d, _ := newTestDispatcher(t, Options{})

	blank := "   "
	// The selector is missing too; argument validation reports first.
	env := d.Update(context.Background(), UpdateRequest{Owner: ownerID(t), Title: &blank})
	require.True(t, env.IsError())
	assert.Equal(t, KindInvalidArgument, env.Kind)
}

func TestDispatcherUpdateBlankDescription(t *testing.T) {
	ctx := context.Background()
	owner := ownerID(t)
	blank := ""

	t.Run("ignored by default", func(t *testing.T) {
		d, store := newTestDispatcher(t, Options{})
		created, err := store.Create(ctx, CreateInput{Owner: owner, Title: "keep", Description: "important"})
		require.NoError(t, err)

		env := d.Update(ctx, UpdateRequest{Owner: owner, Target: Selector{ID: &created.ID}, Description: &blank})
		require.False(t, env.IsError())
		assert.Equal(t, "important", env.Task.Description)
	})

	t.Run("clears when configured", func(t *testing.T) {
		d, store := newTestDispatcher(t, Options{ClearDescriptionOnBlank: true})
		created, err := store.Create(ctx, CreateInput{Owner: owner, Title: "keep", Description: "important"})
		require.NoError(t, err)

		env := d.Update(ctx, UpdateRequest{Owner: owner, Target: Selector{ID: &created.ID}, Description: &blank})
		require.False(t, env.IsError())
		assert.Equal(t, "", env.Task.Description)
	})
}

func TestDispatcherOwnerIsolation(t *testing.T) {
	d, store := newTestDispatcher(t, Options{})
	ctx := context.Background()
	alice := ownerID(t)
	bob := ownerID(t)

	aliceTask := seedTask(t, store, alice, "alice secret", time.Now())

	// Another owner's task is reported as not found, by ID and by title.
	env := d.Get(ctx, GetRequest{Owner: bob, ID: aliceTask.ID})
	require.True(t, env.IsError())
	assert.Equal(t, KindNotFound, env.Kind)

	env = d.Complete(ctx, CompleteRequest{Owner: bob, Target: Selector{Title: "alice secret"}})
	require.True(t, env.IsError())
	assert.Equal(t, KindNotFound, env.Kind)

	// The ownerless scope sees everything.
	env = d.Get(ctx, GetRequest{ID: aliceTask.ID})
	require.False(t, env.IsError())
}

func TestDispatcherSetCompleted(t *testing.T) {
	d, store := newTestDispatcher(t, Options{})
	ctx := context.Background()
	owner := ownerID(t)
	created := seedTask(t, store, owner, "toggle", time.Now())

	env := d.SetCompleted(ctx, SetCompletedRequest{Owner: owner, ID: created.ID, Completed: true})
	require.False(t, env.IsError())
	assert.True(t, env.Task.Completed)

	env = d.SetCompleted(ctx, SetCompletedRequest{Owner: owner, ID: created.ID, Completed: false})
	require.False(t, env.IsError())
	assert.False(t, env.Task.Completed)
}

func TestDispatchToolFullLifecycle(t *testing.T) {
	d, _ := newTestDispatcher(t, Options{})
	ctx := context.Background()
	user := uuid.New().String()

	env := d.DispatchTool(ctx, ToolAddTask, map[string]any{
		"user_id":     user,
		"title":       "Write minutes",
		"description": "from Monday's sync",
	})
	require.False(t, env.IsError(), env.Message)
	taskID := env.TaskID

	env = d.DispatchTool(ctx, ToolListTasks, map[string]any{"user_id": user, "status": "pending"})
	require.False(t, env.IsError())
	require.NotNil(t, env.List)
	assert.Equal(t, 1, env.List.Total)

	env = d.DispatchTool(ctx, ToolUpdateTask, map[string]any{
		"user_id": user,
		"task_id": taskID,
		"title":   "Write and send minutes",
	})
	require.False(t, env.IsError(), env.Message)
	assert.Equal(t, "Write and send minutes", env.Task.Title)

	env = d.DispatchTool(ctx, ToolCompleteTask, map[string]any{"user_id": user, "title": "minutes"})
	require.False(t, env.IsError(), env.Message)
	assert.True(t, env.Task.Completed)

	env = d.DispatchTool(ctx, ToolDeleteTask, map[string]any{"user_id": user, "task_id": taskID})
	require.False(t, env.IsError(), env.Message)

	env = d.DispatchTool(ctx, ToolListTasks, map[string]any{"user_id": user})
	require.False(t, env.IsError())
	assert.Equal(t, 0, env.List.Total)
}

func TestDispatchToolUnknownTool(t *testing.T) {
	d, _ := newTestDispatcher(t, Options{})

	env := d.DispatchTool(context.Background(), "revoke_task", map[string]any{"user_id": uuid.New().String()})
	require.True(t, env.IsError())
	assert.Equal(t, KindInvalidArgument, env.Kind)
}

func TestDispatchToolRequiresUserID(t *testing.T) {
	d, _ := newTestDispatcher(t, Options{})
	ctx := context.Background()

	for _, args := range []map[string]any{
		{"title": "no user"},
		{"user_id": "", "title": "blank user"},
		{"user_id": "not-a-uuid", "title": "bad user"},
		{"user_id": 42, "title": "wrong type"},
	} {
		env := d.DispatchTool(ctx, ToolAddTask, args)
		require.True(t, env.IsError())
		assert.Equal(t, KindInvalidArgument, env.Kind)
	}
}

func TestParseDeleteRequestDegradesBadIDToTitle(t *testing.T) {
	user := uuid.New().String()

	req, fail := ParseDeleteRequest(map[string]any{"user_id": user, "task_id": "groceries"})
	require.Nil(t, fail)
	assert.Nil(t, req.Target.ID)
	assert.Equal(t, "groceries", req.Target.Title)

	// Other operations keep the strict reading: a bad task_id falls
	// through to the title field, and with no title there is no selector.
	_, fail = ParseCompleteRequest(map[string]any{"user_id": user, "task_id": "groceries"})
	require.NotNil(t, fail)
	assert.Equal(t, KindMissingSelector, fail.Kind)
}

func TestParseUpdateRequestPatchPresence(t *testing.T) {
	user := uuid.New().String()

	req, fail := ParseUpdateRequest(map[string]any{
		"user_id":       user,
		"current_title": "draft",
		"description":   "",
	})
	require.Nil(t, fail)
	assert.Nil(t, req.Title)
	require.NotNil(t, req.Description)
	assert.Equal(t, "", *req.Description)
	assert.Equal(t, "draft", req.Target.Title)
}

func TestParseListRequestRejectsUnknownStatus(t *testing.T) {
	_, fail := ParseListRequest(map[string]any{"user_id": uuid.New().String(), "status": "done"})
	require.NotNil(t, fail)
	assert.Equal(t, KindInvalidArgument, fail.Kind)
}

func TestEnvelopeHTTPStatus(t *testing.T) {
	assert.Equal(t, 200, OK("list").HTTPStatus())
	assert.Equal(t, 400, Failure(KindMissingSelector, "m").HTTPStatus())
	assert.Equal(t, 400, Failure(KindInvalidArgument, "m").HTTPStatus())
	assert.Equal(t, 404, Failure(KindNotFound, "m").HTTPStatus())
	assert.Equal(t, 401, Failure(KindUnauthorized, "m").HTTPStatus())
	assert.Equal(t, 500, Failure(KindInternal, "m").HTTPStatus())
}
