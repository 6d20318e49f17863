package server

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mhoffm/taskdeck/internal/instrumentation"
	"github.com/mhoffm/taskdeck/internal/task"
)

// instrumentedStore wraps the server's store so every operation is
// recorded against the metrics provider. It reads the recorder through
// the ServerContext on each call, so metrics attached after startup are
// picked up.
type instrumentedStore struct {
	sc *ServerContext
}

var _ task.Store = (*instrumentedStore)(nil)

func (sc *ServerContext) instrumentedStore() task.Store {
	return &instrumentedStore{sc: sc}
}

// record reports one store operation. A task.ErrNotFound is a normal
// outcome, not a store failure.
func (s *instrumentedStore) record(ctx context.Context, operation string, start time.Time, err error) {
	metrics := s.sc.Metrics()
	if metrics == nil {
		return
	}
	status := instrumentation.StatusSuccess
	if err != nil && !errors.Is(err, task.ErrNotFound) {
		status = instrumentation.StatusError
	}
	metrics.RecordStoreOperation(ctx, operation, status, time.Since(start))
}

func (s *instrumentedStore) Create(ctx context.Context, input task.CreateInput) (task.Task, error) {
	start := time.Now()
	t, err := s.sc.store.Create(ctx, input)
	s.record(ctx, "create", start, err)
	return t, err
}

func (s *instrumentedStore) Get(ctx context.Context, id uuid.UUID) (task.Task, error) {
	start := time.Now()
	t, err := s.sc.store.Get(ctx, id)
	s.record(ctx, "get", start, err)
	return t, err
}

func (s *instrumentedStore) List(ctx context.Context, owner *uuid.UUID, filter task.StatusFilter) ([]task.Task, error) {
	start := time.Now()
	tasks, err := s.sc.store.List(ctx, owner, filter)
	s.record(ctx, "list", start, err)
	return tasks, err
}

func (s *instrumentedStore) Update(ctx context.Context, id uuid.UUID, patch task.UpdateInput) (task.Task, error) {
	start := time.Now()
	t, err := s.sc.store.Update(ctx, id, patch)
	s.record(ctx, "update", start, err)
	return t, err
}

func (s *instrumentedStore) SetCompleted(ctx context.Context, id uuid.UUID, completed bool) (task.Task, error) {
	start := time.Now()
	t, err := s.sc.store.SetCompleted(ctx, id, completed)
	s.record(ctx, "set_completed", start, err)
	return t, err
}

func (s *instrumentedStore) Delete(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := s.sc.store.Delete(ctx, id)
	s.record(ctx, "delete", start, err)
	return err
}

func (s *instrumentedStore) FindByTitle(ctx context.Context, owner *uuid.UUID, title string) (task.Task, error) {
	start := time.Now()
	t, err := s.sc.store.FindByTitle(ctx, owner, title)
	s.record(ctx, "find_by_title", start, err)
	return t, err
}

func (s *instrumentedStore) SearchByTitle(ctx context.Context, owner *uuid.UUID, substring string) (task.Task, error) {
	start := time.Now()
	t, err := s.sc.store.SearchByTitle(ctx, owner, substring)
	s.record(ctx, "search_by_title", start, err)
	return t, err
}

func (s *instrumentedStore) Close() error {
	return s.sc.store.Close()
}
