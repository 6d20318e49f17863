package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhoffm/taskdeck/internal/auth"
	"github.com/mhoffm/taskdeck/internal/task"
)

const apiTestSecret = "api-test-secret"

type apiFixture struct {
	handler  http.Handler
	verifier *auth.Verifier
	sc       *ServerContext
}

func newAPIFixture(t *testing.T, demoMode bool) *apiFixture {
	t.Helper()

	store, err := task.OpenSQLite(":memory:")
	require.NoError(t, err)

	verifier, err := auth.NewVerifier(apiTestSecret)
	require.NoError(t, err)

	sc, err := NewServerContext(context.Background(), ContextConfig{
		Store:    store,
		Verifier: verifier,
		DemoMode: demoMode,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	return &apiFixture{
		handler:  NewAPIHandler(sc, APIConfig{ServiceName: "taskdeck", ServiceVersion: "test"}),
		verifier: verifier,
		sc:       sc,
	}
}

func (f *apiFixture) token(t *testing.T, subject uuid.UUID) string {
	t.Helper()
	token, err := f.verifier.Issue(subject.String(), time.Hour, nil)
	require.NoError(t, err)
	return token
}

func (f *apiFixture) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) task.Envelope {
	t.Helper()
	var env task.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestAPIRequiresCredential(t *testing.T) {
	f := newAPIFixture(t, false)

	rec := f.request(t, http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, task.KindUnauthorized, env.Kind)

	rec = f.request(t, http.MethodGet, "/api/tasks", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIExpiredTokenRejected(t *testing.T) {
	f := newAPIFixture(t, false)

	expired, err := f.verifier.Issue(uuid.New().String(), -time.Minute, nil)
	require.NoError(t, err)

	rec := f.request(t, http.MethodGet, "/api/tasks", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPITaskLifecycle(t *testing.T) {
	f := newAPIFixture(t, false)
	token := f.token(t, uuid.New())

	rec := f.request(t, http.MethodPost, "/api/tasks", token, map[string]string{
		"title":       "Write report",
		"description": "for Friday",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeEnvelope(t, rec)
	require.NotNil(t, created.Task)
	taskID := created.Task.ID.String()

	rec = f.request(t, http.MethodGet, "/api/tasks", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeEnvelope(t, rec)
	require.NotNil(t, listed.List)
	assert.Equal(t, 1, listed.List.Total)

	rec = f.request(t, http.MethodGet, "/api/tasks/"+taskID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.request(t, http.MethodPut, "/api/tasks/"+taskID, token, map[string]string{
		"title": "Write and send report",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeEnvelope(t, rec)
	assert.Equal(t, "Write and send report", updated.Task.Title)
	assert.Equal(t, "for Friday", updated.Task.Description)

	rec = f.request(t, http.MethodPatch, "/api/tasks/"+taskID+"/complete", token, map[string]bool{
		"completed": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	completed := decodeEnvelope(t, rec)
	assert.True(t, completed.Task.Completed)

	rec = f.request(t, http.MethodDelete, "/api/tasks/"+taskID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = f.request(t, http.MethodGet, "/api/tasks/"+taskID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIStatusMapping(t *testing.T) {
	f := newAPIFixture(t, false)
	token := f.token(t, uuid.New())

	// Blank title -> 400 InvalidArgument.
	rec := f.request(t, http.MethodPost, "/api/tasks", token, map[string]string{"title": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, task.KindInvalidArgument, decodeEnvelope(t, rec).Kind)

	// Unknown task -> 404 NotFound.
	rec = f.request(t, http.MethodGet, "/api/tasks/"+uuid.New().String(), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, task.KindNotFound, decodeEnvelope(t, rec).Kind)

	// Malformed id -> 400.
	rec = f.request(t, http.MethodGet, "/api/tasks/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown status filter -> 400.
	rec = f.request(t, http.MethodGet, "/api/tasks?status=done", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Missing completed flag -> 400.
	rec = f.request(t, http.MethodPatch, "/api/tasks/"+uuid.New().String()+"/complete", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Garbage body -> 400.
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIOwnerIsolation(t *testing.T) {
	f := newAPIFixture(t, false)
	aliceToken := f.token(t, uuid.New())
	bobToken := f.token(t, uuid.New())

	rec := f.request(t, http.MethodPost, "/api/tasks", aliceToken, map[string]string{"title": "alice task"})
	require.Equal(t, http.StatusCreated, rec.Code)
	taskID := decodeEnvelope(t, rec).Task.ID.String()

	// Bob cannot see or touch Alice's task.
	rec = f.request(t, http.MethodGet, "/api/tasks/"+taskID, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.request(t, http.MethodDelete, "/api/tasks/"+taskID, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.request(t, http.MethodGet, "/api/tasks", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeEnvelope(t, rec).List.Total)
}

func TestAPIDemoMode(t *testing.T) {
	f := newAPIFixture(t, true)

	// No credential: operates on the shared ownerless view.
	rec := f.request(t, http.MethodPost, "/api/tasks", "", map[string]string{"title": "shared task"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.request(t, http.MethodGet, "/api/tasks", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeEnvelope(t, rec).List.Total)

	// A valid credential still scopes to its own identity.
	token := f.token(t, uuid.New())
	rec = f.request(t, http.MethodGet, "/api/tasks", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeEnvelope(t, rec).List.Total)
}

func TestAPIServiceInfo(t *testing.T) {
	f := newAPIFixture(t, false)

	rec := f.request(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var info map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "taskdeck", info["service"])
	assert.Equal(t, "test", info["version"])
}
