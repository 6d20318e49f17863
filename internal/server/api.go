package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/mhoffm/taskdeck/internal/auth"
	"github.com/mhoffm/taskdeck/internal/instrumentation"
	"github.com/mhoffm/taskdeck/internal/logging"
	"github.com/mhoffm/taskdeck/internal/task"
)

// APIConfig holds configuration for the HTTP API surface.
type APIConfig struct {
	// ServiceName and ServiceVersion are reported on GET /.
	ServiceName    string
	ServiceVersion string
}

// identityKey carries the resolved caller identity through the request
// context. A nil value means the ownerless demo scope.
type identityKey struct{}

// NewAPIHandler builds the HTTP API router. All /api/tasks routes pass
// through the bearer middleware; outside demo mode a missing or invalid
// credential fails there with an Unauthorized envelope before any
// handler runs.
func NewAPIHandler(sc *ServerContext, config APIConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics(sc))

	r.Get("/", serviceInfoHandler(config))

	r.Route("/api/tasks", func(r chi.Router) {
		r.Use(bearerIdentity(sc))
		r.Get("/", listTasksHandler(sc))
		r.Post("/", createTaskHandler(sc))
		r.Get("/{id}", getTaskHandler(sc))
		r.Put("/{id}", updateTaskHandler(sc))
		r.Delete("/{id}", deleteTaskHandler(sc))
		r.Patch("/{id}/complete", completeTaskHandler(sc))
	})

	return r
}

// bearerIdentity resolves the Authorization header into an owner scope.
// In demo mode the credential is optional and an absent one yields the
// shared ownerless view; otherwise every failure is a 401 envelope.
func bearerIdentity(sc *ServerContext) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := auth.CredentialFromHeader(r.Header.Get("Authorization"))

			var owner *uuid.UUID
			if sc.DemoMode() {
				if sc.Resolver() != nil {
					if id, ok := sc.Resolver().OptionalIdentity(credential); ok {
						owner = &id
					}
				}
			} else {
				id, err := sc.Resolver().RequireIdentity(credential)
				if err != nil {
					recordAuthAttempt(r.Context(), sc, false)
					sc.Logger().Debug("credential rejected",
						logging.Err(err),
						slog.String("token", logging.SanitizeToken(credential)),
					)
					renderEnvelope(w, task.Failure(task.KindUnauthorized, "missing or invalid credential"))
					return
				}
				owner = &id
			}
			recordAuthAttempt(r.Context(), sc, true)

			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), identityKey{}, owner)))
		})
	}
}

func ownerFromContext(ctx context.Context) *uuid.UUID {
	owner, _ := ctx.Value(identityKey{}).(*uuid.UUID)
	return owner
}

func recordAuthAttempt(ctx context.Context, sc *ServerContext, ok bool) {
	metrics := sc.Metrics()
	if metrics == nil {
		return
	}
	result := instrumentation.StatusSuccess
	if !ok {
		result = instrumentation.StatusError
	}
	metrics.RecordAuthAttempt(ctx, result)
}

func serviceInfoHandler(config APIConfig) http.HandlerFunc {
	info := map[string]any{
		"service": config.ServiceName,
		"version": config.ServiceVersion,
		"endpoints": map[string]string{
			"api":    "/api/tasks",
			"mcp":    "/mcp",
			"health": "/healthz",
			"ready":  "/readyz",
		},
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(info)
	}
}

func listTasksHandler(sc *ServerContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := task.ParseStatusFilter(r.URL.Query().Get("status"))
		if err != nil {
			renderEnvelope(w, task.Failure(task.KindInvalidArgument, err.Error()))
			return
		}
		env := sc.Dispatcher().List(r.Context(), task.ListRequest{
			Owner:  ownerFromContext(r.Context()),
			Filter: filter,
		})
		renderEnvelope(w, env)
	}
}

// createTaskBody is the POST /api/tasks request body.
type createTaskBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func createTaskHandler(sc *ServerContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createTaskBody
		if !decodeBody(w, r, &body) {
			return
		}
		env := sc.Dispatcher().Add(r.Context(), task.AddRequest{
			Owner:       ownerFromContext(r.Context()),
			Title:       body.Title,
			Description: body.Description,
		})
		renderEnvelopeStatus(w, env, http.StatusCreated)
	}
}

func getTaskHandler(sc *ServerContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := taskIDParam(w, r)
		if !ok {
			return
		}
		env := sc.Dispatcher().Get(r.Context(), task.GetRequest{
			Owner: ownerFromContext(r.Context()),
			ID:    id,
		})
		renderEnvelope(w, env)
	}
}

// updateTaskBody is the PUT /api/tasks/{id} request body. Absent fields
// leave the task untouched.
type updateTaskBody struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func updateTaskHandler(sc *ServerContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := taskIDParam(w, r)
		if !ok {
			return
		}
		var body updateTaskBody
		if !decodeBody(w, r, &body) {
			return
		}
		env := sc.Dispatcher().Update(r.Context(), task.UpdateRequest{
			Owner:       ownerFromContext(r.Context()),
			Target:      task.Selector{ID: &id},
			Title:       body.Title,
			Description: body.Description,
		})
		renderEnvelope(w, env)
	}
}

func deleteTaskHandler(sc *ServerContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := taskIDParam(w, r)
		if !ok {
			return
		}
		env := sc.Dispatcher().Delete(r.Context(), task.DeleteRequest{
			Owner:  ownerFromContext(r.Context()),
			Target: task.Selector{ID: &id},
		})
		if env.IsError() {
			renderEnvelope(w, env)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// completeTaskBody is the PATCH /api/tasks/{id}/complete request body.
// The completed flag is required; a bare PATCH is ambiguous.
type completeTaskBody struct {
	Completed *bool `json:"completed"`
}

func completeTaskHandler(sc *ServerContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := taskIDParam(w, r)
		if !ok {
			return
		}
		var body completeTaskBody
		if !decodeBody(w, r, &body) {
			return
		}
		if body.Completed == nil {
			renderEnvelope(w, task.Failure(task.KindInvalidArgument, "completed is required and must be a boolean"))
			return
		}
		env := sc.Dispatcher().SetCompleted(r.Context(), task.SetCompletedRequest{
			Owner:     ownerFromContext(r.Context()),
			ID:        id,
			Completed: *body.Completed,
		})
		renderEnvelope(w, env)
	}
}

func taskIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderEnvelope(w, task.Failure(task.KindInvalidArgument, "task id must be a valid UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		renderEnvelope(w, task.Failure(task.KindInvalidArgument, "request body must be valid JSON"))
		return false
	}
	return true
}

func renderEnvelope(w http.ResponseWriter, env task.Envelope) {
	renderEnvelopeStatus(w, env, env.HTTPStatus())
}

// renderEnvelopeStatus writes the envelope with an overridden success
// status; failures always use the envelope's own mapping.
func renderEnvelopeStatus(w http.ResponseWriter, env task.Envelope, successStatus int) {
	status := successStatus
	if env.IsError() {
		status = env.HTTPStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(env.JSON()))
}

// requestMetrics records one observation per request against the chi
// route pattern, keeping path cardinality bounded.
func requestMetrics(sc *ServerContext) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			metrics := sc.Metrics()
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			metrics.RecordHTTPRequest(r.Context(), r.Method, route, ww.Status(), time.Since(start))
		})
	}
}
