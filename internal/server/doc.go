// Package server provides the shared runtime of the taskdeck service:
// the ServerContext tying the task store, dispatcher and credential
// resolver together, the HTTP API surface, Kubernetes health probes,
// and the dedicated Prometheus metrics listener.
//
// # Key Components
//
// ServerContext owns the store and dispatcher and exposes them to both
// the MCP tool surface and the HTTP API. Shutting it down cancels the
// server context and closes the store.
//
// NewAPIHandler builds the chi router for the REST surface under
// /api/tasks. Every route resolves the caller's bearer token to an
// owner scope first; in demo mode the credential is optional and an
// absent one yields the shared ownerless view.
//
// HealthChecker serves /healthz and /readyz; readiness covers the
// ready flag, the shutdown state and store reachability.
//
// MetricsServer serves /metrics on its own port so operational metrics
// stay off the task API listener.
package server
