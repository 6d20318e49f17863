package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mhoffm/taskdeck/internal/auth"
	"github.com/mhoffm/taskdeck/internal/instrumentation"
	"github.com/mhoffm/taskdeck/internal/task"
)

// ContextConfig holds the dependencies a ServerContext is built from.
type ContextConfig struct {
	// Store is the task store. Required.
	Store task.Store

	// Verifier validates bearer tokens. Required unless DemoMode is set.
	Verifier *auth.Verifier

	// DispatcherOptions tune dispatcher behavior.
	DispatcherOptions task.Options

	// DemoMode disables the credential requirement on the HTTP API and
	// lets unauthenticated callers operate on the shared ownerless view.
	DemoMode bool

	// Logger receives operational logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// ServerContext holds the shared state of a running server: the store,
// the dispatcher over it, and the credential resolver. Both the MCP tool
// surface and the HTTP API operate through one ServerContext.
type ServerContext struct {
	ctx        context.Context
	cancel     context.CancelFunc
	store      task.Store
	dispatcher *task.Dispatcher
	resolver   *auth.Resolver
	verifier   *auth.Verifier
	demoMode   bool
	logger     *slog.Logger

	mu       sync.RWMutex
	metrics  *instrumentation.Metrics
	shutdown bool
}

// NewServerContext creates a new server context.
func NewServerContext(ctx context.Context, config ContextConfig) (*ServerContext, error) {
	if config.Store == nil {
		return nil, errors.New("store is required")
	}
	if config.Verifier == nil && !config.DemoMode {
		return nil, errors.New("verifier is required outside demo mode")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)

	sc := &ServerContext{
		ctx:      shutdownCtx,
		cancel:   cancel,
		store:    config.Store,
		verifier: config.Verifier,
		demoMode: config.DemoMode,
		logger:   logger,
	}
	if config.Verifier != nil {
		sc.resolver = auth.NewResolver(config.Verifier)
	}
	sc.dispatcher = task.NewDispatcher(sc.instrumentedStore(), config.DispatcherOptions, logger)
	return sc, nil
}

// Context returns the server context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Store returns the task store.
func (sc *ServerContext) Store() task.Store {
	return sc.store
}

// Dispatcher returns the task dispatcher.
func (sc *ServerContext) Dispatcher() *task.Dispatcher {
	return sc.dispatcher
}

// Resolver returns the identity resolver, nil in demo mode without a
// configured verifier.
func (sc *ServerContext) Resolver() *auth.Resolver {
	return sc.resolver
}

// Verifier returns the token verifier, nil in demo mode without one.
func (sc *ServerContext) Verifier() *auth.Verifier {
	return sc.verifier
}

// DemoMode reports whether the HTTP API accepts unauthenticated callers.
func (sc *ServerContext) DemoMode() bool {
	return sc.demoMode
}

// Logger returns the operational logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Metrics returns the metrics recorder, nil when instrumentation is
// disabled.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetMetrics sets the metrics recorder used for tool and store
// instrumentation.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Ping checks whether the store is reachable, for readiness probes.
func (sc *ServerContext) Ping(ctx context.Context) error {
	type pinger interface {
		Ping(context.Context) error
	}
	if p, ok := sc.store.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// IsShutdown returns whether the server has been shutdown.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context and closes the store.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return sc.store.Close()
}
