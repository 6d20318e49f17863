package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mhoffm/taskdeck/internal/auth"
	"github.com/mhoffm/taskdeck/internal/instrumentation"
	"github.com/mhoffm/taskdeck/internal/logging"
	"github.com/mhoffm/taskdeck/internal/server"
	"github.com/mhoffm/taskdeck/internal/task"
	"github.com/mhoffm/taskdeck/internal/tools/task_tools"
)

// DefaultDBPath is the task database location when neither --db nor
// TASKDECK_DB is set.
const DefaultDBPath = "taskdeck.db"

// ServeConfig holds the resolved serve settings after flags and
// environment fallbacks have been merged.
type ServeConfig struct {
	Transport        string
	HTTPAddr         string
	DBPath           string
	AuthSecret       string
	DemoMode         bool
	ClearBlankDesc   bool
	DebugMode        bool
	Yolo             bool
	DisableStreaming bool
	Metrics          MetricsConfig
}

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

func newServeCmd() *cobra.Command {
	var (
		debugMode        bool
		transport        string
		httpAddr         string
		dbPath           string
		authSecret       string
		demoMode         bool
		clearBlankDesc   bool
		yolo             bool
		disableStreaming bool
		metricsEnabled   bool
		metricsAddr      string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the task server",
		Long: `Start the taskdeck server.

Supports multiple transport types:
  - stdio: MCP over standard input/output (default)
  - streamable-http: HTTP with the REST API, the MCP endpoint at /mcp,
    and health probes

Authentication:
  Callers present HS256-signed bearer tokens. The shared secret comes from
  --auth-secret or the TASKDECK_AUTH_SECRET env var and is required unless
  --demo is set. In demo mode unauthenticated HTTP callers operate on a
  shared ownerless task list.

Safety Mode:
  By default the MCP surface only exposes list_tasks. Use --yolo to enable
  the mutating tools (add, complete, delete, update).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := ServeConfig{
				Transport:        transport,
				HTTPAddr:         httpAddr,
				DBPath:           dbPath,
				AuthSecret:       authSecret,
				DemoMode:         demoMode,
				ClearBlankDesc:   clearBlankDesc,
				DebugMode:        debugMode,
				Yolo:             yolo,
				DisableStreaming: disableStreaming,
				Metrics: MetricsConfig{
					Enabled: metricsEnabled,
					Addr:    metricsAddr,
				},
			}
			applyServeEnv(cmd, &config)
			return runServe(config)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().StringVar(&dbPath, "db", DefaultDBPath, "Path to the task database. Can also use TASKDECK_DB env var.")
	cmd.Flags().StringVar(&authSecret, "auth-secret", "", "Shared secret for bearer token verification. Can also use TASKDECK_AUTH_SECRET env var.")
	cmd.Flags().BoolVar(&demoMode, "demo", false, "Allow unauthenticated HTTP callers to operate on a shared ownerless task list")
	cmd.Flags().BoolVar(&clearBlankDesc, "clear-blank-description", false, "Make an update with a blank description clear the stored description instead of ignoring it")
	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable mutating MCP tools (add, complete, delete, update). Default exposes list_tasks only.")
	cmd.Flags().BoolVar(&disableStreaming, "disable-streaming", false, "Disable streaming for HTTP transport (for compatibility with certain clients)")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// applyServeEnv fills settings from the environment for flags the user
// did not set explicitly. Flags always win.
func applyServeEnv(cmd *cobra.Command, config *ServeConfig) {
	if !cmd.Flags().Changed("auth-secret") && config.AuthSecret == "" {
		config.AuthSecret = os.Getenv("TASKDECK_AUTH_SECRET")
	}
	if !cmd.Flags().Changed("db") {
		if path := os.Getenv("TASKDECK_DB"); path != "" {
			config.DBPath = path
		}
	}
	if !cmd.Flags().Changed("metrics-enabled") {
		if os.Getenv("METRICS_ENABLED") == "false" {
			config.Metrics.Enabled = false
		}
	}
	if !cmd.Flags().Changed("metrics-addr") {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			config.Metrics.Addr = addr
		}
	}
}

func runServe(config ServeConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logging.Setup(config.DebugMode)

	if config.AuthSecret == "" && !config.DemoMode {
		return fmt.Errorf("auth secret is required: set --auth-secret or TASKDECK_AUTH_SECRET (or run with --demo)")
	}

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			if config.Transport != "stdio" {
				log.Printf("Error during instrumentation shutdown: %v", err)
			}
		}
	}()

	// Start metrics server if enabled and not in stdio mode
	var metricsServer *server.MetricsServer
	if config.Transport != "stdio" && config.Metrics.Enabled && provider.Enabled() {
		var err error
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    config.Metrics.Addr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		// Wait for metrics server to be ready or fail
		select {
		case <-metricsReady:
			log.Printf("Metrics server started on %s", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
	}

	store, err := task.OpenSQLite(config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open task store: %w", err)
	}

	contextConfig := server.ContextConfig{
		Store:    store,
		DemoMode: config.DemoMode,
		DispatcherOptions: task.Options{
			ClearDescriptionOnBlank: config.ClearBlankDesc,
		},
	}
	if config.AuthSecret != "" {
		verifier, err := auth.NewVerifier(config.AuthSecret)
		if err != nil {
			_ = store.Close()
			return err
		}
		contextConfig.Verifier = verifier
	}

	serverContext, err := server.NewServerContext(shutdownCtx, contextConfig)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to create server context: %w", err)
	}

	// Set metrics on server context for tool and store instrumentation
	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
	}
	defer func() {
		// Shutdown metrics server first
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error during metrics server shutdown: %v", err)
			}
		}
		if err := serverContext.Shutdown(); err != nil {
			if config.Transport != "stdio" {
				log.Printf("Error during server context shutdown: %v", err)
			}
		}
	}()

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("taskdeck", version,
		mcpserver.WithToolCapabilities(true),
	)

	// readOnly is the inverse of yolo
	readOnly := !config.Yolo

	// Log the mode for visibility (only for non-stdio transports)
	if config.Transport != "stdio" {
		if readOnly {
			log.Println("Starting server in READ-ONLY mode (use --yolo to enable mutating tools)")
		} else {
			log.Println("Starting server with mutating tools enabled (--yolo flag is set)")
		}
		if config.DemoMode {
			log.Println("Demo mode: unauthenticated callers share one ownerless task list")
		}
	}

	if err := task_tools.RegisterTaskTools(mcpSrv, serverContext, readOnly); err != nil {
		return fmt.Errorf("failed to register task tools: %w", err)
	}

	// Start the appropriate server based on transport type
	switch config.Transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "streamable-http":
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, serverContext, config)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", config.Transport)
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, serverContext *server.ServerContext, config ServeConfig) error {
	mcpOptions := []mcpserver.StreamableHTTPOption{
		mcpserver.WithEndpointPath("/mcp"),
	}
	if config.DisableStreaming {
		mcpOptions = append(mcpOptions, mcpserver.WithDisableStreaming(true))
	}
	mcpHandler := mcpserver.NewStreamableHTTPServer(mcpSrv, mcpOptions...)

	apiHandler := server.NewAPIHandler(serverContext, server.APIConfig{
		ServiceName:    "taskdeck",
		ServiceVersion: version,
	})

	healthChecker := server.NewHealthChecker(serverContext)

	mux := http.NewServeMux()
	healthChecker.RegisterHealthEndpoints(mux)
	mux.Handle("/mcp", mcpHandler)
	mux.Handle("/", apiHandler)

	httpServer := &http.Server{
		Addr:              config.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	slog.Info("starting HTTP server",
		"addr", config.HTTPAddr,
		"api", "/api/tasks",
		"mcp", "/mcp",
		"health", "/healthz",
	)
	if config.Metrics.Enabled {
		slog.Info("metrics endpoint", "addr", config.Metrics.Addr+"/metrics")
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping HTTP server")
		healthChecker.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	slog.Info("HTTP server gracefully stopped")
	return nil
}
