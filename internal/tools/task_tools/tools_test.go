package task_tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mhoffm/taskdeck/internal/auth"
	"github.com/mhoffm/taskdeck/internal/server"
	"github.com/mhoffm/taskdeck/internal/task"
)

func newTestServerContext(t *testing.T) *server.ServerContext {
	t.Helper()

	store, err := task.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	verifier, err := auth.NewVerifier("tools-test-secret")
	if err != nil {
		t.Fatalf("failed to create verifier: %v", err)
	}
	sc, err := server.NewServerContext(context.Background(), server.ContextConfig{
		Store:    store,
		Verifier: verifier,
	})
	if err != nil {
		t.Fatalf("failed to create server context: %v", err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func callTool(t *testing.T, sc *server.ServerContext, name string, args map[string]interface{}) task.Envelope {
	t.Helper()

	handler := toolHandler(sc, name)
	request := mcp.CallToolRequest{}
	request.Params.Name = name
	request.Params.Arguments = args

	result, err := handler(context.Background(), request)
	if err != nil {
		t.Fatalf("tool handler returned protocol error: %v", err)
	}
	if len(result.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(result.Content))
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}

	var env task.Envelope
	if err := json.Unmarshal([]byte(text.Text), &env); err != nil {
		t.Fatalf("tool result is not an envelope: %v\n%s", err, text.Text)
	}
	return env
}

func TestToolHandlerLifecycle(t *testing.T) {
	sc := newTestServerContext(t)
	user := uuid.New().String()

	env := callTool(t, sc, task.ToolAddTask, map[string]interface{}{
		"user_id": user,
		"title":   "Buy milk",
	})
	if env.IsError() {
		t.Fatalf("add_task failed: %s", env.Message)
	}

	env = callTool(t, sc, task.ToolListTasks, map[string]interface{}{
		"user_id": user,
	})
	if env.IsError() || env.List == nil || env.List.Total != 1 {
		t.Fatalf("list_tasks = %+v, want one task", env)
	}

	env = callTool(t, sc, task.ToolCompleteTask, map[string]interface{}{
		"user_id": user,
		"title":   "milk",
	})
	if env.IsError() || env.Task == nil || !env.Task.Completed {
		t.Fatalf("complete_task = %+v, want completed task", env)
	}

	env = callTool(t, sc, task.ToolDeleteTask, map[string]interface{}{
		"user_id": user,
		"title":   "Buy milk",
	})
	if env.IsError() {
		t.Fatalf("delete_task failed: %s", env.Message)
	}
}

func TestToolHandlerFailureIsToolResultNotProtocolError(t *testing.T) {
	sc := newTestServerContext(t)

	env := callTool(t, sc, task.ToolCompleteTask, map[string]interface{}{
		"user_id": uuid.New().String(),
	})
	if !env.IsError() {
		t.Fatal("expected failure envelope for missing selector")
	}
	if env.Kind != task.KindMissingSelector {
		t.Errorf("kind = %s, want %s", env.Kind, task.KindMissingSelector)
	}
}

func TestToolHandlerMissingArguments(t *testing.T) {
	sc := newTestServerContext(t)

	// A request with no argument bag at all still yields an envelope.
	env := callTool(t, sc, task.ToolAddTask, nil)
	if !env.IsError() {
		t.Fatal("expected failure envelope for missing user_id")
	}
	if env.Kind != task.KindInvalidArgument {
		t.Errorf("kind = %s, want %s", env.Kind, task.KindInvalidArgument)
	}
}

func TestRegisterTaskToolsReadOnly(t *testing.T) {
	sc := newTestServerContext(t)

	full := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithToolCapabilities(true))
	if err := RegisterTaskTools(full, sc, false); err != nil {
		t.Fatalf("RegisterTaskTools() error = %v", err)
	}

	readOnly := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithToolCapabilities(true))
	if err := RegisterTaskTools(readOnly, sc, true); err != nil {
		t.Fatalf("RegisterTaskTools(readOnly) error = %v", err)
	}
}
