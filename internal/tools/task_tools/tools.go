package task_tools

import (
	"context"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mhoffm/taskdeck/internal/instrumentation"
	"github.com/mhoffm/taskdeck/internal/logging"
	"github.com/mhoffm/taskdeck/internal/server"
	"github.com/mhoffm/taskdeck/internal/task"
)

// RegisterTaskTools registers all task management tools with the MCP
// server. In read-only mode only list_tasks is available.
func RegisterTaskTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	listTasksTool := mcp.NewTool(task.ToolListTasks,
		mcp.WithDescription("Retrieve tasks from the list"),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User ID owning the tasks (UUID)"),
		),
		mcp.WithString("status",
			mcp.Description("Filter by status: all, pending or completed (default: all)"),
		),
	)
	s.AddTool(listTasksTool, toolHandler(sc, task.ToolListTasks))

	if readOnly {
		return nil
	}

	addTaskTool := mcp.NewTool(task.ToolAddTask,
		mcp.WithDescription("Create a new task"),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User ID owning the task (UUID)"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Task title"),
		),
		mcp.WithString("description",
			mcp.Description("Task description (optional)"),
		),
	)
	s.AddTool(addTaskTool, toolHandler(sc, task.ToolAddTask))

	completeTaskTool := mcp.NewTool(task.ToolCompleteTask,
		mcp.WithDescription("Mark a task as complete by ID or title"),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User ID owning the task (UUID)"),
		),
		mcp.WithString("task_id",
			mcp.Description("Task ID (optional)"),
		),
		mcp.WithString("title",
			mcp.Description("Task title to search (optional)"),
		),
	)
	s.AddTool(completeTaskTool, toolHandler(sc, task.ToolCompleteTask))

	deleteTaskTool := mcp.NewTool(task.ToolDeleteTask,
		mcp.WithDescription("Remove a task from the list by ID or title"),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User ID owning the task (UUID)"),
		),
		mcp.WithString("task_id",
			mcp.Description("Task ID (optional)"),
		),
		mcp.WithString("title",
			mcp.Description("Task title to search (optional)"),
		),
	)
	s.AddTool(deleteTaskTool, toolHandler(sc, task.ToolDeleteTask))

	updateTaskTool := mcp.NewTool(task.ToolUpdateTask,
		mcp.WithDescription("Modify task title or description by ID or current title"),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User ID owning the task (UUID)"),
		),
		mcp.WithString("task_id",
			mcp.Description("Task ID (optional)"),
		),
		mcp.WithString("current_title",
			mcp.Description("Current task title to search (optional)"),
		),
		mcp.WithString("title",
			mcp.Description("New title (optional)"),
		),
		mcp.WithString("description",
			mcp.Description("New description (optional)"),
		),
	)
	s.AddTool(updateTaskTool, toolHandler(sc, task.ToolUpdateTask))

	return nil
}

// toolHandler builds the shared handler for one tool: dispatch the
// argument bag, record the invocation, and render the envelope as a
// single JSON text payload. Failure envelopes are still tool results,
// not protocol errors.
func toolHandler(sc *server.ServerContext, name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})

		start := time.Now()
		env := sc.Dispatcher().DispatchTool(ctx, name, args)
		recordInvocation(ctx, sc.Metrics(), name, env, time.Since(start))

		return mcp.NewToolResultText(env.JSON()), nil
	}
}

func recordInvocation(ctx context.Context, metrics *instrumentation.Metrics, name string, env task.Envelope, elapsed time.Duration) {
	status := instrumentation.StatusSuccess
	if env.IsError() {
		status = instrumentation.StatusError
		slog.Debug("tool call failed",
			logging.Tool(name),
			slog.String("kind", string(env.Kind)),
		)
	}
	if metrics != nil {
		metrics.RecordToolInvocation(ctx, name, status, elapsed)
	}
}
