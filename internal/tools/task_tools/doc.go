// Package task_tools provides the MCP tools for task management.
//
// This package registers the five task tools with the MCP server and
// forwards their argument bags to the task operation dispatcher. Every
// call returns a single text content block holding the JSON-encoded
// result envelope, for success and failure alike.
//
// # Available Tools
//
//   - add_task: Create a new task
//   - list_tasks: Retrieve tasks, optionally filtered by status
//   - complete_task: Mark a task as complete by ID or title
//   - delete_task: Remove a task by ID or title
//   - update_task: Modify task title or description by ID or current title
//
// All tools require a user_id argument; there is no anonymous tool
// access. In read-only mode only list_tasks is registered.
package task_tools
