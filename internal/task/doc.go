// Package task implements the task domain core: the Task model, the
// Store facade over the relational store, and the operation dispatcher
// shared by the HTTP API and the MCP tool surface.
//
// # Store
//
// Store is an abstract persistence contract (create/get/list/update/
// set-completed/delete plus title lookup). SQLiteStore is the concrete
// implementation; every mutating call commits before returning and the
// returned Task reflects post-commit state.
//
// # Dispatcher
//
// Dispatcher accepts one tagged request per operation (AddRequest,
// ListRequest, CompleteRequest, DeleteRequest, UpdateRequest, ...) and
// returns a uniform Envelope. Target tasks are located with a fixed
// resolution order: explicit ID first, then an exact title match, then a
// case-insensitive substring match where the most recently created task
// wins. Requests are built from loosely-typed tool arguments by the
// Parse* helpers, which validate shape once at the boundary.
package task
