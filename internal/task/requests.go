package task

import (
	"github.com/google/uuid"
)

// Tool names exposed on the agent-facing surface.
const (
	ToolAddTask      = "add_task"
	ToolListTasks    = "list_tasks"
	ToolCompleteTask = "complete_task"
	ToolDeleteTask   = "delete_task"
	ToolUpdateTask   = "update_task"
)

// The Parse* functions turn a tool-call argument bag into a tagged
// request. They validate shape once at the boundary: a non-nil failure
// envelope means the request never reaches the store.

// ParseAddRequest builds an AddRequest from user_id, title and the
// optional description.
func ParseAddRequest(args map[string]any) (AddRequest, *Envelope) {
	owner, fail := ownerFromArgs(args)
	if fail != nil {
		return AddRequest{}, fail
	}
	title, _ := optionalString(args, "title")
	description, _ := optionalString(args, "description")
	return AddRequest{Owner: owner, Title: title, Description: description}, nil
}

// ParseListRequest builds a ListRequest from user_id and the optional
// status filter (all, pending or completed; default all).
func ParseListRequest(args map[string]any) (ListRequest, *Envelope) {
	owner, fail := ownerFromArgs(args)
	if fail != nil {
		return ListRequest{}, fail
	}
	status, _ := optionalString(args, "status")
	filter, err := ParseStatusFilter(status)
	if err != nil {
		return ListRequest{}, failurePtr(KindInvalidArgument, err.Error())
	}
	return ListRequest{Owner: owner, Filter: filter}, nil
}

// ParseCompleteRequest builds a CompleteRequest from user_id and a
// selector (task_id or title).
func ParseCompleteRequest(args map[string]any) (CompleteRequest, *Envelope) {
	owner, fail := ownerFromArgs(args)
	if fail != nil {
		return CompleteRequest{}, fail
	}
	target, fail := selectorFromArgs(args, "title", false)
	if fail != nil {
		return CompleteRequest{}, fail
	}
	return CompleteRequest{Owner: owner, Target: target}, nil
}

// ParseDeleteRequest builds a DeleteRequest from user_id and a selector.
// A task_id that does not parse as an ID is degraded to a title
// candidate instead of failing outright.
func ParseDeleteRequest(args map[string]any) (DeleteRequest, *Envelope) {
	owner, fail := ownerFromArgs(args)
	if fail != nil {
		return DeleteRequest{}, fail
	}
	target, fail := selectorFromArgs(args, "title", true)
	if fail != nil {
		return DeleteRequest{}, fail
	}
	return DeleteRequest{Owner: owner, Target: target}, nil
}

// ParseUpdateRequest builds an UpdateRequest from user_id, a selector
// (task_id or current_title) and the optional title/description patches.
func ParseUpdateRequest(args map[string]any) (UpdateRequest, *Envelope) {
	owner, fail := ownerFromArgs(args)
	if fail != nil {
		return UpdateRequest{}, fail
	}
	target, fail := selectorFromArgs(args, "current_title", false)
	if fail != nil {
		return UpdateRequest{}, fail
	}

	req := UpdateRequest{Owner: owner, Target: target}
	if title, ok := presentString(args, "title"); ok {
		req.Title = &title
	}
	if description, ok := presentString(args, "description"); ok {
		req.Description = &description
	}
	return req, nil
}

// ownerFromArgs extracts and validates the required user_id argument.
func ownerFromArgs(args map[string]any) (*uuid.UUID, *Envelope) {
	raw, ok := optionalString(args, "user_id")
	if !ok {
		return nil, failurePtr(KindInvalidArgument, "user_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, failurePtr(KindInvalidArgument, "user_id must be a valid UUID")
	}
	return &id, nil
}

// selectorFromArgs builds a Selector from task_id and the given title
// key. An unparseable task_id falls through to the title field; when
// idAsTitleFallback is set the raw task_id itself becomes the title
// candidate.
func selectorFromArgs(args map[string]any, titleKey string, idAsTitleFallback bool) (Selector, *Envelope) {
	rawID, hasID := optionalString(args, "task_id")
	if hasID {
		if id, err := uuid.Parse(rawID); err == nil {
			return Selector{ID: &id}, nil
		}
		if idAsTitleFallback {
			return Selector{Title: rawID}, nil
		}
	}
	if title, ok := optionalString(args, titleKey); ok {
		return Selector{Title: title}, nil
	}
	return Selector{}, failurePtr(KindMissingSelector, "provide task_id or "+titleKey)
}

// optionalString returns the value under key when it is a non-empty
// string; a missing key, a non-string value or an empty string all count
// as absent, mirroring the truthiness the tool callers rely on.
func optionalString(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// presentString returns the value under key when it holds any string,
// including the empty one. Update patches need the distinction between
// "absent" and "present but blank".
func presentString(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok
}
