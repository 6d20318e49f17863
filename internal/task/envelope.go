package task

import (
	"encoding/json"
	"net/http"
)

// ErrorKind classifies dispatcher failures. Every failure surfaced to a
// caller is one of these; raw store errors never leave the dispatcher.
type ErrorKind string

const (
	KindMissingSelector ErrorKind = "MissingSelector"
	KindInvalidArgument ErrorKind = "InvalidArgument"
	KindNotFound        ErrorKind = "NotFound"
	KindUnauthorized    ErrorKind = "Unauthorized"
	KindInternal        ErrorKind = "Internal"
)

// Envelope is the uniform result shape returned by every dispatcher
// operation. Both the HTTP API and the MCP tool surface render it; they
// differ only in framing (status code vs. a JSON text payload).
type Envelope struct {
	Outcome   string       `json:"outcome"`
	Operation string       `json:"operation,omitempty"`
	Kind      ErrorKind    `json:"kind,omitempty"`
	Message   string       `json:"message,omitempty"`
	TaskID    string       `json:"task_id,omitempty"`
	Title     string       `json:"title,omitempty"`
	Task      *Task        `json:"task,omitempty"`
	List      *ListPayload `json:"list,omitempty"`
}

// ListPayload is the operation-specific body of a successful list.
type ListPayload struct {
	Tasks []Task `json:"tasks"`
	Total int    `json:"total"`
}

// OK returns a success envelope for the named operation.
func OK(operation string) Envelope {
	return Envelope{Outcome: "ok", Operation: operation}
}

// Failure returns an error envelope.
func Failure(kind ErrorKind, message string) Envelope {
	return Envelope{Outcome: "error", Kind: kind, Message: message}
}

// IsError reports whether the envelope describes a failure.
func (e Envelope) IsError() bool {
	return e.Outcome == "error"
}

// JSON renders the envelope as compact JSON.
func (e Envelope) JSON() string {
	b, err := json.Marshal(e)
	if err != nil {
		return `{"outcome":"error","kind":"Internal","message":"failed to encode result"}`
	}
	return string(b)
}

// HTTPStatus maps an envelope to the conventional HTTP status code.
func (e Envelope) HTTPStatus() int {
	if !e.IsError() {
		return http.StatusOK
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindMissingSelector, KindInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func withTask(e Envelope, t Task) Envelope {
	e.TaskID = t.ID.String()
	e.Title = t.Title
	e.Task = &t
	return e
}
