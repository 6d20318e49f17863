package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation = "operation"
	KeyTool      = "tool"
	KeyStatus    = "status"
	KeyError     = "error"
	KeyUserHash  = "user_hash"
	KeyFilter    = "filter"
	KeyTaskID    = "task_id"
)

// Status values for consistent logging.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Setup installs the process-wide default logger: a text handler on
// stderr, at debug level when debug is set. Stderr keeps stdout free for
// the stdio MCP transport.
func Setup(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Tool returns a slog attribute for the tool name.
func Tool(tool string) slog.Attr {
	return slog.String(KeyTool, tool)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// TaskID returns a slog attribute for a task identifier.
func TaskID(id string) slog.Attr {
	return slog.String(KeyTaskID, id)
}

// Err returns a slog attribute for an error. A nil error yields an empty
// group that slog omits from output, so Err(maybeNilErr) is always safe.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeIdentity returns a short hash of a user identifier for
// logging. Log entries stay correlatable without exposing the raw
// identifier.
func AnonymizeIdentity(id string) string {
	if id == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(id))
	return "user:" + hex.EncodeToString(hash[:8])
}

// UserHash returns a slog attribute with the anonymized user identifier.
func UserHash(id string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeIdentity(id))
}

// SanitizeToken returns a masked version of a token for logging. It
// exposes only the length; even partial token prefixes can aid attacks.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}
