// Package logging provides slog setup and shared attribute helpers so
// log entries use the same keys across the codebase. Credentials and
// user identifiers never appear in logs verbatim: tokens are reduced to
// a length indicator and identities to a short hash.
package logging
