// Package auth verifies bearer tokens and derives caller identities.
//
// Verifier checks an HS256-signed token against the process-wide shared
// secret and extracts its claims; it also mints tokens for development
// and tests, which never happens on a serving path. Resolver turns a
// credential into a stable Identity: RequireIdentity for endpoints where
// authentication is mandatory, OptionalIdentity where anonymous access
// is allowed. Identity is only ever derived from a cryptographically
// verified subject claim; an invalid credential yields no identity at
// all, never a weaker one.
package auth
