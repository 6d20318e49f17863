package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Identity is the stable user identifier derived from a verified
// credential. It has no persistence of its own; it is computed per
// request.
type Identity = uuid.UUID

// ErrUnauthorized is returned by RequireIdentity for any absent,
// invalid or expired credential.
var ErrUnauthorized = errors.New("unauthorized")

// Resolver derives identities from bearer credentials. Both derivation
// paths go through the same Verifier, so a given valid credential always
// resolves to the same Identity regardless of which method is called.
type Resolver struct {
	verifier *Verifier
}

// NewResolver creates a Resolver over the given verifier.
func NewResolver(v *Verifier) *Resolver {
	return &Resolver{verifier: v}
}

// RequireIdentity resolves a credential that must be present and valid.
// Every failure mode collapses to ErrUnauthorized; there is no weaker
// fallback derivation.
func (r *Resolver) RequireIdentity(credential string) (Identity, error) {
	if credential == "" {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrUnauthorized, ErrMissingCredential)
	}
	claims, err := r.verifier.Verify(credential)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a valid identifier", ErrUnauthorized)
	}
	return id, nil
}

// OptionalIdentity resolves a credential that may be absent. It never
// fails: a missing credential, a failed verification or a malformed
// subject all yield (uuid.Nil, false).
func (r *Resolver) OptionalIdentity(credential string) (Identity, bool) {
	if credential == "" {
		return uuid.Nil, false
	}
	claims, err := r.verifier.Verify(credential)
	if err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// CredentialFromHeader extracts the bearer token from an Authorization
// header value. Returns "" when the header is absent or not a bearer
// scheme.
func CredentialFromHeader(authorization string) string {
	const prefix = "Bearer "
	if len(authorization) > len(prefix) && strings.EqualFold(authorization[:len(prefix)], prefix) {
		return strings.TrimSpace(authorization[len(prefix):])
	}
	return ""
}
