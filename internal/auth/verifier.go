package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failure kinds. Callers branch on these with errors.Is.
var (
	// ErrMissingCredential means no token was supplied at all.
	ErrMissingCredential = errors.New("no credential supplied")

	// ErrExpiredToken means the token was validly signed but is past
	// its expiry claim.
	ErrExpiredToken = errors.New("token expired")

	// ErrMalformedToken covers everything else: invalid signature,
	// unparseable token, missing required claims.
	ErrMalformedToken = errors.New("malformed token")
)

// registered claims handled explicitly; everything else lands in Extra.
var registeredClaims = map[string]struct{}{
	"sub": {}, "iat": {}, "exp": {},
}

// Claims is the verified token payload. Extra carries claims the core
// ignores but must round-trip if the token is re-encoded.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Extra     map[string]any
}

// Verifier validates HS256-signed tokens against a shared secret. It is
// a pure function of (token, secret, current time); now is injectable
// for tests.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier creates a Verifier. An empty secret is a configuration
// error: the caller must treat it as fatal at startup, not per request.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("auth secret must not be empty")
	}
	return &Verifier{secret: []byte(secret), now: time.Now}, nil
}

// Verify checks the token's signature and expiry and returns its claims.
// Failures are ErrMissingCredential, ErrExpiredToken or
// ErrMalformedToken.
func (v *Verifier) Verify(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrMissingCredential
	}

	parsed, err := jwt.Parse(token,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return v.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, fmt.Errorf("%w: %w", ErrExpiredToken, err)
		}
		return Claims{}, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("%w: unexpected claims type", ErrMalformedToken)
	}

	subject, err := mapClaims.GetSubject()
	if err != nil || subject == "" {
		return Claims{}, fmt.Errorf("%w: missing sub claim", ErrMalformedToken)
	}

	claims := Claims{Subject: subject}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	for k, v := range mapClaims {
		if _, reserved := registeredClaims[k]; reserved {
			continue
		}
		if claims.Extra == nil {
			claims.Extra = make(map[string]any)
		}
		claims.Extra[k] = v
	}
	return claims, nil
}

// Issue mints a token this verifier accepts, carrying the subject, the
// current issued-at timestamp and an expiry ttl from now. Extra claims
// are copied into the payload verbatim; they cannot shadow the
// registered claims. Issue exists for development and tests only.
func (v *Verifier) Issue(subject string, ttl time.Duration, extra map[string]any) (string, error) {
	if subject == "" {
		return "", errors.New("subject must not be empty")
	}
	now := v.now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	for k, val := range extra {
		if _, reserved := registeredClaims[k]; reserved {
			continue
		}
		claims[k] = val
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}
