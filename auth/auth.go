// Package auth checks bearer tokens against a read scope and a write scope.
// The write token grants both scopes. An unset read token opens the read
// scope. An unset write token closes the write scope unless anonymous
// writes are explicitly allowed.
package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/jmgilman/go/errors"
)

var (
	ErrUnauthorized = errors.New(errors.CodeUnauthorized, "missing or invalid token")
	ErrForbidden    = errors.New(errors.CodeForbidden, "forbidden")
)

// Scope is the access an operation requires.
type Scope int

const (
	ScopeRead Scope = iota + 1
	ScopeWrite
)

func (s Scope) String() string {
	switch s {
	case ScopeRead:
		return "read"
	case ScopeWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Config holds the shared secrets for each scope.
type Config struct {
	ReadToken  string `json:"read_token,omitempty"`
	WriteToken string `json:"write_token,omitempty"`

	// AllowAnonymousWrites opens the write scope when WriteToken is unset.
	// It has no effect once a write token is configured.
	AllowAnonymousWrites bool `json:"allow_anonymous_writes,omitempty"`
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.ReadToken != "" {
		c.ReadToken = source.ReadToken
	}
	if source.WriteToken != "" {
		c.WriteToken = source.WriteToken
	}
	if source.AllowAnonymousWrites {
		c.AllowAnonymousWrites = true
	}
}

// Authorizer validates Authorization header values.
type Authorizer struct {
	read           []byte
	write          []byte
	anonymousWrite bool
}

func New(cfg *Config) *Authorizer {
	return &Authorizer{
		read:           []byte(cfg.ReadToken),
		write:          []byte(cfg.WriteToken),
		anonymousWrite: cfg.AllowAnonymousWrites && cfg.WriteToken == "",
	}
}

// Required reports whether scope is guarded by a token. The write scope is
// guarded even without a write token, in which case no token grants it.
func (a *Authorizer) Required(scope Scope) bool {
	switch scope {
	case ScopeRead:
		return len(a.read) > 0
	case ScopeWrite:
		return !a.anonymousWrite
	default:
		return true
	}
}

// Authorize checks an Authorization header value for scope. It returns
// ErrUnauthorized when the header is missing or not a bearer token and
// ErrForbidden when the token does not grant scope.
func (a *Authorizer) Authorize(header string, scope Scope) error {
	if !a.Required(scope) {
		return nil
	}

	token, ok := bearerToken(header)
	if !ok {
		return ErrUnauthorized
	}

	if matches(token, a.write) {
		return nil
	}
	if scope == ScopeRead && matches(token, a.read) {
		return nil
	}
	return ErrForbidden
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func matches(token string, secret []byte) bool {
	if len(secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), secret) == 1
}
