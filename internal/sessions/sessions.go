// Package sessions stores the values that correlate an authorization request
// with its callback, scoped to a single user agent session.
package sessions

//go:generate go run go.uber.org/mock/mockgen -source=sessions.go -destination=mock_sessions/mock_sessions.go -package=mock_sessions

import (
	"context"
	"errors"
)

// Keys written by the authorization request and read back on callback.
const (
	KeyState        = "state"
	KeyNonce        = "nonce"
	KeyCodeVerifier = "code_verifier"
)

var (
	// ErrNoSessionFound is the error for when no session is found.
	ErrNoSessionFound = errors.New("internal/sessions: session is not found")
	// ErrMalformed is the error for when a session is found but is malformed.
	ErrMalformed = errors.New("internal/sessions: session is malformed")
)

// Correlation is the key/value storage of one user agent session.
//
// Take must be atomic: when two callers take the same key concurrently at most
// one of them observes the value.
type Correlation interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Take(ctx context.Context, key string) (value string, ok bool, err error)
}

// Backend holds the correlation values of every session.
type Backend interface {
	Set(ctx context.Context, sessionID, key, value string) error
	Get(ctx context.Context, sessionID, key string) (value string, ok bool, err error)
	Take(ctx context.Context, sessionID, key string) (value string, ok bool, err error)
	Close() error
}

// Bind returns the Correlation for a single session of the backend.
func Bind(backend Backend, sessionID string) Correlation {
	return boundCorrelation{backend: backend, sessionID: sessionID}
}

type boundCorrelation struct {
	backend   Backend
	sessionID string
}

func (c boundCorrelation) Set(ctx context.Context, key, value string) error {
	return c.backend.Set(ctx, c.sessionID, key, value)
}

func (c boundCorrelation) Get(ctx context.Context, key string) (string, bool, error) {
	return c.backend.Get(ctx, c.sessionID, key)
}

func (c boundCorrelation) Take(ctx context.Context, key string) (string, bool, error) {
	return c.backend.Take(ctx, c.sessionID, key)
}
