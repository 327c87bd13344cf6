package line

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/oauth2"

	"github.com/pomerium/lineauth/internal/httputil"
)

// Failure kinds reported by a CallbackError.
const (
	KindIDTokenVerificationFailed = "id_token_verification_failed"
	KindCSRFDetected              = "csrf_detected"
	KindInvalidCredentials        = "invalid_credentials"
	KindTimeout                   = "timeout"
	KindFailedToConnect           = "failed_to_connect"
)

var (
	// ErrMissingClientID is returned when the provider is created without a client id.
	ErrMissingClientID = errors.New("identity/line: missing client id")
	// ErrMissingAccessToken is returned when no access token was found.
	ErrMissingAccessToken = errors.New("identity/line: missing access token")
	// ErrMissingRefreshToken is returned if no refresh token was found.
	ErrMissingRefreshToken = errors.New("identity/line: missing refresh token")
	// ErrMissingCode is returned when the callback carries no authorization code.
	ErrMissingCode = errors.New("identity/line: missing authorization code")
	// ErrMissingCodeVerifier is returned when PKCE is enabled and the session
	// holds no code verifier.
	ErrMissingCodeVerifier = errors.New("identity/line: missing code verifier")
	// ErrMalformedVerifyResponse is returned when the verify endpoint answers
	// with something other than a JSON object.
	ErrMalformedVerifyResponse = errors.New("identity/line: verify response is not an object")
	// ErrStateMismatch is returned when the callback state does not match the
	// state stored with the session.
	ErrStateMismatch = errors.New("identity/line: state mismatch")
)

// CallbackError terminates an authentication attempt. Kind is a machine
// readable reason such as KindIDTokenVerificationFailed; Description carries
// the provider's explanation when there is one.
type CallbackError struct {
	Kind        string
	Description string
	Err         error
}

// Error implements the `error` interface.
func (e *CallbackError) Error() string {
	msg := "identity/line: " + e.Kind
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements the `error` Unwrap interface.
func (e *CallbackError) Unwrap() error { return e.Err }

// KindOf returns the failure kind of err, or the empty string if err is not a
// CallbackError.
func KindOf(err error) string {
	var cbErr *CallbackError
	if errors.As(err, &cbErr) {
		return cbErr.Kind
	}
	return ""
}

// classify turns a failed request to the provider into a CallbackError.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var cbErr *CallbackError
	if errors.As(err, &cbErr) {
		return err
	}

	var retrieveErr *oauth2.RetrieveError
	var respErr *httputil.ResponseError
	var netErr net.Error
	switch {
	case errors.As(err, &retrieveErr):
		return &CallbackError{Kind: KindInvalidCredentials, Description: retrieveErr.ErrorDescription, Err: err}
	case errors.As(err, &respErr):
		return &CallbackError{Kind: KindInvalidCredentials, Description: respErr.Description, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &CallbackError{Kind: KindTimeout, Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &CallbackError{Kind: KindTimeout, Err: err}
	case errors.As(err, &netErr):
		return &CallbackError{Kind: KindFailedToConnect, Err: err}
	}
	return &CallbackError{Kind: KindInvalidCredentials, Err: fmt.Errorf("identity/line: %w", err)}
}
