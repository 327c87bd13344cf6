package httputil

import (
	"errors"
	"net/http"
)

// HTTPError contains an HTTP status code and wrapped error.
type HTTPError struct {
	// HTTP status codes as registered with IANA.
	Status int
	// Err is the wrapped error.
	Err error
	// Kind is a machine readable failure reason, if any.
	Kind string
}

// NewError returns an error that contains a HTTP status and error.
func NewError(status int, err error) error {
	return &HTTPError{Status: status, Err: err}
}

// Error implements the `error` interface.
func (e *HTTPError) Error() string {
	return StatusText(e.Status) + ": " + e.Err.Error()
}

// Unwrap implements the `error` Unwrap interface.
func (e *HTTPError) Unwrap() error { return e.Err }

// ErrorResponse replies to the request with the specified error message and HTTP code.
// It does not otherwise end the request; the caller should ensure no further
// writes are done to w.
func (e *HTTPError) ErrorResponse(w http.ResponseWriter, _ *http.Request) {
	response := struct {
		Status int    `json:"status"`
		Error  string `json:"error"`
		Kind   string `json:"kind,omitempty"`
	}{
		Status: e.Status,
		Error:  e.Error(),
		Kind:   e.Kind,
	}
	RenderJSON(w, e.Status, response)
}

// ErrorResponse renders err, which is not necessarily an HTTPError, as a JSON
// error response. Unknown errors are internal server errors.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		httpErr = &HTTPError{Status: http.StatusInternalServerError, Err: err}
	}
	httpErr.ErrorResponse(w, r)
}
