package httputil

import (
	"net/http"

	"github.com/pomerium/lineauth/internal/log"
)

// HealthCheck is a simple healthcheck handler that responds to GET and HEAD
// http requests.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		w.Write([]byte(http.StatusText(http.StatusOK)))
	}
}

// HandlerFunc is an http.Handler that can return an error. Errors are
// logged and rendered with ErrorResponse.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// ServeHTTP calls f(w, r) and handles any returned error.
func (f HandlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := f(w, r); err != nil {
		log.Warn(r.Context()).Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("httputil: handler error")
		ErrorResponse(w, r, err)
	}
}
