// Package httputil provides HTTP helpers shared by the login host and the
// outbound provider calls.
package httputil

import (
	"encoding/json"
	"net/http"
)

// StatusText returns a text for the HTTP status code.
func StatusText(code int) string {
	return http.StatusText(code)
}

// Redirect wraps the std lib's redirect method used to redirect the user agent
// to the identity provider and back.
func Redirect(w http.ResponseWriter, r *http.Request, url string, code int) {
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, url, code)
}

// RenderJSON replies to the request with the specified struct as JSON and HTTP code.
func RenderJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = w.Write(b)
}
