package authenticate

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pomerium/lineauth/internal/httputil"
	"github.com/pomerium/lineauth/internal/log"
	"github.com/pomerium/lineauth/internal/telemetry/metrics"
	"github.com/pomerium/lineauth/pkg/identity/oauth/line"
)

// Handler returns the authenticate service's handler chain.
func (a *Authenticate) Handler() http.Handler {
	r := httputil.NewRouter()
	a.Mount(r)
	return r
}

// Mount mounts the authenticate routes to the given router.
func (a *Authenticate) Mount(r *mux.Router) {
	r.Use(setHeaders(defaultSecurityHeaders))
	r.Use(requestLogger)

	r.Path("/ping").HandlerFunc(httputil.HealthCheck)
	r.Path("/robots.txt").HandlerFunc(a.RobotsTxt).Methods(http.MethodGet)
	r.Path("/metrics").Handler(metrics.Handler()).Methods(http.MethodGet)

	r.Path(a.options.RequestPath).Handler(httputil.HandlerFunc(a.SignIn)).Methods(http.MethodGet, http.MethodPost)
	r.Path(a.options.CallbackPath).Handler(httputil.HandlerFunc(a.OAuthCallback)).Methods(http.MethodGet, http.MethodPost)
}

// RobotsTxt disallows crawling the login endpoints.
func (a *Authenticate) RobotsTxt(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "User-agent: *\nDisallow: /")
}

// SignIn starts a login attempt and redirects the user agent to LINE.
func (a *Authenticate) SignIn(w http.ResponseWriter, r *http.Request) error {
	c, err := a.sessions.LoadOrCreate(w, r)
	if err != nil {
		return httputil.NewError(http.StatusInternalServerError, err)
	}
	if err := a.provider.SignIn(w, r, c); err != nil {
		return httputil.NewError(http.StatusInternalServerError, err)
	}
	return nil
}

// OAuthCallback handles the redirect back from LINE and renders the
// normalized identity as JSON.
func (a *Authenticate) OAuthCallback(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	c, err := a.sessions.Load(r)
	if err != nil {
		// without a session there is no state to match against
		err = &line.CallbackError{Kind: line.KindCSRFDetected, Err: err}
		return a.callbackFailure(r, err)
	}

	id, err := a.provider.Callback(ctx, r, c)
	if err != nil {
		return a.callbackFailure(r, err)
	}

	metrics.RecordAuthentication(metrics.ResultSuccess, "")
	log.Info(ctx).
		Str("provider", id.Provider).
		Str("uid", id.UID).
		Bool("has_uid", id.HasUID()).
		Msg("authenticate: user signed in")

	httputil.RenderJSON(w, http.StatusOK, id)
	return nil
}

func (a *Authenticate) callbackFailure(r *http.Request, err error) error {
	var cbErr *line.CallbackError
	if !errors.As(err, &cbErr) {
		metrics.RecordAuthentication(metrics.ResultFailure, "unknown")
		return httputil.NewError(http.StatusInternalServerError, err)
	}

	metrics.RecordAuthentication(metrics.ResultFailure, cbErr.Kind)
	log.Warn(r.Context()).
		Str("kind", cbErr.Kind).
		Str("description", cbErr.Description).
		Msg("authenticate: sign in failed")

	status := http.StatusUnauthorized
	if cbErr.Kind == line.KindTimeout || cbErr.Kind == line.KindFailedToConnect {
		status = http.StatusBadGateway
	}
	return &httputil.HTTPError{Status: status, Err: err, Kind: cbErr.Kind}
}
