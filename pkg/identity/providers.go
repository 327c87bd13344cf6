// Package identity provides support for signing users in with third party
// identity providers over OAuth2.
package identity

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/pomerium/lineauth/internal/httputil"
	"github.com/pomerium/lineauth/internal/sessions"
	"github.com/pomerium/lineauth/internal/telemetry/metrics"
	"github.com/pomerium/lineauth/pkg/identity/identity"
	"github.com/pomerium/lineauth/pkg/identity/oauth"
	"github.com/pomerium/lineauth/pkg/identity/oauth/line"
)

// Authenticator is an interface representing the ability to authenticate with an identity provider.
type Authenticator interface {
	Name() string

	// SignIn starts a login attempt and redirects the user agent to the
	// provider.
	SignIn(w http.ResponseWriter, r *http.Request, c sessions.Correlation) error
	// Callback completes a login attempt and returns the user's identity.
	Callback(ctx context.Context, r *http.Request, c sessions.Correlation) (*identity.Identity, error)

	Refresh(ctx context.Context, t *oauth2.Token) (*oauth2.Token, error)
	Revoke(ctx context.Context, t *oauth2.Token) error
}

// AuthenticatorConstructor makes an Authenticator from the given options.
type AuthenticatorConstructor func(context.Context, *oauth.Options) (Authenticator, error)

var registry = map[string]AuthenticatorConstructor{}

// RegisterAuthenticator registers a new Authenticator.
func RegisterAuthenticator(name string, ctor AuthenticatorConstructor) {
	registry[name] = ctor
}

func init() {
	RegisterAuthenticator(line.Name, func(ctx context.Context, o *oauth.Options) (Authenticator, error) { return line.New(ctx, o) })
}

// NewAuthenticator returns a new identity provider based on its name.
//
// Requests to the provider are traced, timed and logged.
func NewAuthenticator(ctx context.Context, tracerProvider oteltrace.TracerProvider, o oauth.Options) (a Authenticator, err error) {
	if o.ProviderName == "" {
		return nil, fmt.Errorf("identity: provider is not defined")
	}

	ctor, ok := registry[o.ProviderName]
	if !ok {
		return nil, fmt.Errorf("identity: unknown provider: %s", o.ProviderName)
	}

	client := httputil.NewLoggingClient(httputil.ClientFromContext(ctx))
	client.Transport = otelhttp.NewTransport(
		metrics.HTTPMetricsRoundTripper(o.ProviderName, client.Transport),
		otelhttp.WithTracerProvider(tracerProvider),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("OAuth2 Client: %s %s", r.Method, r.URL.Path)
		}),
	)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)

	return ctor(ctx, &o)
}
