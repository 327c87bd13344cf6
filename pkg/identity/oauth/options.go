// Package oauth contains the options shared by OAuth2 identity providers.
package oauth

import "net/url"

// Options contains the fields required for an OAuth 2.0 (inc. OIDC) auth flow.
type Options struct {
	ProviderName string

	// ClientID is the application's ID.
	ClientID string
	// ClientSecret is the application's secret.
	ClientSecret string
	// RedirectURL is the URL to redirect users going through the OAuth flow,
	// after the resource owner's URLs. When nil the callback URL is derived
	// from the request origin and CallbackPath.
	RedirectURL *url.URL
	// CallbackPath is the path of the callback endpoint on this host.
	CallbackPath string

	// Scopes specifies optional requested permissions.
	Scopes []string
	// AuthCodeOptions specifies additional key value pairs query params to add
	// to the request flow signin url.
	AuthCodeOptions map[string]string

	// Endpoint overrides. Empty values select the provider's defaults.
	AuthURL     string
	TokenURL    string
	UserInfoURL string
	VerifyURL   string
	RevokeURL   string

	// PKCE sends an S256 code challenge with the authorization request and
	// the matching verifier with the token exchange.
	PKCE bool

	// SkipInfo omits the raw user info payload from the identity extras.
	SkipInfo bool
}
