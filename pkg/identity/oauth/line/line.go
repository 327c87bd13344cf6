// Package line implements the LINE Login v2.1 OAuth 2.0 flow, with remote
// verification of the issued ID token.
//
// https://developers.line.biz/en/docs/line-login/integrate-line-login/
package line

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/pomerium/lineauth/internal/httputil"
	"github.com/pomerium/lineauth/internal/urlutil"
	"github.com/pomerium/lineauth/pkg/identity/oauth"
)

// Name identifies the LINE v2.1 identity provider.
const Name = "line_v2_1"

// DefaultScope is requested when the authorization request names no scope.
const DefaultScope = "profile openid email"

// Default paths of the request and callback phases on this host.
const (
	DefaultRequestPath  = "/auth/" + Name
	DefaultCallbackPath = DefaultRequestPath + "/callback"
)

const (
	defaultAuthURL     = "https://access.line.me/oauth2/v2.1/authorize"
	defaultTokenURL    = "https://api.line.me/oauth2/v2.1/token" //nolint: gosec
	defaultUserInfoURL = "https://api.line.me/oauth2/v2.1/userinfo"
	defaultVerifyURL   = "https://api.line.me/oauth2/v2.1/verify"
	defaultRevokeURL   = "https://api.line.me/oauth2/v2.1/revoke"
)

// Provider is a LINE implementation of the Authenticator interface.
type Provider struct {
	oauth           *oauth2.Config
	client          *http.Client
	redirectURL     *url.URL
	callbackPath    string
	scope           string
	authCodeOptions map[string]string
	skipInfo        bool
	pkce            bool

	userInfoURL string
	verifyURL   string
	revokeURL   string
}

// New instantiates an OAuth2 provider for LINE.
//
// The HTTP client installed in ctx under oauth2.HTTPClient is used for every
// request to LINE.
func New(ctx context.Context, o *oauth.Options) (*Provider, error) {
	if o.ClientID == "" {
		return nil, ErrMissingClientID
	}

	p := &Provider{
		client:          httputil.ClientFromContext(ctx),
		redirectURL:     o.RedirectURL,
		callbackPath:    o.CallbackPath,
		scope:           strings.Join(o.Scopes, " "),
		authCodeOptions: maps.Clone(o.AuthCodeOptions),
		skipInfo:        o.SkipInfo,
		pkce:            o.PKCE,
		userInfoURL:     defaultIfEmpty(o.UserInfoURL, defaultUserInfoURL),
		verifyURL:       defaultIfEmpty(o.VerifyURL, defaultVerifyURL),
		revokeURL:       defaultIfEmpty(o.RevokeURL, defaultRevokeURL),
	}
	if p.callbackPath == "" {
		p.callbackPath = DefaultCallbackPath
	}
	if p.scope == "" {
		p.scope = DefaultScope
	}

	p.oauth = &oauth2.Config{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		Scopes:       strings.Fields(p.scope),
		Endpoint: oauth2.Endpoint{
			AuthURL:   defaultIfEmpty(o.AuthURL, defaultAuthURL),
			TokenURL:  defaultIfEmpty(o.TokenURL, defaultTokenURL),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	if p.redirectURL != nil {
		p.oauth.RedirectURL = p.redirectURL.String()
	}

	for _, endpoint := range []string{
		p.oauth.Endpoint.AuthURL, p.oauth.Endpoint.TokenURL,
		p.userInfoURL, p.verifyURL, p.revokeURL,
	} {
		if _, err := urlutil.ParseAndValidateURL(endpoint); err != nil {
			return nil, fmt.Errorf("identity/line: invalid endpoint %q: %w", endpoint, err)
		}
	}

	return p, nil
}

func defaultIfEmpty(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return Name
}

// withClient installs the provider's HTTP client for oauth2 and httputil calls.
func (p *Provider) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.client)
}

// config returns the oauth2 configuration for the given callback URL.
func (p *Provider) config(callbackURL string) *oauth2.Config {
	oa := *p.oauth
	oa.RedirectURL = callbackURL
	return &oa
}
