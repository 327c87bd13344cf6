package line_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/pomerium/lineauth/internal/sessions"
	"github.com/pomerium/lineauth/internal/testutil/mockidp"
	"github.com/pomerium/lineauth/pkg/identity/oauth"
	"github.com/pomerium/lineauth/pkg/identity/oauth/line"
	"github.com/pomerium/lineauth/pkg/identity/pkce"
)

const (
	testClientID     = "1234567890"
	testClientSecret = "CHANNEL_SECRET_0123456789abcdef"
	testCallbackURL  = "https://app.example.com/auth/line_v2_1/callback"
)

var testUsers = []*mockidp.User{
	{ID: "U123", Email: "alice@example.com", DisplayName: "Alice", PictureURL: "https://profile.line-scdn.net/alice"},
	{ID: "U456", Email: "bob@example.com"},
}

func newIDP(t *testing.T, cfg mockidp.Config) (*mockidp.IDP, string) {
	t.Helper()
	cfg.ClientID = testClientID
	cfg.ClientSecret = testClientSecret
	cfg.Users = testUsers
	idp := mockidp.New(cfg)
	return idp, idp.Start(t)
}

func newProvider(t *testing.T, idpURL string, modify ...func(o *oauth.Options)) *line.Provider {
	t.Helper()
	o := &oauth.Options{
		ProviderName: line.Name,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		AuthURL:      idpURL + mockidp.AuthorizePath,
		TokenURL:     idpURL + mockidp.TokenPath,
		UserInfoURL:  idpURL + mockidp.UserInfoPath,
		VerifyURL:    idpURL + mockidp.VerifyPath,
		RevokeURL:    idpURL + mockidp.RevokePath,
	}
	for _, f := range modify {
		f(o)
	}
	p, err := line.New(context.Background(), o)
	require.NoError(t, err)
	return p
}

// authorize runs the authorization request against the IDP as email and
// returns the redirect back to the callback.
func authorize(t *testing.T, ctx context.Context, p *line.Provider, c sessions.Correlation, params url.Values, email string) *url.URL {
	t.Helper()

	ar := p.NewAuthorizationRequest(params)
	require.NoError(t, ar.Persist(ctx, c))

	u, err := url.Parse(p.AuthCodeURL(ar, testCallbackURL))
	require.NoError(t, err)
	q := u.Query()
	q.Set("email", email)
	u.RawQuery = q.Encode()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	require.NoError(t, err)
	res, err := client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusFound, res.StatusCode)

	location, err := res.Location()
	require.NoError(t, err)
	return location
}

// login runs the authorization request and the code exchange.
func login(t *testing.T, ctx context.Context, p *line.Provider, c sessions.Correlation, email string) *oauth2.Token {
	t.Helper()
	location := authorize(t, ctx, p, c, nil, email)
	token, err := p.Exchange(ctx, location.Query().Get("code"), testCallbackURL, pkce.Params{})
	require.NoError(t, err)
	return token
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := line.New(context.Background(), &oauth.Options{})
	assert.ErrorIs(t, err, line.ErrMissingClientID)

	_, err = line.New(context.Background(), &oauth.Options{ClientID: testClientID, VerifyURL: "not-a-url"})
	assert.Error(t, err)

	p, err := line.New(context.Background(), &oauth.Options{ClientID: testClientID})
	require.NoError(t, err)
	assert.Equal(t, "line_v2_1", p.Name())
}
