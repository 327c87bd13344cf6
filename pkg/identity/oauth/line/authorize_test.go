package line_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/oauth2"

	"github.com/pomerium/lineauth/internal/sessions"
	"github.com/pomerium/lineauth/internal/sessions/mock_sessions"
	"github.com/pomerium/lineauth/pkg/identity/oauth"
	"github.com/pomerium/lineauth/pkg/identity/oauth/line"
)

func TestNewAuthorizationRequest(t *testing.T) {
	t.Parallel()

	p := newProvider(t, "https://line.example.com")

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		ar := p.NewAuthorizationRequest(url.Values{})
		assert.Equal(t, "code", ar.ResponseType)
		assert.Equal(t, "profile openid email", ar.Scope)
		assert.Len(t, ar.Nonce, 48)
		assert.Len(t, ar.State, 48)
		assert.Empty(t, ar.Prompt)
		assert.Empty(t, ar.BotPrompt)

		next := p.NewAuthorizationRequest(url.Values{})
		assert.NotEqual(t, ar.Nonce, next.Nonce)
		assert.NotEqual(t, ar.State, next.State)
	})
	t.Run("pass through", func(t *testing.T) {
		t.Parallel()

		ar := p.NewAuthorizationRequest(url.Values{
			"scope":         {"profile"},
			"state":         {"xyz"},
			"nonce":         {"abc"},
			"prompt":        {"consent"},
			"bot_prompt":    {"aggressive"},
			"response_type": {"token"},
		})
		assert.Equal(t, &line.AuthorizationRequest{
			Scope:        "profile",
			State:        "xyz",
			Nonce:        "abc",
			Prompt:       "consent",
			BotPrompt:    "aggressive",
			ResponseType: "code",
		}, ar)
	})
	t.Run("empty values", func(t *testing.T) {
		t.Parallel()

		ar := p.NewAuthorizationRequest(url.Values{"scope": {""}, "nonce": {""}})
		assert.Equal(t, "profile openid email", ar.Scope)
		assert.NotEmpty(t, ar.Nonce)
	})
	t.Run("configured scope", func(t *testing.T) {
		t.Parallel()

		p := newProvider(t, "https://line.example.com", func(o *oauth.Options) {
			o.Scopes = []string{"profile", "openid"}
		})
		assert.Equal(t, "profile openid", p.NewAuthorizationRequest(nil).Scope)
	})
	t.Run("pkce", func(t *testing.T) {
		t.Parallel()

		assert.False(t, p.NewAuthorizationRequest(nil).PKCE.Enabled())

		p := newProvider(t, "https://line.example.com", func(o *oauth.Options) { o.PKCE = true })
		ar := p.NewAuthorizationRequest(nil)
		require.True(t, ar.PKCE.Enabled())
		assert.Equal(t, "S256", ar.PKCE.Method)

		u, err := url.Parse(p.AuthCodeURL(ar, testCallbackURL))
		require.NoError(t, err)
		assert.Equal(t, "S256", u.Query().Get("code_challenge_method"))
		assert.Equal(t, oauth2.S256ChallengeFromVerifier(ar.PKCE.Verifier), u.Query().Get("code_challenge"))
	})
}

func TestPersist(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ctrl := gomock.NewController(t)
	c := mock_sessions.NewMockCorrelation(ctrl)
	c.EXPECT().Set(ctx, sessions.KeyState, "xyz").Return(nil)
	c.EXPECT().Set(ctx, sessions.KeyNonce, "abc").Return(nil)

	ar := &line.AuthorizationRequest{State: "xyz", Nonce: "abc"}
	require.NoError(t, ar.Persist(ctx, c))

	c.EXPECT().Set(ctx, sessions.KeyState, "xyz").Return(sessions.ErrNoSessionFound)
	assert.ErrorIs(t, ar.Persist(ctx, c), sessions.ErrNoSessionFound)
}

func TestSignIn(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	c := mock_sessions.NewMockCorrelation(ctrl)
	c.EXPECT().Set(gomock.Any(), sessions.KeyState, "xyz").Return(nil)
	var nonce string
	c.EXPECT().Set(gomock.Any(), sessions.KeyNonce, gomock.Any()).DoAndReturn(
		func(_ context.Context, _, value string) error {
			nonce = value
			return nil
		})

	p := newProvider(t, "https://line.example.com")

	r := httptest.NewRequest(http.MethodGet, "https://app.example.com/auth/line_v2_1?state=xyz&bot_prompt=normal", nil)
	w := httptest.NewRecorder()
	require.NoError(t, p.SignIn(w, r, c))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "line.example.com", location.Host)
	assert.Equal(t, "/oauth2/v2.1/authorize", location.Path)
	assert.Equal(t, url.Values{
		"client_id":     {testClientID},
		"redirect_uri":  {"https://app.example.com/auth/line_v2_1/callback"},
		"response_type": {"code"},
		"scope":         {"profile openid email"},
		"state":         {"xyz"},
		"nonce":         {nonce},
		"bot_prompt":    {"normal"},
	}, location.Query())
	assert.Len(t, nonce, 48)
}

func TestSignInSessionFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	c := mock_sessions.NewMockCorrelation(ctrl)
	c.EXPECT().Set(gomock.Any(), sessions.KeyState, gomock.Any()).Return(sessions.ErrMalformed)

	p := newProvider(t, "https://line.example.com")
	w := httptest.NewRecorder()
	err := p.SignIn(w, httptest.NewRequest(http.MethodGet, "/auth/line_v2_1", nil), c)
	assert.ErrorIs(t, err, sessions.ErrMalformed)
	assert.Empty(t, w.Header().Get("Location"))
}

func TestCallbackURL(t *testing.T) {
	t.Parallel()

	p := newProvider(t, "https://line.example.com")

	r := httptest.NewRequest(http.MethodGet, "http://internal:8080/auth/line_v2_1/callback", nil)
	assert.Equal(t, "http://internal:8080/auth/line_v2_1/callback", p.CallbackURL(r))

	r.Header.Set("X-Forwarded-Proto", "https")
	r.Header.Set("X-Forwarded-Host", "app.example.com, internal")
	assert.Equal(t, "https://app.example.com/auth/line_v2_1/callback", p.CallbackURL(r))

	p = newProvider(t, "https://line.example.com", func(o *oauth.Options) {
		o.CallbackPath = "/login/callback"
	})
	assert.Equal(t, "http://internal:8080/login/callback",
		p.CallbackURL(httptest.NewRequest(http.MethodGet, "http://internal:8080/", nil)))

	redirectURL, err := url.Parse("https://fixed.example.com/cb")
	require.NoError(t, err)
	p = newProvider(t, "https://line.example.com", func(o *oauth.Options) {
		o.RedirectURL = redirectURL
	})
	assert.Equal(t, "https://fixed.example.com/cb", p.CallbackURL(r))
}
