package authenticate

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/pomerium/lineauth/config"
	"github.com/pomerium/lineauth/internal/sessions/cookie"
	"github.com/pomerium/lineauth/internal/sessions/memory"
	"github.com/pomerium/lineauth/internal/testutil"
	"github.com/pomerium/lineauth/internal/testutil/mockidp"
	"github.com/pomerium/lineauth/pkg/identity"
	"github.com/pomerium/lineauth/pkg/identity/oauth/line"
)

const (
	testClientID     = "1234567890"
	testClientSecret = "CHANNEL_SECRET_0123456789abcdef"
)

var testCookieSecret = bytes.Repeat([]byte{'k'}, 32)

func testOptions(idpURL string) *config.Options {
	o := config.NewDefaultOptions()
	o.ClientID = testClientID
	o.ClientSecret = testClientSecret
	o.CookieSecure = false
	o.AuthorizeURL = idpURL + mockidp.AuthorizePath
	o.TokenURL = idpURL + mockidp.TokenPath
	o.UserInfoURL = idpURL + mockidp.UserInfoPath
	o.VerifyURL = idpURL + mockidp.VerifyPath
	o.RevokeURL = idpURL + mockidp.RevokePath
	return o
}

func testStore(t *testing.T) *cookie.Store {
	t.Helper()
	store, err := cookie.NewStore(testCookieSecret, memory.New(0, 0), cookie.Options{
		HTTPOnly: true,
		Expire:   time.Hour,
	})
	require.NoError(t, err)
	return store
}

func newTestServer(t *testing.T, o *config.Options, provider identity.Authenticator) *httptest.Server {
	t.Helper()
	a, err := New(o, provider, testStore(t))
	require.NoError(t, err)
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func get(t *testing.T, client *http.Client, rawURL string) *http.Response {
	t.Helper()
	res, err := client.Get(rawURL)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

// signIn starts a login on srv and logs in at the IDP as email. It returns
// the redirect back to the callback.
func signIn(t *testing.T, client *http.Client, srv *httptest.Server, email string) *url.URL {
	t.Helper()

	res := get(t, client, srv.URL+line.DefaultRequestPath)
	require.Equal(t, http.StatusFound, res.StatusCode)
	authorizeURL, err := res.Location()
	require.NoError(t, err)
	q := authorizeURL.Query()
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	q.Set("email", email)
	authorizeURL.RawQuery = q.Encode()

	res = get(t, client, authorizeURL.String())
	require.Equal(t, http.StatusFound, res.StatusCode)
	callbackURL, err := res.Location()
	require.NoError(t, err)
	return callbackURL
}

func newLineServer(t *testing.T) (*mockidp.IDP, *httptest.Server) {
	t.Helper()
	ctx := testutil.GetContext(t, time.Minute)

	idp := mockidp.New(mockidp.Config{
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		Users: []*mockidp.User{
			{ID: "U123", Email: "alice@example.com", DisplayName: "Alice"},
		},
	})
	o := testOptions(idp.Start(t))
	oauthOptions, err := o.GetOauthOptions()
	require.NoError(t, err)
	provider, err := identity.NewAuthenticator(ctx, noop.NewTracerProvider(), oauthOptions)
	require.NoError(t, err)
	return idp, newTestServer(t, o, provider)
}

func TestSignInAndCallback(t *testing.T) {
	t.Parallel()

	idp, srv := newLineServer(t)
	client := newClient(t)

	callbackURL := signIn(t, client, srv, "alice@example.com")
	assert.Equal(t, line.DefaultCallbackPath, callbackURL.Path)

	res := get(t, client, callbackURL.String())
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "no-store", res.Header.Get("Cache-Control"))
	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "line_v2_1", body["provider"])
	assert.Equal(t, "U123", body["uid"])
	assert.Equal(t, map[string]any{
		"name":     "Alice",
		"nickname": "U123",
		"email":    "alice@example.com",
	}, body["info"])
	credentials, ok := body["credentials"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, credentials["expires"])
	assert.NotEmpty(t, credentials["token"])
	assert.NotEmpty(t, credentials["refresh_token"])

	assert.Equal(t, 1, idp.Requests(mockidp.VerifyPath))
	assert.NotEmpty(t, idp.VerifyNonces()[0])

	// the state was consumed
	res = get(t, client, callbackURL.String())
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, line.KindCSRFDetected, errorKind(t, res))
}

func TestCallbackWithoutSession(t *testing.T) {
	t.Parallel()

	_, srv := newLineServer(t)

	callbackURL := signIn(t, newClient(t), srv, "alice@example.com")
	res := get(t, newClient(t), callbackURL.String())
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, line.KindCSRFDetected, errorKind(t, res))
}

func TestCallbackAccessDenied(t *testing.T) {
	t.Parallel()

	_, srv := newLineServer(t)
	client := newClient(t)

	callbackURL := signIn(t, client, srv, "nobody@example.com")
	res := get(t, client, callbackURL.String())
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "access_denied", errorKind(t, res))
}

func TestCallbackErrors(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"verification", &line.CallbackError{Kind: line.KindIDTokenVerificationFailed, Description: "bad token"}, http.StatusUnauthorized, line.KindIDTokenVerificationFailed},
		{"timeout", &line.CallbackError{Kind: line.KindTimeout}, http.StatusBadGateway, line.KindTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := newTestServer(t, testOptions("https://line.example.com"), identity.MockProvider{
				SignInURL:     "https://line.example.com/authorize",
				CallbackError: tc.err,
			})
			client := newClient(t)

			res := get(t, client, srv.URL+line.DefaultRequestPath)
			require.Equal(t, http.StatusFound, res.StatusCode)
			assert.Len(t, res.Cookies(), 1)

			res = get(t, client, srv.URL+line.DefaultCallbackPath+"?code=CODE&state=STATE")
			assert.Equal(t, tc.wantStatus, res.StatusCode)
			assert.Equal(t, tc.wantKind, errorKind(t, res))
		})
	}
}

func TestSignInError(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, testOptions("https://line.example.com"), identity.MockProvider{
		SignInError: errors.New("session store unavailable"),
	})
	res := get(t, newClient(t), srv.URL+line.DefaultRequestPath)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
}

func TestAuxiliaryRoutes(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, testOptions("https://line.example.com"), identity.MockProvider{})
	client := newClient(t)

	res := get(t, client, srv.URL+"/ping")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = get(t, client, srv.URL+"/robots.txt")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "User-agent: *\nDisallow: /", string(body))

	res = get(t, client, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	body, err = io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}

func TestNew(t *testing.T) {
	t.Parallel()

	o := testOptions("https://line.example.com")
	_, err := New(nil, identity.MockProvider{}, testStore(t))
	assert.Error(t, err)
	_, err = New(o, nil, testStore(t))
	assert.Error(t, err)
	_, err = New(o, identity.MockProvider{}, nil)
	assert.Error(t, err)
}

func errorKind(t *testing.T, res *http.Response) string {
	t.Helper()
	var body struct {
		Status int    `json:"status"`
		Kind   string `json:"kind"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, res.StatusCode, body.Status)
	return body.Kind
}
