// Package mockidp implements a fake LINE Login v2.1 identity provider for
// tests.
package mockidp

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/oauth2"
)

// Endpoint paths served by the IDP.
const (
	AuthorizePath = "/oauth2/v2.1/authorize"
	TokenPath     = "/oauth2/v2.1/token"
	UserInfoPath  = "/oauth2/v2.1/userinfo"
	VerifyPath    = "/oauth2/v2.1/verify"
	RevokePath    = "/oauth2/v2.1/revoke"
)

// accessTokenExpiresIn is the lifetime of access tokens in seconds.
const accessTokenExpiresIn = 30 * 24 * 3600

// IDP is a fake LINE identity provider. ID tokens are HS256 JWTs signed with
// the channel secret, as LINE does for web logins.
type IDP struct {
	cfg        Config
	userLookup map[string]*User

	requests sync.Map // path -> *atomic.Int64

	mu            sync.Mutex
	refreshTokens map[string]*grant
	revoked       map[string]bool
	nonces        []string
}

// Config configures the IDP.
type Config struct {
	ClientID     string  `json:"client_id"`
	ClientSecret string  `json:"client_secret"`
	Users        []*User `json:"users"`

	// OmitIDToken issues tokens without an ID token, as LINE does when the
	// openid scope was not granted.
	OmitIDToken bool `json:"omit_id_token"`
	// OmitRefreshToken issues tokens without a refresh token.
	OmitRefreshToken bool `json:"omit_refresh_token"`
	// VerifyError makes every verification fail with this OAuth error code.
	VerifyError string `json:"verify_error"`
}

// User is a LINE account known to the IDP.
type User struct {
	ID          string `json:"-"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	PictureURL  string `json:"picture_url,omitempty"`
}

// New creates a new IDP.
func New(cfg Config) *IDP {
	userLookup := map[string]*User{}
	for _, user := range cfg.Users {
		if user.ID == "" {
			user.ID = "U" + strings.ReplaceAll(uuid.NewString(), "-", "")
		}
		userLookup[user.Email] = user
	}
	return &IDP{
		cfg:           cfg,
		userLookup:    userLookup,
		refreshTokens: make(map[string]*grant),
		revoked:       make(map[string]bool),
	}
}

// Start serves the IDP until the test ends and returns its URL.
func (idp *IDP) Start(t *testing.T) string {
	r := mux.NewRouter()
	idp.Register(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server.URL
}

// Register adds the IDP's endpoints to router.
func (idp *IDP) Register(router *mux.Router) {
	router.Use(idp.countRequests)
	router.HandleFunc(AuthorizePath, idp.handleAuthorize).Methods(http.MethodGet)
	router.HandleFunc(TokenPath, idp.handleToken).Methods(http.MethodPost)
	router.HandleFunc(UserInfoPath, idp.handleUserInfo).Methods(http.MethodGet)
	router.HandleFunc(VerifyPath, idp.handleVerify).Methods(http.MethodPost)
	router.HandleFunc(RevokePath, idp.handleRevoke).Methods(http.MethodPost)
}

// Requests returns how many requests were made to path.
func (idp *IDP) Requests(path string) int {
	if v, ok := idp.requests.Load(path); ok {
		return int(v.(*atomic.Int64).Load())
	}
	return 0
}

// VerifyNonces returns the nonce sent with each verification request, in
// order. Requests without a nonce are recorded as an empty string.
func (idp *IDP) VerifyNonces() []string {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	return append([]string(nil), idp.nonces...)
}

// Revoked reports whether the access token was revoked.
func (idp *IDP) Revoked(accessToken string) bool {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	return idp.revoked[accessToken]
}

// User returns the user with the given email.
func (idp *IDP) User(email string) *User {
	return idp.userLookup[email]
}

func (idp *IDP) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, _ := idp.requests.LoadOrStore(r.URL.Path, new(atomic.Int64))
		v.(*atomic.Int64).Add(1)
		next.ServeHTTP(w, r)
	})
}

// handleAuthorize logs in the user named by the email query parameter and
// redirects back with a code.
func (idp *IDP) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("response_type") != "code":
		http.Error(w, "unsupported response_type", http.StatusBadRequest)
		return
	case q.Get("client_id") != idp.cfg.ClientID:
		http.Error(w, "invalid client_id", http.StatusBadRequest)
		return
	case q.Get("state") == "":
		http.Error(w, "missing state", http.StatusBadRequest)
		return
	case q.Get("code_challenge") != "" && q.Get("code_challenge_method") != "S256":
		http.Error(w, "unsupported code_challenge_method", http.StatusBadRequest)
		return
	}

	redirectURI, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || redirectURI.Host == "" {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}

	params := url.Values{"state": {q.Get("state")}}
	if user, ok := idp.userLookup[q.Get("email")]; ok {
		params.Set("code", grant{
			Email:       user.Email,
			ClientID:    idp.cfg.ClientID,
			RedirectURI: redirectURI.String(),
			Nonce:       q.Get("nonce"),
			Scope:       q.Get("scope"),
			Challenge:   q.Get("code_challenge"),
		}.Encode())
	} else {
		params.Set("error", "access_denied")
		params.Set("error_description", "The user has denied the request")
	}
	redirectURI.RawQuery = params.Encode()
	http.Redirect(w, r, redirectURI.String(), http.StatusFound)
}

func (idp *IDP) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("client_id") != idp.cfg.ClientID || r.FormValue("client_secret") != idp.cfg.ClientSecret {
		serveError(w, http.StatusUnauthorized, "invalid_client", "Invalid client")
		return
	}

	switch r.FormValue("grant_type") {
	case "authorization_code":
		g, err := decodeGrant(r.FormValue("code"))
		if err != nil {
			serveError(w, http.StatusBadRequest, "invalid_grant", "Invalid authorization code.")
			return
		}
		if g.RedirectURI != r.FormValue("redirect_uri") {
			serveError(w, http.StatusBadRequest, "invalid_grant", "redirect_uri does not match.")
			return
		}
		if g.Challenge != "" && oauth2.S256ChallengeFromVerifier(r.FormValue("code_verifier")) != g.Challenge {
			serveError(w, http.StatusBadRequest, "invalid_grant", "code_verifier does not match.")
			return
		}
		g.Challenge = ""
		idp.serveToken(w, g)
	case "refresh_token":
		idp.mu.Lock()
		g, ok := idp.refreshTokens[r.FormValue("refresh_token")]
		idp.mu.Unlock()
		if !ok {
			serveError(w, http.StatusBadRequest, "invalid_grant", "invalid refresh token")
			return
		}
		// refreshed tokens never carry an ID token
		refreshed := *g
		refreshed.Nonce = ""
		idp.serveTokenWithoutIDToken(w, &refreshed)
	default:
		serveError(w, http.StatusBadRequest, "unsupported_grant_type", "")
	}
}

func (idp *IDP) serveToken(w http.ResponseWriter, g *grant) {
	res := idp.tokenResponse(g)
	if !idp.cfg.OmitIDToken {
		res["id_token"] = idp.idToken(g)
	}
	serveJSON(w, res)
}

func (idp *IDP) serveTokenWithoutIDToken(w http.ResponseWriter, g *grant) {
	serveJSON(w, idp.tokenResponse(g))
}

func (idp *IDP) tokenResponse(g *grant) map[string]any {
	res := map[string]any{
		"access_token": g.Encode(),
		"token_type":   "Bearer",
		"expires_in":   accessTokenExpiresIn,
		"scope":        g.Scope,
	}
	if !idp.cfg.OmitRefreshToken {
		refreshToken := uuid.NewString()
		idp.mu.Lock()
		idp.refreshTokens[refreshToken] = g
		idp.mu.Unlock()
		res["refresh_token"] = refreshToken
	}
	return res
}

func (idp *IDP) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	authz, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		serveError(w, http.StatusUnauthorized, "invalid_request", "missing bearer token")
		return
	}
	g, err := decodeGrant(authz)
	if err != nil || idp.Revoked(authz) {
		serveError(w, http.StatusUnauthorized, "invalid_token", "access token expired")
		return
	}

	user := idp.userLookup[g.Email]
	res := map[string]any{"sub": user.ID}
	if user.DisplayName != "" {
		res["name"] = user.DisplayName
	}
	if user.PictureURL != "" {
		res["picture"] = user.PictureURL
	}
	serveJSON(w, res)
}

// handleVerify verifies an ID token the way LINE's verify endpoint does:
// signature, audience, expiry and, when given, nonce.
func (idp *IDP) handleVerify(w http.ResponseWriter, r *http.Request) {
	nonce := r.FormValue("nonce")
	idp.mu.Lock()
	idp.nonces = append(idp.nonces, nonce)
	idp.mu.Unlock()

	if idp.cfg.VerifyError != "" {
		serveError(w, http.StatusBadRequest, idp.cfg.VerifyError, "Invalid IdToken.")
		return
	}

	tok, err := jwt.ParseSigned(r.FormValue("id_token"))
	if err != nil {
		serveError(w, http.StatusBadRequest, "invalid_request", "Invalid IdToken.")
		return
	}

	var std jwt.Claims
	var claims map[string]any
	if err := tok.Claims([]byte(idp.cfg.ClientSecret), &std, &claims); err != nil {
		serveError(w, http.StatusBadRequest, "invalid_request", "Invalid IdToken.")
		return
	}
	if err := std.Validate(jwt.Expected{Audience: jwt.Audience{r.FormValue("client_id")}, Time: time.Now()}); err != nil {
		serveError(w, http.StatusBadRequest, "invalid_request", "Invalid IdToken.")
		return
	}
	if nonce != "" && claims["nonce"] != nonce {
		serveError(w, http.StatusBadRequest, "invalid_request", "Invalid IdToken Nonce.")
		return
	}
	serveJSON(w, claims)
}

func (idp *IDP) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("client_id") != idp.cfg.ClientID || r.FormValue("client_secret") != idp.cfg.ClientSecret {
		serveError(w, http.StatusBadRequest, "invalid_client", "Invalid client")
		return
	}
	idp.mu.Lock()
	idp.revoked[r.FormValue("access_token")] = true
	idp.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (idp *IDP) idToken(g *grant) string {
	sig, err := jose.NewSigner(jose.SigningKey{
		Algorithm: jose.HS256,
		Key:       []byte(idp.cfg.ClientSecret),
	}, (&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		panic(err)
	}

	user := idp.userLookup[g.Email]
	now := time.Now()
	claims := map[string]any{
		"iss":  "https://access.line.me",
		"sub":  user.ID,
		"aud":  g.ClientID,
		"exp":  jwt.NewNumericDate(now.Add(time.Hour)),
		"iat":  jwt.NewNumericDate(now),
		"amr":  []string{"linesso"},
		"name": user.DisplayName,
	}
	if g.Nonce != "" {
		claims["nonce"] = g.Nonce
	}
	if user.PictureURL != "" {
		claims["picture"] = user.PictureURL
	}
	if strings.Contains(g.Scope, "email") && user.Email != "" {
		claims["email"] = user.Email
	}

	str, err := jwt.Signed(sig).Claims(claims).CompactSerialize()
	if err != nil {
		panic(err)
	}
	return str
}

func serveError(w http.ResponseWriter, status int, code, description string) {
	bs, _ := json.Marshal(map[string]string{
		"error":             code,
		"error_description": description,
	})
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(bs)))
	w.WriteHeader(status)
	_, _ = w.Write(bs)
}

func serveJSON(w http.ResponseWriter, obj any) {
	bs, err := json.Marshal(obj)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, strings.NewReader(string(bs)))
}

// grant is the state encoded into codes and access tokens.
type grant struct {
	Email       string `json:"email"`
	ClientID    string `json:"client_id"`
	RedirectURI string `json:"redirect_uri,omitempty"`
	Nonce       string `json:"nonce,omitempty"`
	Scope       string `json:"scope,omitempty"`
	Challenge   string `json:"code_challenge,omitempty"`
}

func decodeGrant(raw string) (*grant, error) {
	var g grant
	bs, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(bs, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (g grant) Encode() string {
	bs, _ := json.Marshal(g)
	return base64.RawURLEncoding.EncodeToString(bs)
}
