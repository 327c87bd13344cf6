package line

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/oauth2"

	"github.com/pomerium/lineauth/internal/cryptutil"
	"github.com/pomerium/lineauth/internal/httputil"
	"github.com/pomerium/lineauth/internal/log"
	"github.com/pomerium/lineauth/internal/sessions"
	"github.com/pomerium/lineauth/internal/telemetry/trace"
	"github.com/pomerium/lineauth/pkg/identity/pkce"
)

// ResponseTypeCode is the only supported response type.
const ResponseTypeCode = "code"

// Authorization request parameters that may be passed through from the
// initiating request.
const (
	ParamScope     = "scope"
	ParamState     = "state"
	ParamNonce     = "nonce"
	ParamPrompt    = "prompt"
	ParamBotPrompt = "bot_prompt"
)

// AuthorizationRequest is the parameter set of a single redirect to the
// authorization endpoint. Empty optional fields are omitted from the URL.
type AuthorizationRequest struct {
	Scope        string
	State        string
	Nonce        string
	Prompt       string
	BotPrompt    string
	ResponseType string

	// PKCE is empty unless the provider sends a code challenge.
	PKCE pkce.Params
}

// NewAuthorizationRequest builds the authorization request for one login
// attempt from the query of the initiating request.
//
// Non-empty client supplied values are used verbatim. A missing scope falls
// back to the configured scope, and a missing state or nonce is replaced with
// a random hex string.
func (p *Provider) NewAuthorizationRequest(params url.Values) *AuthorizationRequest {
	ar := &AuthorizationRequest{
		Scope:        params.Get(ParamScope),
		State:        params.Get(ParamState),
		Nonce:        params.Get(ParamNonce),
		Prompt:       params.Get(ParamPrompt),
		BotPrompt:    params.Get(ParamBotPrompt),
		ResponseType: ResponseTypeCode,
	}
	if ar.Scope == "" {
		ar.Scope = p.scope
	}
	if ar.State == "" {
		ar.State = cryptutil.NewRandomHex(cryptutil.DefaultTokenSize)
	}
	if ar.Nonce == "" {
		ar.Nonce = cryptutil.NewRandomHex(cryptutil.DefaultTokenSize)
	}
	if p.pkce {
		ar.PKCE = pkce.New()
	}
	return ar
}

// Persist stores the state, nonce and code verifier in the session so the callback can be
// correlated with this request.
func (ar *AuthorizationRequest) Persist(ctx context.Context, c sessions.Correlation) error {
	if ar.State != "" {
		if err := c.Set(ctx, sessions.KeyState, ar.State); err != nil {
			return fmt.Errorf("identity/line: failed to store state: %w", err)
		}
	}
	if ar.Nonce != "" {
		if err := c.Set(ctx, sessions.KeyNonce, ar.Nonce); err != nil {
			return fmt.Errorf("identity/line: failed to store nonce: %w", err)
		}
	}
	if ar.PKCE.Enabled() {
		if err := c.Set(ctx, sessions.KeyCodeVerifier, ar.PKCE.Verifier); err != nil {
			return fmt.Errorf("identity/line: failed to store code verifier: %w", err)
		}
	}
	return nil
}

// AuthCodeURL returns the authorization endpoint URL for ar.
func (p *Provider) AuthCodeURL(ar *AuthorizationRequest, callbackURL string) string {
	opts := make([]oauth2.AuthCodeOption, 0, len(p.authCodeOptions)+6)
	for k, v := range p.authCodeOptions {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	opts = append(opts,
		oauth2.SetAuthURLParam(ParamScope, ar.Scope),
		oauth2.SetAuthURLParam("response_type", ar.ResponseType),
	)
	if ar.Nonce != "" {
		opts = append(opts, oauth2.SetAuthURLParam(ParamNonce, ar.Nonce))
	}
	if ar.Prompt != "" {
		opts = append(opts, oauth2.SetAuthURLParam(ParamPrompt, ar.Prompt))
	}
	if ar.BotPrompt != "" {
		opts = append(opts, oauth2.SetAuthURLParam(ParamBotPrompt, ar.BotPrompt))
	}
	opts = append(opts, pkce.AuthCodeOptions(ar.PKCE)...)
	return p.config(callbackURL).AuthCodeURL(ar.State, opts...)
}

// SignIn starts a login attempt: it builds the authorization request from the
// query of r, stores its state and nonce in the session and redirects the user
// agent to LINE's consent page.
func (p *Provider) SignIn(w http.ResponseWriter, r *http.Request, c sessions.Correlation) error {
	ctx, span := trace.Continue(r.Context(), "line: sign in")
	defer span.End()

	ar := p.NewAuthorizationRequest(r.URL.Query())
	span.SetAttributes(
		attribute.String("line.scope", ar.Scope),
		attribute.Bool("line.prompt", ar.Prompt != ""),
		attribute.Bool("line.pkce", ar.PKCE.Enabled()),
	)

	if err := ar.Persist(ctx, c); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	log.Debug(ctx).Str("scope", ar.Scope).Msg("identity/line: redirecting to authorization endpoint")
	httputil.Redirect(w, r, p.AuthCodeURL(ar, p.CallbackURL(r)), http.StatusFound)
	return nil
}
