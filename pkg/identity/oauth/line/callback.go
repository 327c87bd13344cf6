package line

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/oauth2"

	"github.com/pomerium/lineauth/internal/sessions"
	"github.com/pomerium/lineauth/internal/telemetry/trace"
	"github.com/pomerium/lineauth/internal/urlutil"
	"github.com/pomerium/lineauth/pkg/identity/identity"
	"github.com/pomerium/lineauth/pkg/identity/pkce"
)

// CallbackURL returns the redirect URI sent with both the authorization request
// and the code exchange. A configured redirect URL wins; otherwise the URL is
// derived from the request origin and the callback path.
func (p *Provider) CallbackURL(r *http.Request) string {
	if p.redirectURL != nil {
		return p.redirectURL.String()
	}
	origin := urlutil.GetOrigin(r)
	origin.Path = p.callbackPath
	return origin.String()
}

// Exchange converts an authorization code into a token. callbackURL must equal
// the one used for the authorization request, and verifier the PKCE parameters
// it was sent with, if any.
func (p *Provider) Exchange(ctx context.Context, code, callbackURL string, verifier pkce.Params) (*oauth2.Token, error) {
	ctx, span := trace.Continue(ctx, "line: token exchange")
	defer span.End()

	var opts []oauth2.AuthCodeOption
	if opt, ok := pkce.VerifierOption(verifier); ok {
		opts = append(opts, opt)
	}
	token, err := p.config(callbackURL).Exchange(p.withClient(ctx), code, opts...)
	if err != nil {
		err = classify(fmt.Errorf("identity/line: token exchange failed: %w", err))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return token, nil
}

// Callback completes a login attempt from the redirect back from LINE.
//
// It rejects provider errors, checks the returned state against the one stored
// with the session, exchanges the code and builds the identity. The stored
// state is consumed whether or not it matches.
func (p *Provider) Callback(ctx context.Context, r *http.Request, c sessions.Correlation) (*identity.Identity, error) {
	ctx, span := trace.Continue(ctx, "line: callback")
	defer span.End()

	id, err := p.callback(ctx, r, c)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return id, nil
}

func (p *Provider) callback(ctx context.Context, r *http.Request, c sessions.Correlation) (*identity.Identity, error) {
	q := r.URL.Query()

	if kind := q.Get("error"); kind != "" {
		desc := q.Get("error_description")
		if desc == "" {
			desc = q.Get("error_reason")
		}
		return nil, &CallbackError{Kind: kind, Description: desc}
	}

	state, ok, err := c.Take(ctx, sessions.KeyState)
	if err != nil {
		return nil, &CallbackError{Kind: KindCSRFDetected, Err: err}
	}
	if !ok || state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(q.Get(ParamState))) != 1 {
		return nil, &CallbackError{Kind: KindCSRFDetected, Err: ErrStateMismatch}
	}

	code := q.Get("code")
	if code == "" {
		return nil, &CallbackError{Kind: KindInvalidCredentials, Err: ErrMissingCode}
	}

	var verifier pkce.Params
	if p.pkce {
		v, ok, err := c.Take(ctx, sessions.KeyCodeVerifier)
		if err != nil || !ok {
			return nil, &CallbackError{Kind: KindCSRFDetected, Err: ErrMissingCodeVerifier}
		}
		verifier = pkce.Params{Verifier: v, Method: pkce.MethodS256}
	}

	token, err := p.Exchange(ctx, code, p.CallbackURL(r), verifier)
	if err != nil {
		return nil, err
	}
	return p.NewFlow(c, token).Identity(ctx)
}
