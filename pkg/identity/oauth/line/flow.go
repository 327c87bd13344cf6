package line

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/oauth2"

	"github.com/pomerium/lineauth/internal/httputil"
	"github.com/pomerium/lineauth/internal/sessions"
	"github.com/pomerium/lineauth/internal/telemetry/metrics"
	"github.com/pomerium/lineauth/internal/telemetry/trace"
	"github.com/pomerium/lineauth/internal/version"
	"github.com/pomerium/lineauth/pkg/identity/identity"
)

// A Flow normalizes the result of one code exchange into an Identity.
//
// The user info response and the verified ID token are each fetched at most
// once, on first use. A Flow belongs to a single callback request.
type Flow struct {
	provider *Provider
	session  sessions.Correlation
	token    *oauth2.Token

	rawInfoOnce sync.Once
	rawInfo     identity.Claims
	rawInfoErr  error

	idTokenOnce    sync.Once
	idTokenInfo    IDTokenInfo
	idTokenInfoErr error
}

// NewFlow returns the flow for an exchanged token. The session supplies the
// nonce used to verify the ID token.
func (p *Provider) NewFlow(c sessions.Correlation, token *oauth2.Token) *Flow {
	return &Flow{provider: p, session: c, token: token}
}

// Token returns the access token of the flow.
func (f *Flow) Token() *oauth2.Token {
	return f.token
}

// RawInfo returns the user info response fetched with the access token.
func (f *Flow) RawInfo(ctx context.Context) (identity.Claims, error) {
	f.rawInfoOnce.Do(func() {
		f.rawInfo, f.rawInfoErr = f.provider.UserInfo(ctx, f.token)
	})
	return f.rawInfo, f.rawInfoErr
}

// IDTokenInfo returns the ID token issued with the access token and its
// verified claims. When no ID token was issued the result is empty and no
// request is made.
func (f *Flow) IDTokenInfo(ctx context.Context) (IDTokenInfo, error) {
	f.idTokenOnce.Do(func() {
		raw := RawIDToken(f.token)
		if raw == "" {
			metrics.RecordIDTokenVerification(metrics.ResultSkipped)
			return
		}
		claims, err := f.provider.VerifyIDToken(ctx, f.session, raw)
		if err != nil {
			f.idTokenInfoErr = err
			return
		}
		f.idTokenInfo = IDTokenInfo{Raw: raw, Decoded: claims}
	})
	return f.idTokenInfo, f.idTokenInfoErr
}

// Identity builds the normalized identity. A failed ID token verification
// fails the whole flow; no partial identity is returned.
func (f *Flow) Identity(ctx context.Context) (*identity.Identity, error) {
	rawInfo, err := f.RawInfo(ctx)
	if err != nil {
		return nil, err
	}
	idInfo, err := f.IDTokenInfo(ctx)
	if err != nil {
		return nil, err
	}

	uid, _ := rawInfo.Get("sub").Str()
	return &identity.Identity{
		Provider:    Name,
		UID:         uid,
		Info:        BuildInfo(rawInfo, idInfo),
		Extra:       BuildExtra(rawInfo, idInfo, f.provider.skipInfo),
		Credentials: CredentialsFromToken(f.token),
	}, nil
}

// RawIDToken returns the ID token carried by the token response, if any.
func RawIDToken(t *oauth2.Token) string {
	if t == nil {
		return ""
	}
	raw, _ := t.Extra("id_token").(string)
	return raw
}

// UserInfo fetches the user's profile with the access token as bearer
// credential.
func (p *Provider) UserInfo(ctx context.Context, t *oauth2.Token) (identity.Claims, error) {
	ctx, span := trace.Continue(ctx, "line: user info")
	defer span.End()

	if t == nil || t.AccessToken == "" {
		return nil, ErrMissingAccessToken
	}

	headers := map[string]string{"Authorization": "Bearer " + t.AccessToken}
	var claims identity.Claims
	err := httputil.Do(p.withClient(ctx), http.MethodGet, p.userInfoURL, version.UserAgent(), headers, nil, &claims)
	if err != nil {
		err = classify(fmt.Errorf("identity/line: user info request failed: %w", err))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return claims, nil
}
