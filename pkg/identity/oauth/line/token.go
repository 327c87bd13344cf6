package line

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/oauth2"

	"github.com/pomerium/lineauth/internal/httputil"
	"github.com/pomerium/lineauth/internal/telemetry/trace"
	"github.com/pomerium/lineauth/internal/version"
)

// Refresh renews an access token with its refresh token.
//
// https://developers.line.biz/en/reference/line-login/#refresh-access-token
func (p *Provider) Refresh(ctx context.Context, t *oauth2.Token) (*oauth2.Token, error) {
	ctx, span := trace.Continue(ctx, "line: refresh")
	defer span.End()

	if t == nil || t.RefreshToken == "" {
		return nil, ErrMissingRefreshToken
	}

	newToken, err := p.oauth.TokenSource(p.withClient(ctx), &oauth2.Token{RefreshToken: t.RefreshToken}).Token()
	if err != nil {
		err = fmt.Errorf("identity/line: refresh failed: %w", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return newToken, nil
}

// Revoke invalidates an access token.
//
// https://developers.line.biz/en/reference/line-login/#revoke-access-token
func (p *Provider) Revoke(ctx context.Context, t *oauth2.Token) error {
	ctx, span := trace.Continue(ctx, "line: revoke")
	defer span.End()

	if t == nil || t.AccessToken == "" {
		return ErrMissingAccessToken
	}

	params := url.Values{}
	params.Set("access_token", t.AccessToken)
	params.Set("client_id", p.oauth.ClientID)
	params.Set("client_secret", p.oauth.ClientSecret)

	err := httputil.Do(p.withClient(ctx), http.MethodPost, p.revokeURL, version.UserAgent(), nil, params, nil)
	if err != nil {
		err = fmt.Errorf("identity/line: revoke failed: %w", err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
