package line

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/pomerium/lineauth/internal/httputil"
	"github.com/pomerium/lineauth/internal/log"
	"github.com/pomerium/lineauth/internal/sessions"
	"github.com/pomerium/lineauth/internal/telemetry/metrics"
	"github.com/pomerium/lineauth/internal/telemetry/trace"
	"github.com/pomerium/lineauth/internal/version"
	"github.com/pomerium/lineauth/pkg/identity/identity"
)

// IDTokenInfo is the ID token issued with an access token. Raw is empty and
// Decoded is nil when no ID token was issued.
type IDTokenInfo struct {
	Raw     string
	Decoded identity.Claims
}

// VerifyIDToken asks LINE to verify rawIDToken and returns its claims.
//
// The nonce stored with the session, if any, is consumed and sent along, so it
// binds at most one verification. Any failure, whether reported by LINE or
// while talking to it, is a CallbackError of kind
// KindIDTokenVerificationFailed.
func (p *Provider) VerifyIDToken(ctx context.Context, c sessions.Correlation, rawIDToken string) (identity.Claims, error) {
	ctx, span := trace.Continue(ctx, "line: verify id token")
	defer span.End()

	claims, err := p.verifyIDToken(ctx, c, rawIDToken)
	if err != nil {
		metrics.RecordIDTokenVerification(metrics.ResultFailure)
		span.SetStatus(codes.Error, err.Error())
		log.Warn(ctx).Err(err).Msg("identity/line: id token verification failed")
		return nil, err
	}
	metrics.RecordIDTokenVerification(metrics.ResultSuccess)
	return claims, nil
}

func (p *Provider) verifyIDToken(ctx context.Context, c sessions.Correlation, rawIDToken string) (identity.Claims, error) {
	params := url.Values{}
	params.Set("id_token", rawIDToken)
	params.Set("client_id", p.oauth.ClientID)

	nonce, ok, err := c.Take(ctx, sessions.KeyNonce)
	if err != nil {
		return nil, &CallbackError{
			Kind: KindIDTokenVerificationFailed,
			Err:  fmt.Errorf("identity/line: failed to read nonce: %w", err),
		}
	}
	if ok {
		params.Set("nonce", nonce)
	}
	oteltrace.SpanFromContext(ctx).SetAttributes(attribute.Bool("line.nonce", ok))

	var response map[string]any
	err = httputil.Do(p.withClient(ctx), http.MethodPost, p.verifyURL, version.UserAgent(), nil, params, &response)
	if err != nil {
		cbErr := &CallbackError{Kind: KindIDTokenVerificationFailed, Err: err}
		var respErr *httputil.ResponseError
		if errors.As(err, &respErr) {
			cbErr.Description = respErr.Description
		}
		return nil, cbErr
	}
	if response == nil {
		return nil, &CallbackError{Kind: KindIDTokenVerificationFailed, Err: ErrMalformedVerifyResponse}
	}

	if isError(response["error"]) {
		return nil, &CallbackError{
			Kind:        KindIDTokenVerificationFailed,
			Description: errorDescription(response),
		}
	}
	return identity.Claims(response), nil
}

// isError reports whether the error field of a response is set.
func isError(v any) bool {
	return v != nil && v != false
}

// errorDescription returns the provider's explanation of an error response.
func errorDescription(response map[string]any) string {
	for _, key := range []string{"error_description", "error"} {
		switch v := response[key].(type) {
		case nil:
		case string:
			if v != "" {
				return v
			}
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}
