package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/pomerium/lineauth/internal/log"
)

// maxResponseSize bounds how much of a provider response body is read.
const maxResponseSize = 1 << 20

// ResponseError is returned by Do when the remote endpoint answers with a
// non-2xx status. OAuth style error bodies are decoded into ErrorCode and
// Description.
type ResponseError struct {
	StatusCode  int
	ErrorCode   string
	Description string
}

// Error implements the `error` interface.
func (e *ResponseError) Error() string {
	msg := fmt.Sprintf("httputil: unexpected status %d %s", e.StatusCode, StatusText(e.StatusCode))
	if e.ErrorCode != "" {
		msg += ": " + e.ErrorCode
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	return msg
}

type loggingRoundTripper struct {
	base      http.RoundTripper
	customize []func(event *zerolog.Event) *zerolog.Event
}

func (l loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	res, err := l.base.RoundTrip(req)
	statusCode := http.StatusInternalServerError
	if res != nil {
		statusCode = res.StatusCode
	}
	evt := log.Debug(req.Context()).
		Str("method", req.Method).
		Str("authority", req.URL.Host).
		Str("path", req.URL.Path).
		Dur("duration", time.Since(start)).
		Int("response-code", statusCode)
	for _, f := range l.customize {
		f(evt)
	}
	evt.Msg("outbound http-request")
	return res, err
}

// NewLoggingRoundTripper creates a http.RoundTripper that will log requests.
func NewLoggingRoundTripper(base http.RoundTripper, customize ...func(event *zerolog.Event) *zerolog.Event) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return loggingRoundTripper{base: base, customize: customize}
}

// NewLoggingClient creates a new http.Client that will log requests.
func NewLoggingClient(base *http.Client, customize ...func(event *zerolog.Event) *zerolog.Event) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	newClient := new(http.Client)
	*newClient = *base
	newClient.Transport = NewLoggingRoundTripper(newClient.Transport, customize...)
	return newClient
}

// defaultClient avoids leaks by setting an upper limit for timeouts.
var defaultClient = NewLoggingClient(&http.Client{Timeout: 1 * time.Minute})

// ClientFromContext returns the client installed on ctx under oauth2.HTTPClient,
// so that provider API calls share the transport used for the token exchange.
func ClientFromContext(ctx context.Context) *http.Client {
	if c, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok && c != nil {
		return c
	}
	return defaultClient
}

// Do provides a simple helper interface to make HTTP requests.
//
// POST requests send params form encoded in the body, GET requests send them
// in the query string. A 2xx response body is decoded as JSON into response
// when response is non-nil; any other status yields a *ResponseError.
func Do(ctx context.Context, method, endpoint, userAgent string, headers map[string]string, params url.Values, response any) error {
	var body io.Reader
	switch method {
	case http.MethodPost:
		body = bytes.NewBufferString(params.Encode())
	case http.MethodGet:
		if params != nil {
			u, err := url.Parse(endpoint)
			if err != nil {
				return err
			}
			u.RawQuery = params.Encode()
			endpoint = u.String()
		}
	default:
		return errors.New(http.StatusText(http.StatusBadRequest))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := ClientFromContext(ctx).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respErr := &ResponseError{StatusCode: resp.StatusCode}
		var oauthErr struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(respBody, &oauthErr) == nil {
			respErr.ErrorCode = oauthErr.Error
			respErr.Description = oauthErr.ErrorDescription
		}
		return respErr
	}
	if response != nil {
		if err := json.Unmarshal(respBody, response); err != nil {
			return fmt.Errorf("httputil: invalid response body: %w", err)
		}
	}
	return nil
}
