package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestDo(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/get":
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "1", r.URL.Query().Get("q"))
			assert.Equal(t, "Bearer TOKEN", r.Header.Get("Authorization"))
			assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
			json.NewEncoder(w).Encode(map[string]any{"sub": "U123"})
		case "/post":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "ID_TOKEN", r.PostForm.Get("id_token"))
			json.NewEncoder(w).Encode(map[string]any{"ok": true})
		case "/bad-request":
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"error":             "invalid_request",
				"error_description": "Invalid IdToken.",
			})
		case "/broken":
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("<html>"))
		case "/not-json":
			w.Write([]byte("<html>"))
		}
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()

	var got map[string]any
	err := Do(ctx, http.MethodGet, srv.URL+"/get", "test-agent",
		map[string]string{"Authorization": "Bearer TOKEN"}, url.Values{"q": {"1"}}, &got)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sub": "U123"}, got)

	err = Do(ctx, http.MethodPost, srv.URL+"/post", "test-agent", nil, url.Values{"id_token": {"ID_TOKEN"}}, nil)
	require.NoError(t, err)

	err = Do(ctx, http.MethodPost, srv.URL+"/bad-request", "test-agent", nil, nil, nil)
	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, http.StatusBadRequest, respErr.StatusCode)
	assert.Equal(t, "invalid_request", respErr.ErrorCode)
	assert.Equal(t, "Invalid IdToken.", respErr.Description)

	err = Do(ctx, http.MethodGet, srv.URL+"/broken", "test-agent", nil, nil, nil)
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, http.StatusBadGateway, respErr.StatusCode)
	assert.Empty(t, respErr.ErrorCode)

	err = Do(ctx, http.MethodGet, srv.URL+"/not-json", "test-agent", nil, nil, &got)
	assert.ErrorContains(t, err, "invalid response body")

	err = Do(ctx, http.MethodDelete, srv.URL, "test-agent", nil, nil, nil)
	assert.Error(t, err)
}

func TestClientFromContext(t *testing.T) {
	t.Parallel()

	assert.Same(t, defaultClient, ClientFromContext(context.Background()))

	c := &http.Client{}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c)
	assert.Same(t, c, ClientFromContext(ctx))
}

func TestHandlerFunc(t *testing.T) {
	t.Parallel()

	h := HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) error {
		return &HTTPError{Status: http.StatusForbidden, Err: errors.New("state mismatch"), Kind: "csrf_detected"}
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"status":403,"error":"Forbidden: state mismatch","kind":"csrf_detected"}`, rec.Body.String())

	h = HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) error {
		return errors.New("boom")
	})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		method string
		code   int
		body   string
	}{
		{http.MethodGet, http.StatusOK, "OK"},
		{http.MethodHead, http.StatusOK, ""},
		{http.MethodPost, http.StatusMethodNotAllowed, "Method Not Allowed\n"},
	} {
		rec := httptest.NewRecorder()
		HealthCheck(rec, httptest.NewRequest(tc.method, "/ping", nil))
		assert.Equal(t, tc.code, rec.Code, tc.method)
		assert.Equal(t, tc.body, rec.Body.String(), tc.method)
	}
}
