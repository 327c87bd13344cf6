package identity

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/pomerium/lineauth/internal/httputil"
	"github.com/pomerium/lineauth/internal/sessions"
	"github.com/pomerium/lineauth/pkg/identity/identity"
)

// MockProvider provides a mocked implementation of the providers interface.
type MockProvider struct {
	SignInURL        string
	SignInError      error
	CallbackResponse identity.Identity
	CallbackError    error
	RefreshResponse  oauth2.Token
	RefreshError     error
	RevokeError      error
}

// Name returns the provider name.
func (mp MockProvider) Name() string {
	return "mock"
}

// SignIn is a mocked providers function.
func (mp MockProvider) SignIn(w http.ResponseWriter, r *http.Request, _ sessions.Correlation) error {
	if mp.SignInError != nil {
		return mp.SignInError
	}
	httputil.Redirect(w, r, mp.SignInURL, http.StatusFound)
	return nil
}

// Callback is a mocked providers function.
func (mp MockProvider) Callback(context.Context, *http.Request, sessions.Correlation) (*identity.Identity, error) {
	if mp.CallbackError != nil {
		return nil, mp.CallbackError
	}
	return &mp.CallbackResponse, nil
}

// Refresh is a mocked providers function.
func (mp MockProvider) Refresh(context.Context, *oauth2.Token) (*oauth2.Token, error) {
	return &mp.RefreshResponse, mp.RefreshError
}

// Revoke is a mocked providers function.
func (mp MockProvider) Revoke(context.Context, *oauth2.Token) error {
	return mp.RevokeError
}
