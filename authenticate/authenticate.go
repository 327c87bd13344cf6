// Package authenticate is the HTTP host of the LINE login flow: it starts
// login attempts, completes callbacks and returns the normalized identity.
package authenticate

import (
	"errors"

	"github.com/pomerium/lineauth/config"
	"github.com/pomerium/lineauth/internal/sessions/cookie"
	"github.com/pomerium/lineauth/pkg/identity"
)

// Authenticate contains data required to run the authenticate service.
type Authenticate struct {
	options  *config.Options
	provider identity.Authenticator
	sessions *cookie.Store
}

// New creates a new authenticate service.
func New(o *config.Options, provider identity.Authenticator, store *cookie.Store) (*Authenticate, error) {
	if o == nil {
		return nil, errors.New("authenticate: options are required")
	}
	if provider == nil {
		return nil, errors.New("authenticate: identity provider is required")
	}
	if store == nil {
		return nil, errors.New("authenticate: session store is required")
	}
	return &Authenticate{
		options:  o,
		provider: provider,
		sessions: store,
	}, nil
}
