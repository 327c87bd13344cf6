// Package pkce implements the proof key for code exchange parameters sent with
// an authorization request and its token exchange.
package pkce

import (
	"strings"

	"golang.org/x/oauth2"
)

// MethodS256 is the only supported challenge method.
const MethodS256 = "S256"

// Params describes a PKCE verifier and method.
type Params struct {
	Verifier string
	Method   string
}

// New returns fresh S256 parameters with a random verifier.
func New() Params {
	return Params{Verifier: oauth2.GenerateVerifier(), Method: MethodS256}
}

// Enabled reports whether params carry a verifier.
func (params Params) Enabled() bool {
	return params.Verifier != ""
}

// AuthCodeOptions returns the challenge options for the authorization request.
// Only S256 is supported; the plain method is never sent.
func AuthCodeOptions(params Params) []oauth2.AuthCodeOption {
	if params.Verifier == "" || !strings.EqualFold(params.Method, MethodS256) {
		return nil
	}
	return []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(params.Verifier)}
}

// VerifierOption returns an auth code option for the code verifier.
func VerifierOption(params Params) (oauth2.AuthCodeOption, bool) {
	if params.Verifier == "" {
		return nil, false
	}
	return oauth2.VerifierOption(params.Verifier), true
}
