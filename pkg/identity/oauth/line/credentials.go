package line

import (
	"golang.org/x/oauth2"

	"github.com/pomerium/lineauth/pkg/identity/identity"
)

// CredentialsFromToken projects an access token into identity credentials.
// The expiry and refresh token are only set when the token carries them.
func CredentialsFromToken(t *oauth2.Token) identity.Credentials {
	c := identity.Credentials{
		Token:        t.AccessToken,
		RefreshToken: t.RefreshToken,
	}
	if !t.Expiry.IsZero() {
		c.Expires = true
		c.ExpiresAt = t.Expiry.Unix()
	}
	return c
}
