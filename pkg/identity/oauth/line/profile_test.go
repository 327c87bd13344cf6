package line_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"

	"github.com/pomerium/lineauth/pkg/identity/identity"
	"github.com/pomerium/lineauth/pkg/identity/oauth/line"
)

func TestBuildInfo(t *testing.T) {
	t.Parallel()

	info := line.BuildInfo(
		identity.Claims{"sub": "U123", "name": "Alice", "picture": ""},
		line.IDTokenInfo{Raw: "ID_TOKEN", Decoded: identity.Claims{"email": "a@example.com"}},
	)
	assert.Equal(t, map[string]any{
		"name":     "Alice",
		"nickname": "U123",
		"email":    "a@example.com",
	}, info.Interface())

	// the user info email is never used
	info = line.BuildInfo(identity.Claims{"sub": "U123", "email": "spoofed@example.com"}, line.IDTokenInfo{})
	assert.Equal(t, map[string]any{"nickname": "U123"}, info.Interface())
}

func TestBuildExtra(t *testing.T) {
	t.Parallel()

	rawInfo := identity.Claims{
		"sub":    "U123",
		"name":   "",
		"nested": map[string]any{"empty": ""},
	}
	idInfo := line.IDTokenInfo{Raw: "ID_TOKEN", Decoded: identity.Claims{"sub": "U123", "amr": []any{}}}

	assert.Equal(t, map[string]any{
		"raw_info": map[string]any{"sub": "U123"},
		"id_token": "ID_TOKEN",
		"id_info":  map[string]any{"sub": "U123"},
	}, line.BuildExtra(rawInfo, idInfo, false).Interface())

	assert.Equal(t, map[string]any{
		"id_token": "ID_TOKEN",
		"id_info":  map[string]any{"sub": "U123"},
	}, line.BuildExtra(rawInfo, idInfo, true).Interface())

	assert.Equal(t, map[string]any{}, line.BuildExtra(nil, line.IDTokenInfo{}, false).Interface())
}

func TestCredentialsFromToken(t *testing.T) {
	t.Parallel()

	assert.Equal(t, map[string]any{
		"token":   "ACCESS_TOKEN",
		"expires": false,
	}, line.CredentialsFromToken(&oauth2.Token{AccessToken: "ACCESS_TOKEN"}).Map().Interface())

	expiry := time.Unix(1700000000, 0)
	assert.Equal(t, identity.Credentials{
		Token:        "ACCESS_TOKEN",
		Expires:      true,
		ExpiresAt:    1700000000,
		RefreshToken: "REFRESH_TOKEN",
	}, line.CredentialsFromToken(&oauth2.Token{
		AccessToken:  "ACCESS_TOKEN",
		RefreshToken: "REFRESH_TOKEN",
		Expiry:       expiry,
	}))
}
