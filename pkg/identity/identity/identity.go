// Package identity contains the normalized identity record produced by a
// login strategy.
package identity

// Info keys.
const (
	InfoName     = "name"
	InfoNickname = "nickname"
	InfoImage    = "image"
	InfoEmail    = "email"
)

// Extra keys.
const (
	ExtraRawInfo = "raw_info"
	ExtraIDToken = "id_token"
	ExtraIDInfo  = "id_info"
)

// Identity is the normalized result of a successful sign in.
//
// An Identity is built once per callback and never modified afterwards. UID may
// be empty when the provider did not return a subject; callers must check it.
type Identity struct {
	Provider    string      `json:"provider"`
	UID         string      `json:"uid"`
	Info        Map         `json:"info"`
	Extra       Map         `json:"extra"`
	Credentials Credentials `json:"credentials"`
}

// HasUID reports whether the identity carries a subject identifier.
func (id *Identity) HasUID() bool {
	return id != nil && id.UID != ""
}

// Credentials is the projection of an access token.
type Credentials struct {
	Token        string `json:"token"`
	Expires      bool   `json:"expires"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Map returns the credentials as a Map, containing only the keys that apply.
func (c Credentials) Map() Map {
	m := Map{
		"token":   String(c.Token),
		"expires": Scalar(c.Expires),
	}
	if c.Expires {
		m["expires_at"] = Scalar(c.ExpiresAt)
	}
	if c.RefreshToken != "" {
		m["refresh_token"] = String(c.RefreshToken)
	}
	return m
}
