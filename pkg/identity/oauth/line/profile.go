package line

import (
	"github.com/pomerium/lineauth/pkg/identity/identity"
)

// BuildInfo returns the pruned info section of the identity.
//
// The email comes from the verified ID token claims, never from the user info
// response.
func BuildInfo(rawInfo identity.Claims, idInfo IDTokenInfo) identity.Map {
	return identity.Prune(identity.Map{
		identity.InfoName:     rawInfo.Get("name"),
		identity.InfoNickname: rawInfo.Get("sub"),
		identity.InfoImage:    rawInfo.Get("picture"),
		identity.InfoEmail:    idInfo.Decoded.Get("email"),
	})
}

// BuildExtra returns the pruned extra section of the identity. The raw user
// info is left out when skipInfo is set.
func BuildExtra(rawInfo identity.Claims, idInfo IDTokenInfo, skipInfo bool) identity.Map {
	extra := identity.Map{}
	if !skipInfo {
		extra[identity.ExtraRawInfo] = identity.Object(rawInfo.Map())
	}
	if idInfo.Raw != "" {
		extra[identity.ExtraIDToken] = identity.String(idInfo.Raw)
	}
	if idInfo.Decoded != nil {
		extra[identity.ExtraIDInfo] = identity.Object(idInfo.Decoded.Map())
	}
	return identity.Prune(extra)
}
