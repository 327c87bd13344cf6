package identity

import (
	"encoding/json"
)

// Claims are the decoded claims of an ID token or a user-info response.
type Claims map[string]any

// UnmarshalJSON unmarshals the raw json data into the claims object.
func (claims *Claims) UnmarshalJSON(data []byte) error {
	if *claims == nil {
		*claims = make(Claims)
	}

	var m map[string]any
	err := json.Unmarshal(data, &m)
	if err != nil {
		return err
	}
	for k, v := range m {
		(*claims)[k] = v
	}
	return nil
}

// Get returns the claim as an identity Value. Missing claims are absent.
func (claims Claims) Get(name string) Value {
	if claims == nil {
		return Absent()
	}
	return FromAny(claims[name])
}

// Map converts the claims into a Map.
func (claims Claims) Map() Map {
	return MapFromAny(claims)
}
