package identity

// Prune returns a copy of m with every absent or empty value removed.
//
// Nested mappings are pruned first, so a mapping that only held empty values
// is removed from its parent as well. Sequences are not descended into; they
// are only removed when they have no elements. m is not modified.
func Prune(m Map) Map {
	out := make(Map, len(m))
	for k, v := range m {
		if nested, ok := v.Map(); ok {
			v = Object(Prune(nested))
		}
		if v.IsEmpty() {
			continue
		}
		out[k] = v
	}
	return out
}
