package compare

import "strings"

const pairSeparator = "|"

// PairKey addresses the cache entry for two coordinate keys. It is order
// independent: PairKey(a, b) == PairKey(b, a).
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return strings.Join([]string{a, b}, pairSeparator)
}
