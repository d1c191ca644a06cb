package cache

import (
	"maps"
	"net/url"
	"slices"
	"strings"
)

// KeyPrefix starts every key this package writes.
const KeyPrefix = "travel"

// CacheKey identifies one upstream GET call: its path plus query.
type CacheKey struct {
	Endpoint    string
	QueryParams url.Values
}

// String renders the key as travel:<path>[:<name>=<v1,v2>]..., with query
// names sorted and repeated values in request order, e.g.
//
//	travel:api/places:query=Tokyo Tower
func (k CacheKey) String() string {
	var b strings.Builder
	b.WriteString(KeyPrefix)

	if path := strings.Trim(k.Endpoint, "/"); path != "" {
		b.WriteByte(':')
		b.WriteString(path)
	}
	for _, name := range slices.Sorted(maps.Keys(k.QueryParams)) {
		b.WriteByte(':')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strings.Join(k.QueryParams[name], ","))
	}
	return b.String()
}
