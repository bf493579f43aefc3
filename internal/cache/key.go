package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"
)

// Category enumerates the bounded Tier A maps (spec.md §4.2): independent
// per-category capacity and TTL so one noisy category (e.g. search) cannot
// evict another's (e.g. video sources) entries.
type Category string

const (
	CategorySearch          Category = "search"
	CategoryDiscover        Category = "discover"
	CategoryDetails         Category = "details"
	CategoryVideoSources    Category = "video_sources"
	CategoryChapterImages   Category = "chapter_images"
	CategoryTags            Category = "tags"
	CategoryHome            Category = "home"
	CategoryRecommendations Category = "recommendations"
	CategorySeasonal        Category = "seasonal"
)

// Key builds the canonical fingerprint for a cacheable request: the plugin
// id, method name, and a stable encoding of its parameters. Two calls with
// the same parameters in different map-iteration order must produce the
// same key, so params are sorted by name before joining.
func Key(pluginID, method string, params map[string]string) string {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(pluginID)
	b.WriteByte(':')
	b.WriteString(method)
	for _, k := range names {
		b.WriteByte(':')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}

	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
