package plugin

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/otakuhaven/otakuback/internal/cache"
)

// cached checks Tier A, then Tier B, then falls through to fetch on a full
// miss, writing both tiers on the way back out. This is the single lookup
// path spec.md §4.2 describes: "check memory first, fall back to durable,
// let the caller decide on a full miss" — here the caller is always the
// plugin invocation itself, so a full miss always means "call the plugin".
func cached[T any](ctx context.Context, c *cache.Cache, cat cache.Category, key string, fetch func() (T, error)) (T, error) {
	var zero T
	if v, ok := c.GetMemory(cat, key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	if res, err := c.GetDurable(ctx, cat, key); err == nil && res != nil {
		var typed T
		if json.Unmarshal(res.Blob, &typed) == nil {
			c.PutMemory(cat, key, typed)
			return typed, nil
		}
	}

	v, err := fetch()
	if err != nil {
		return zero, err
	}
	c.PutMemory(cat, key, v)
	if blob, err := json.Marshal(v); err == nil {
		_ = c.PutDurable(ctx, cat, key, blob, cache.TTLFor(cat))
	}
	return v, nil
}

// adultBit renders allowAdult as the stable "0"/"1" cache-key component
// spec.md §4.2 calls for ("an allow_adult bit"), matching the "0"/"1"
// convention every other boolean app_settings value uses.
func adultBit(allowAdult bool) string {
	if allowAdult {
		return "1"
	}
	return "0"
}

// CachedSearch wraps Plugin.Search with the two-tier cache, keyed on the
// plugin id, the normalized query, the page, and the allow_adult bit
// (spec.md §4.2's key shape) so a filtered and unfiltered result for the
// same query never collide.
func CachedSearch(ctx context.Context, c *cache.Cache, p *Plugin, query string, page int, allowAdult bool) (SearchResults, error) {
	key := cache.Key(p.Meta.ID, "search", map[string]string{
		"query":       strings.ToLower(strings.TrimSpace(query)),
		"page":        strconv.Itoa(page),
		"allow_adult": adultBit(allowAdult),
	})
	return cached(ctx, c, cache.CategorySearch, key, func() (SearchResults, error) {
		return p.Search(ctx, query, page, allowAdult)
	})
}

// CachedDiscover wraps Plugin.Discover.
func CachedDiscover(ctx context.Context, c *cache.Cache, p *Plugin, page int, sortTag string, genres []string, allowAdult bool) (SearchResults, error) {
	sortedGenres := append([]string(nil), genres...)
	sort.Strings(sortedGenres)
	key := cache.Key(p.Meta.ID, "discover", map[string]string{
		"page":        strconv.Itoa(page),
		"sort":        sortTag,
		"genres":      strings.Join(sortedGenres, ","),
		"allow_adult": adultBit(allowAdult),
	})
	return cached(ctx, c, cache.CategoryDiscover, key, func() (SearchResults, error) {
		return p.Discover(ctx, page, sortTag, genres, allowAdult)
	})
}

// CachedGetDetails wraps Plugin.GetDetails.
func CachedGetDetails(ctx context.Context, c *cache.Cache, p *Plugin, id string, allowAdult bool) (MediaDetails, error) {
	key := cache.Key(p.Meta.ID, "getDetails", map[string]string{"id": id, "allow_adult": adultBit(allowAdult)})
	return cached(ctx, c, cache.CategoryDetails, key, func() (MediaDetails, error) {
		return p.GetDetails(ctx, id, allowAdult)
	})
}

// CachedGetSources wraps Plugin.GetSources. Video sources often embed
// short-lived signed URLs, so callers that need a guaranteed-fresh link
// should call Plugin.GetSources directly instead. allowAdult is folded into
// the key for consistency with every other cached category even though
// getSources resolves a specific episode id rather than a filtered listing.
func CachedGetSources(ctx context.Context, c *cache.Cache, p *Plugin, episodeID string, allowAdult bool) (VideoSources, error) {
	key := cache.Key(p.Meta.ID, "getSources", map[string]string{"episode_id": episodeID, "allow_adult": adultBit(allowAdult)})
	return cached(ctx, c, cache.CategoryVideoSources, key, func() (VideoSources, error) {
		return p.GetSources(ctx, episodeID)
	})
}

// CachedGetChapterImages wraps Plugin.GetChapterImages.
func CachedGetChapterImages(ctx context.Context, c *cache.Cache, p *Plugin, chapterID string, allowAdult bool) ([]ChapterImage, error) {
	key := cache.Key(p.Meta.ID, "getChapterImages", map[string]string{"chapter_id": chapterID, "allow_adult": adultBit(allowAdult)})
	return cached(ctx, c, cache.CategoryChapterImages, key, func() ([]ChapterImage, error) {
		return p.GetChapterImages(ctx, chapterID)
	})
}

// CachedGetTags wraps Plugin.GetTags.
func CachedGetTags(ctx context.Context, c *cache.Cache, p *Plugin, page int, allowAdult bool) ([]Tag, error) {
	key := cache.Key(p.Meta.ID, "getTags", map[string]string{"page": strconv.Itoa(page), "allow_adult": adultBit(allowAdult)})
	return cached(ctx, c, cache.CategoryTags, key, func() ([]Tag, error) {
		return p.GetTags(ctx, page)
	})
}

// CachedGetRecommendations wraps Plugin.GetRecommendations.
func CachedGetRecommendations(ctx context.Context, c *cache.Cache, p *Plugin, allowAdult bool) (SearchResults, error) {
	key := cache.Key(p.Meta.ID, "getRecommendations", map[string]string{"allow_adult": adultBit(allowAdult)})
	return cached(ctx, c, cache.CategoryRecommendations, key, func() (SearchResults, error) {
		return p.GetRecommendations(ctx, allowAdult)
	})
}
