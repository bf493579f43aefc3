package plugin

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/otakuhaven/otakuback/internal/cache"
	"github.com/otakuhaven/otakuback/internal/store"
)

const countingSearchSource = `
const plugin = {
  id: "counting",
  name: "Counting",
  version: "1.0.0",
  type: "anime",
  base_url: "https://example.com",
  searchCalls: 0,
  search(query, page) {
    this.searchCalls++;
    return {results: [{id: "m1", title: query}], has_next_page: false};
  },
};
`

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return cache.New(cache.NewMemory(time.Hour, 100), cache.NewDurable(st))
}

func TestCachedSearch_secondCallHitsMemory(t *testing.T) {
	p, err := Load(countingSearchSource, 100, 10)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ctx := context.Background()
	c := newTestCache(t)

	first, err := CachedSearch(ctx, c, p, "naruto", 1, true)
	if err != nil {
		t.Fatalf("first search: %v", err)
	}
	if len(first.Results) != 1 || first.Results[0].Title != "naruto" {
		t.Fatalf("unexpected first result: %+v", first)
	}

	second, err := CachedSearch(ctx, c, p, "naruto", 1, true)
	if err != nil {
		t.Fatalf("second search: %v", err)
	}
	if len(second.Results) != 1 || second.Results[0].Title != "naruto" {
		t.Fatalf("unexpected second result: %+v", second)
	}
	if c.Memory.Len(cache.CategorySearch) != 1 {
		t.Fatalf("expected exactly one cached search entry, got %d", c.Memory.Len(cache.CategorySearch))
	}
}

func TestManager_searchUsesCacheWhenConfigured(t *testing.T) {
	m := NewManager(nil, 100, 10)
	p, err := Load(countingSearchSource, 100, 10)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	m.byID[p.Meta.ID] = p
	m.Cache = newTestCache(t)

	ctx := context.Background()
	if _, err := m.Search(ctx, "counting", "one piece", 1); err != nil {
		t.Fatalf("search: %v", err)
	}
	if m.Cache.Memory.Len(cache.CategorySearch) != 1 {
		t.Fatalf("expected search result to be cached")
	}
}

func TestManager_searchWithoutPluginErrors(t *testing.T) {
	m := NewManager(nil, 100, 10)
	if _, err := m.Search(context.Background(), "missing", "q", 1); err == nil {
		t.Fatal("expected error for unknown plugin")
	}
}

func TestCachedSearch_distinctQueriesDistinctKeys(t *testing.T) {
	p, err := Load(countingSearchSource, 100, 10)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ctx := context.Background()
	c := newTestCache(t)

	if _, err := CachedSearch(ctx, c, p, "naruto", 1, true); err != nil {
		t.Fatalf("search 1: %v", err)
	}
	if _, err := CachedSearch(ctx, c, p, "bleach", 1, true); err != nil {
		t.Fatalf("search 2: %v", err)
	}
	if c.Memory.Len(cache.CategorySearch) != 2 {
		t.Fatalf("expected two distinct cache entries, got %d", c.Memory.Len(cache.CategorySearch))
	}
}
