package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/otakuhaven/otakuback/internal/cache"
	"github.com/otakuhaven/otakuback/internal/store"
)

// Manager owns the set of loaded plugins, keeping the in-memory Plugin
// objects in sync with their durable store.PluginRecord rows. Reloading a
// plugin with the same id replaces it in place (spec.md §3).
type Manager struct {
	st   *store.Store
	mu   sync.RWMutex
	byID map[string]*Plugin

	fetchRPS   float64
	fetchBurst int

	// Cache, if set, routes every entry point (Search, Discover, GetDetails,
	// GetSources, GetChapterImages, GetTags, GetRecommendations) through
	// the two-tier cache (spec.md §4.2) instead of calling the plugin
	// directly every time. Nil is valid and means "no caching".
	Cache *cache.Cache
}

// NewManager builds an empty manager backed by st.
func NewManager(st *store.Store, fetchRPS float64, fetchBurst int) *Manager {
	return &Manager{st: st, byID: make(map[string]*Plugin), fetchRPS: fetchRPS, fetchBurst: fetchBurst}
}

// LoadFile reads a plugin file from disk, scans its metadata, persists the
// registry row, and makes it available for invocation.
func (m *Manager) LoadFile(ctx context.Context, path string) (*Plugin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return m.LoadSource(ctx, string(data))
}

// LoadSource loads a plugin directly from source text.
func (m *Manager) LoadSource(ctx context.Context, source string) (*Plugin, error) {
	p, err := Load(source, m.fetchRPS, m.fetchBurst)
	if err != nil {
		return nil, err
	}

	rec := store.PluginRecord{
		ID:             p.Meta.ID,
		Name:           p.Meta.Name,
		Version:        p.Meta.Version,
		Type:           p.Meta.Type,
		Language:       p.Meta.Language,
		BaseURL:        p.Meta.BaseURL,
		AllowedDomains: p.Meta.AllowedDomains,
		Code:           p.Source,
	}
	if err := m.st.UpsertPlugin(ctx, rec); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.byID[p.Meta.ID] = p
	m.mu.Unlock()
	return p, nil
}

// LoadDir loads every *.js file in dir, continuing past individual
// failures (one bad plugin should not prevent the rest from loading) and
// returning every error encountered.
func (m *Manager) LoadDir(ctx context.Context, dir string) []error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []error{err}
	}
	var errs []error
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".js" {
			continue
		}
		if _, err := m.LoadFile(ctx, filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Get returns the loaded plugin by id, or nil if not loaded.
func (m *Manager) Get(id string) *Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byID[id]
}

// List returns every loaded plugin's metadata.
func (m *Manager) List() []Metadata {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Metadata, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p.Meta)
	}
	return out
}

// Unload removes a plugin from memory and its registry row.
func (m *Manager) Unload(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.byID, id)
	m.mu.Unlock()
	return m.st.DeletePlugin(ctx, id)
}

// allowAdult reads the nsfw_filter setting (spec.md §6) and returns the bit
// every plugin call and cache key must carry: nsfw_filter="1" means plugin
// calls pass allow_adult=false. Unset or any other value means adult
// content is allowed.
func (m *Manager) allowAdult(ctx context.Context) bool {
	if m.st == nil {
		return true
	}
	v, _, err := m.st.GetSetting(ctx, store.SettingNSFWFilter)
	if err != nil {
		return true
	}
	return v != "1"
}

// Search looks up pluginID and runs a search, through the cache when one is
// configured.
func (m *Manager) Search(ctx context.Context, pluginID, query string, page int) (SearchResults, error) {
	p := m.Get(pluginID)
	if p == nil {
		return SearchResults{}, fmt.Errorf("plugin: no such plugin %q", pluginID)
	}
	allowAdult := m.allowAdult(ctx)
	if m.Cache == nil {
		return p.Search(ctx, query, page, allowAdult)
	}
	return CachedSearch(ctx, m.Cache, p, query, page, allowAdult)
}

// Discover looks up pluginID and runs a discover call, through the cache
// when one is configured.
func (m *Manager) Discover(ctx context.Context, pluginID string, page int, sortTag string, genres []string) (SearchResults, error) {
	p := m.Get(pluginID)
	if p == nil {
		return SearchResults{}, fmt.Errorf("plugin: no such plugin %q", pluginID)
	}
	allowAdult := m.allowAdult(ctx)
	if m.Cache == nil {
		return p.Discover(ctx, page, sortTag, genres, allowAdult)
	}
	return CachedDiscover(ctx, m.Cache, p, page, sortTag, genres, allowAdult)
}

// GetDetails looks up pluginID and fetches media details, through the cache
// when one is configured.
func (m *Manager) GetDetails(ctx context.Context, pluginID, mediaID string) (MediaDetails, error) {
	p := m.Get(pluginID)
	if p == nil {
		return MediaDetails{}, fmt.Errorf("plugin: no such plugin %q", pluginID)
	}
	allowAdult := m.allowAdult(ctx)
	if m.Cache == nil {
		return p.GetDetails(ctx, mediaID, allowAdult)
	}
	return CachedGetDetails(ctx, m.Cache, p, mediaID, allowAdult)
}

// GetSources looks up pluginID and fetches video sources, through the cache
// when one is configured.
func (m *Manager) GetSources(ctx context.Context, pluginID, episodeID string) (VideoSources, error) {
	p := m.Get(pluginID)
	if p == nil {
		return VideoSources{}, fmt.Errorf("plugin: no such plugin %q", pluginID)
	}
	if m.Cache == nil {
		return p.GetSources(ctx, episodeID)
	}
	return CachedGetSources(ctx, m.Cache, p, episodeID, m.allowAdult(ctx))
}

// GetChapterImages looks up pluginID and fetches chapter images, through
// the cache when one is configured.
func (m *Manager) GetChapterImages(ctx context.Context, pluginID, chapterID string) ([]ChapterImage, error) {
	p := m.Get(pluginID)
	if p == nil {
		return nil, fmt.Errorf("plugin: no such plugin %q", pluginID)
	}
	if m.Cache == nil {
		return p.GetChapterImages(ctx, chapterID)
	}
	return CachedGetChapterImages(ctx, m.Cache, p, chapterID, m.allowAdult(ctx))
}

// GetTags looks up pluginID and fetches tags, through the cache when one is
// configured.
func (m *Manager) GetTags(ctx context.Context, pluginID string, page int) ([]Tag, error) {
	p := m.Get(pluginID)
	if p == nil {
		return nil, fmt.Errorf("plugin: no such plugin %q", pluginID)
	}
	if m.Cache == nil {
		return p.GetTags(ctx, page)
	}
	return CachedGetTags(ctx, m.Cache, p, page, m.allowAdult(ctx))
}

// GetRecommendations looks up pluginID and fetches recommendations, through
// the cache when one is configured.
func (m *Manager) GetRecommendations(ctx context.Context, pluginID string) (SearchResults, error) {
	p := m.Get(pluginID)
	if p == nil {
		return SearchResults{}, fmt.Errorf("plugin: no such plugin %q", pluginID)
	}
	allowAdult := m.allowAdult(ctx)
	if m.Cache == nil {
		return p.GetRecommendations(ctx, allowAdult)
	}
	return CachedGetRecommendations(ctx, m.Cache, p, allowAdult)
}

// RestoreFromStore reloads every plugin registry row back into memory at
// boot, so the in-memory index is a rebuildable secondary view (spec.md §3:
// "may be rebuilt from storage at boot").
func (m *Manager) RestoreFromStore(ctx context.Context) error {
	records, err := m.st.ListPlugins(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		p, err := Load(rec.Code, m.fetchRPS, m.fetchBurst)
		if err != nil {
			continue // stale/corrupt row; skip rather than fail boot
		}
		m.mu.Lock()
		m.byID[p.Meta.ID] = p
		m.mu.Unlock()
	}
	return nil
}
