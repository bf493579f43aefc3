package plugin

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/otakuhaven/otakuback/internal/apierr"
	"github.com/otakuhaven/otakuback/internal/metrics"
)

// Plugin is a loaded plugin ready for invocation: its metadata, source, and
// a fetcher paced for its own outbound traffic.
type Plugin struct {
	Meta    Metadata
	Source  string
	fetcher *Fetcher
}

// Load builds a Plugin from source text, validating metadata and wiring a
// fetch capability rate-limited to rps requests/sec with a burst of burst.
func Load(source string, rps float64, burst int) (*Plugin, error) {
	meta, err := ScanMetadata(source)
	if err != nil {
		return nil, err
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return &Plugin{
		Meta:    meta,
		Source:  source,
		fetcher: NewFetcher(meta.ID, meta.BaseURL, meta.AllowedDomains, limiter),
	}, nil
}

func (p *Plugin) runtime() *Runtime {
	return NewRuntime(p.Meta, p.Source, p.fetcher)
}

func (p *Plugin) invoke(ctx context.Context, method string, args []any, out any) error {
	start := time.Now()
	rt := p.runtime()
	err := rt.Invoke(ctx, method, args, out)
	metrics.PluginInvocationDuration.WithLabelValues(p.Meta.ID, method).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.PluginInvocationsTotal.WithLabelValues(p.Meta.ID, method, outcome).Inc()
	return err
}

func (p *Plugin) has(ctx context.Context, method string) bool {
	return p.runtime().HasMethod(ctx, method)
}

// Search calls search(query, page, allow_adult). allowAdult is appended as
// a trailing argument per spec.md §6's nsfw_filter knob: plugins written
// before the flag existed simply ignore the extra JS argument.
func (p *Plugin) Search(ctx context.Context, query string, page int, allowAdult bool) (SearchResults, error) {
	var out SearchResults
	err := p.invoke(ctx, "search", []any{query, page, allowAdult}, &out)
	return out, err
}

// Discover calls discover(page, sort, genres, allow_adult), falling back to
// search("", page) when the plugin doesn't implement it (spec.md §4.1).
func (p *Plugin) Discover(ctx context.Context, page int, sort string, genres []string, allowAdult bool) (SearchResults, error) {
	if p.has(ctx, "discover") {
		var out SearchResults
		err := p.invoke(ctx, "discover", []any{page, sort, genres, allowAdult}, &out)
		return out, err
	}
	return p.Search(ctx, "", page, allowAdult)
}

// GetRecommendations falls back to discover(1, "trending", []) and then to
// search("", 1), per spec.md §4.1's entry-point fallback chain.
func (p *Plugin) GetRecommendations(ctx context.Context, allowAdult bool) (SearchResults, error) {
	if p.has(ctx, "getRecommendations") {
		var out SearchResults
		err := p.invoke(ctx, "getRecommendations", []any{allowAdult}, &out)
		return out, err
	}
	return p.Discover(ctx, 1, "trending", nil, allowAdult)
}

// GetTags calls getTags(page); absent entry point yields an empty list,
// since the spec only marks search/getDetails/getSources (or
// getChapterImages) as mandatory.
func (p *Plugin) GetTags(ctx context.Context, page int) ([]Tag, error) {
	if !p.has(ctx, "getTags") {
		return nil, nil
	}
	var out []Tag
	err := p.invoke(ctx, "getTags", []any{page}, &out)
	return out, err
}

// GetDetails calls getDetails(id, allow_adult).
func (p *Plugin) GetDetails(ctx context.Context, id string, allowAdult bool) (MediaDetails, error) {
	var out MediaDetails
	err := p.invoke(ctx, "getDetails", []any{id, allowAdult}, &out)
	return out, err
}

// GetSources calls getSources(episode_id); only meaningful for anime
// plugins.
func (p *Plugin) GetSources(ctx context.Context, episodeID string) (VideoSources, error) {
	if p.Meta.Type != "anime" {
		return VideoSources{}, fmt.Errorf("getSources is only valid for anime plugins, got %s", p.Meta.Type)
	}
	var out VideoSources
	err := p.invoke(ctx, "getSources", []any{episodeID}, &out)
	return out, err
}

// GetChapterImages calls getChapterImages(chapter_id); only meaningful for
// manga plugins.
func (p *Plugin) GetChapterImages(ctx context.Context, chapterID string) ([]ChapterImage, error) {
	if p.Meta.Type != "manga" {
		return nil, fmt.Errorf("getChapterImages is only valid for manga plugins, got %s", p.Meta.Type)
	}
	var out []ChapterImage
	err := p.invoke(ctx, "getChapterImages", []any{chapterID}, &out)
	return out, err
}

// classifyError upgrades a plugin or schema error raised above into the
// apierr taxonomy callers switch on; invoke already wraps most errors, this
// exists for callers composing multiple plugin calls that want one check.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	switch err.(type) {
	case *apierr.PluginError, *apierr.PluginSchemaError, *apierr.PluginDomainDenied:
		return err
	default:
		return &apierr.PluginError{Message: err.Error()}
	}
}
