package mediaserver

import (
	"net/url"
	"strings"
	"testing"
)

func TestRewriteManifest_segmentLinesRewritten(t *testing.T) {
	manifest := "#EXTM3U\n#EXTINF:6.0,\nseg0.ts\n#EXTINF:6.0,\nseg1.ts\n"
	base, _ := url.Parse("https://cdn.example.com/show/ep1/index.m3u8")

	out, err := rewriteManifest(strings.NewReader(manifest), base, func(resolved string) string {
		return "/proxy?url=" + url.QueryEscape(resolved)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := string(out)
	if !strings.Contains(got, "/proxy?url="+url.QueryEscape("https://cdn.example.com/show/ep1/seg0.ts")) {
		t.Errorf("seg0 not rewritten, got:\n%s", got)
	}
	if !strings.Contains(got, "#EXTM3U") {
		t.Errorf("tag lines without URI should pass through unchanged, got:\n%s", got)
	}
}

func TestRewriteManifest_uriAttributeRewritten(t *testing.T) {
	manifest := `#EXT-X-KEY:METHOD=AES-128,URI="key.bin"` + "\n"
	base, _ := url.Parse("https://cdn.example.com/show/ep1/index.m3u8")

	out, err := rewriteManifest(strings.NewReader(manifest), base, func(resolved string) string {
		return "/proxy?url=" + url.QueryEscape(resolved)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := string(out)
	if !strings.Contains(got, `URI="/proxy?url=`) {
		t.Errorf("URI attribute not rewritten, got:\n%s", got)
	}
	if !strings.Contains(got, "METHOD=AES-128") {
		t.Errorf("rest of tag line should be preserved, got:\n%s", got)
	}
}

func TestResolveAgainst_relativePath(t *testing.T) {
	base, _ := url.Parse("https://cdn.example.com/a/b/index.m3u8")
	if got := resolveAgainst(base, "seg.ts"); got != "https://cdn.example.com/a/b/seg.ts" {
		t.Errorf("got %q", got)
	}
}

func TestResolveAgainst_absoluteURL(t *testing.T) {
	base, _ := url.Parse("https://cdn.example.com/a/b/index.m3u8")
	if got := resolveAgainst(base, "https://other.example.com/x.ts"); got != "https://other.example.com/x.ts" {
		t.Errorf("got %q", got)
	}
}
