package mediaserver

import "testing"

func TestParseRange_openEnded(t *testing.T) {
	r, ok := parseRange("bytes=100-")
	if !ok || r.start != 100 || r.end != -1 {
		t.Errorf("got %+v, %v", r, ok)
	}
}

func TestParseRange_closed(t *testing.T) {
	r, ok := parseRange("bytes=0-499")
	if !ok || r.start != 0 || r.end != 499 {
		t.Errorf("got %+v, %v", r, ok)
	}
}

func TestParseRange_malformed(t *testing.T) {
	for _, h := range []string{"", "bytes=", "items=0-1", "bytes=abc-def"} {
		if _, ok := parseRange(h); ok {
			t.Errorf("expected malformed for %q", h)
		}
	}
}

func TestSafeJoin_escapeRejected(t *testing.T) {
	if _, err := safeJoin("/downloads", "../etc/passwd"); err == nil {
		t.Error("expected escape to be rejected")
	}
}

func TestSafeJoin_withinRoot(t *testing.T) {
	got, err := safeJoin("/downloads", "Show/ep1.mkv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/downloads/Show/ep1.mkv" {
		t.Errorf("got %q", got)
	}
}

func TestContentTypeFor_knownExtensions(t *testing.T) {
	if got := contentTypeFor("a.m3u8"); got != "application/vnd.apple.mpegurl" {
		t.Errorf("got %q", got)
	}
	if got := contentTypeFor("a.ts"); got != "video/mp2t" {
		t.Errorf("got %q", got)
	}
}
