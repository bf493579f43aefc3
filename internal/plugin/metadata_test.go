package plugin

import (
	"reflect"
	"sort"
	"testing"
)

const sampleSource = `
const plugin = {
  id: "mangadex",
  name: "MangaDex",
  version: "1.2.0",
  type: "manga",
  language: "en",
  base_url: "https://api.mangadex.org",
  allowed_domains: ["uploads.mangadex.org", "cdn.mangadex.network"],
  search(query, page) { return {results: [], has_next_page: false}; },
};
`

func TestScanMetadata_ok(t *testing.T) {
	m, err := ScanMetadata(sampleSource)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ID != "mangadex" || m.Name != "MangaDex" || m.Version != "1.2.0" {
		t.Fatalf("unexpected metadata: %+v", m)
	}
	if m.Type != "manga" || m.Language != "en" {
		t.Fatalf("unexpected type/language: %+v", m)
	}
	want := []string{"api.mangadex.org", "cdn.mangadex.network", "uploads.mangadex.org"}
	got := append([]string(nil), m.AllowedDomains...)
	sort.Strings(got)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("allowed domains = %v, want %v", got, want)
	}
}

func TestScanMetadata_missingID(t *testing.T) {
	src := `const plugin = { name: "x", base_url: "https://x.com" };`
	if _, err := ScanMetadata(src); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestScanMetadata_missingBaseURL(t *testing.T) {
	src := `const plugin = { id: "x", name: "x" };`
	if _, err := ScanMetadata(src); err == nil {
		t.Fatal("expected error for missing base_url")
	}
}

func TestScanMetadata_defaultsType(t *testing.T) {
	src := `const plugin = { id: "x", name: "x", base_url: "https://x.com" };`
	m, err := ScanMetadata(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Type != "anime" {
		t.Fatalf("expected default type anime, got %q", m.Type)
	}
}
