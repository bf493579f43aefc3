package cache

import "testing"

func TestSanitizeFilename_passthrough(t *testing.T) {
	if got := SanitizeFilename("Chapter 12"); got != "Chapter 12" {
		t.Errorf("expected unchanged, got %q", got)
	}
}

func TestSanitizeFilename_separators(t *testing.T) {
	cases := map[string]string{
		"id/with/slash":  "id_with_slash",
		`id\with\back`:   "id_with_back",
		"id\x00with\x00z": "id_with_z",
	}
	for in, want := range cases {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeFilename_empty(t *testing.T) {
	if got := SanitizeFilename(""); got != "unknown" {
		t.Errorf("expected %q, got %q", "unknown", got)
	}
	if got := SanitizeFilename("   "); got != "unknown" {
		t.Errorf("expected %q for blank input, got %q", "unknown", got)
	}
}
