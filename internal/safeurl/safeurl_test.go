package safeurl

import "testing"

func TestIsHTTPOrHTTPS(t *testing.T) {
	tests := []struct {
		url   string
		allow bool
	}{
		{"http://example.com/", true},
		{"https://example.com/path", true},
		{"HTTP://x", true},
		{"HTTPS://x", true},
		{"file:///etc/passwd", false},
		{"ftp://example.com", false},
		{"", false},
		{"not-a-url", false},
		{"javascript:alert(1)", false},
	}
	for _, tt := range tests {
		got := IsHTTPOrHTTPS(tt.url)
		if got != tt.allow {
			t.Errorf("IsHTTPOrHTTPS(%q) = %v, want %v", tt.url, got, tt.allow)
		}
	}
}

func TestHostAllowed(t *testing.T) {
	allowed := []string{"api.example.com", "cdn.example.org"}
	tests := []struct {
		url string
		ok  bool
	}{
		{"https://api.example.com/v1/list", true},
		{"https://sub.api.example.com/v1/list", true},
		{"https://cdn.example.org/image.png", true},
		{"https://evil.com/", false},
		{"https://notapi.example.com.evil.com/", false},
		{"ftp://api.example.com/", false},
		{"", false},
	}
	for _, tt := range tests {
		got := HostAllowed(tt.url, allowed)
		if got != tt.ok {
			t.Errorf("HostAllowed(%q) = %v, want %v", tt.url, got, tt.ok)
		}
	}
}

func TestHostAllowed_emptyAllowlistDeniesAll(t *testing.T) {
	if HostAllowed("https://example.com/", nil) {
		t.Error("empty allowlist should deny everything")
	}
}
