package plugin

import "testing"

func TestHostAllowed_exactAndSubdomain(t *testing.T) {
	allowed := []string{"example.com"}
	cases := map[string]bool{
		"example.com":     true,
		"api.example.com": true,
		"evil.com":        false,
		"notexample.com":  false,
		"":                false,
	}
	for host, want := range cases {
		if got := hostAllowed(host, allowed); got != want {
			t.Errorf("hostAllowed(%q, %v) = %v, want %v", host, allowed, got, want)
		}
	}
}

func TestHostAllowed_emptyAllowlistDeniesAll(t *testing.T) {
	if hostAllowed("example.com", nil) {
		t.Fatal("empty allowlist should deny everything")
	}
}
