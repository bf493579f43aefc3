package safeurl

import (
	"net/url"
	"strings"
)

// IsHTTPOrHTTPS returns true if u is a valid URL with scheme http or https.
// Used to reject file://, ftp://, and other schemes that could lead to SSRF or local file access.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := parsed.Scheme
	return s == "http" || s == "https"
}

// HostAllowed reports whether u's scheme is http/https and its host equals,
// or is a subdomain of, one of allowed. Comparison is case-insensitive and
// ignores a trailing port. An empty allowed list denies everything.
func HostAllowed(u string, allowed []string) bool {
	if !IsHTTPOrHTTPS(u) {
		return false
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}
