// Package plugin loads and invokes sandboxed third-party source plugins
// (spec.md §4.1): textual JS bundles that expose search/discover/details
// entry points, run inside a fresh goja interpreter per call, and can only
// reach the network through a host-mediated, domain-allowlisted fetch.
package plugin

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Metadata is extracted from plugin source by a conservative textual scan,
// not by executing the plugin (spec.md §4.1: "extracted by a conservative
// textual match").
type Metadata struct {
	ID             string
	Name           string
	Version        string
	Type           string // "anime" | "manga"
	Language       string
	BaseURL        string
	AllowedDomains []string
}

var metaFieldRe = map[string]*regexp.Regexp{
	"id":       regexp.MustCompile(`(?m)\bid\s*:\s*["'` + "`" + `]([^"'` + "`" + `]+)["'` + "`" + `]`),
	"name":     regexp.MustCompile(`(?m)\bname\s*:\s*["'` + "`" + `]([^"'` + "`" + `]+)["'` + "`" + `]`),
	"version":  regexp.MustCompile(`(?m)\bversion\s*:\s*["'` + "`" + `]([^"'` + "`" + `]+)["'` + "`" + `]`),
	"type":     regexp.MustCompile(`(?m)\btype\s*:\s*["'` + "`" + `]([^"'` + "`" + `]+)["'` + "`" + `]`),
	"language": regexp.MustCompile(`(?m)\blanguage\s*:\s*["'` + "`" + `]([^"'` + "`" + `]+)["'` + "`" + `]`),
	"baseURL":  regexp.MustCompile(`(?m)\bbase_?[Uu]rl\s*:\s*["'` + "`" + `]([^"'` + "`" + `]+)["'` + "`" + `]`),
}

var extraDomainRe = regexp.MustCompile(`(?m)\ballowed_domains\s*:\s*\[([^\]]*)\]`)
var quotedRe = regexp.MustCompile(`["'` + "`" + `]([^"'` + "`" + `]+)["'` + "`" + `]`)

// ScanMetadata extracts plugin metadata from source text. Failure to find
// id, name, or base_url fails loading, per spec.md §4.1.
func ScanMetadata(source string) (Metadata, error) {
	m := Metadata{
		ID:      firstMatch(metaFieldRe["id"], source),
		Name:    firstMatch(metaFieldRe["name"], source),
		Version: firstMatch(metaFieldRe["version"], source),
		Type:    firstMatch(metaFieldRe["type"], source),
		BaseURL: firstMatch(metaFieldRe["baseURL"], source),
	}
	m.Language = firstMatch(metaFieldRe["language"], source)
	if m.Language == "" {
		m.Language = "en"
	}
	if m.Type == "" {
		m.Type = "anime"
	}

	if m.ID == "" {
		return Metadata{}, fmt.Errorf("plugin metadata: missing id")
	}
	if m.Name == "" {
		return Metadata{}, fmt.Errorf("plugin metadata: missing name")
	}
	if m.BaseURL == "" {
		return Metadata{}, fmt.Errorf("plugin metadata: missing base_url")
	}

	m.AllowedDomains = allowedDomainsFrom(m.BaseURL, source)
	return m, nil
}

// allowedDomainsFrom computes the allowlist as base_url's host plus any
// host-declared extras (spec.md §4.1: "the host computes allowed_domains
// from base_url's host plus any host-declared extras").
func allowedDomainsFrom(baseURL, source string) []string {
	domains := make([]string, 0, 4)
	if u, err := url.Parse(baseURL); err == nil && u.Hostname() != "" {
		domains = append(domains, strings.ToLower(u.Hostname()))
	}
	if m := extraDomainRe.FindStringSubmatch(source); m != nil {
		for _, q := range quotedRe.FindAllStringSubmatch(m[1], -1) {
			d := strings.ToLower(strings.TrimSpace(q[1]))
			if d != "" {
				domains = append(domains, d)
			}
		}
	}
	return dedupe(domains)
}

func firstMatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
