package mediaserver

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/otakuhaven/otakuback/internal/safeurl"
)

var hlsURIAttrRe = regexp.MustCompile(`URI="([^"]+)"`)

// handleHLS fetches an HLS manifest (.m3u8) from an upstream URL and
// rewrites every referenced URI — both #EXT-X-... tag attributes and plain
// segment/playlist lines — to route back through this server's /hls (for
// nested playlists) or /proxy (for everything else), per spec.md §4.4: "HLS
// playback requires manifest rewriting because segment URLs in the manifest
// are relative to the origin server, not to this local server."
func (s *Server) handleHLS(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" || !safeurl.IsHTTPOrHTTPS(target) {
		http.Error(w, "invalid url", http.StatusBadRequest)
		return
	}
	base, err := url.Parse(target)
	if err != nil {
		http.Error(w, "invalid url", http.StatusBadRequest)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	req.Header.Set("User-Agent", s.ProxyUA)
	req.Header.Set("Referer", target)

	resp, err := proxyClient.Do(req)
	if err != nil {
		http.Error(w, "upstream fetch failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		http.Error(w, "upstream error", resp.StatusCode)
		return
	}

	rewritten, err := rewriteManifest(resp.Body, base, s.proxyURL)
	if err != nil {
		http.Error(w, "manifest parse failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Write(rewritten)
}

// proxyURL builds the local URL this server exposes for an upstream
// resource: /hls?url=... for nested playlists, /proxy?url=... otherwise.
func (s *Server) proxyURL(resolved string) string {
	endpoint := "/proxy"
	if strings.Contains(resolved, ".m3u8") {
		endpoint = "/hls"
	}
	return fmt.Sprintf("%s?url=%s&token=%s", endpoint, url.QueryEscape(resolved), s.token)
}

func rewriteManifest(r io.Reader, base *url.URL, toLocal func(string) string) ([]byte, error) {
	var out strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "#"):
			out.WriteString(rewriteTagLine(line, base, toLocal))
		case strings.TrimSpace(line) == "":
			out.WriteString(line)
		default:
			resolved := resolveAgainst(base, strings.TrimSpace(line))
			out.WriteString(toLocal(resolved))
		}
		out.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return []byte(out.String()), nil
}

func rewriteTagLine(line string, base *url.URL, toLocal func(string) string) string {
	return hlsURIAttrRe.ReplaceAllStringFunc(line, func(m string) string {
		sub := hlsURIAttrRe.FindStringSubmatch(m)
		if len(sub) != 2 {
			return m
		}
		resolved := resolveAgainst(base, sub[1])
		return `URI="` + toLocal(resolved) + `"`
	})
}

func resolveAgainst(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
