package mediaserver

import (
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/otakuhaven/otakuback/internal/safeurl"
)

// proxyClient follows redirects (up to 10, net/http's default) and has no
// read timeout of its own — responses can be long-lived video streams — but
// bounds connection setup via the transport's dial timeout, per spec.md §5.
var proxyClient = &http.Client{
	Transport: &http.Transport{
		DialContext: (&net.Dialer{Timeout: 30 * time.Second}).DialContext,
	},
}

// handleProxy streams an upstream URL through to the caller, forwarding
// Range/Content-Range/Accept-Ranges so the browser's native video element
// can still seek, per spec.md §4.4: "a pass-through proxy for sources that
// refuse direct cross-origin playback."
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" || !safeurl.IsHTTPOrHTTPS(target) {
		http.Error(w, "invalid url", http.StatusBadRequest)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, nil)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if rh := r.Header.Get("Range"); rh != "" {
		req.Header.Set("Range", rh)
	}
	req.Header.Set("User-Agent", s.ProxyUA)
	req.Header.Set("Referer", target)
	if u, err := url.Parse(target); err == nil {
		req.Header.Set("Origin", u.Scheme+"://"+u.Host)
	}

	resp, err := proxyClient.Do(req)
	if err != nil {
		http.Error(w, "upstream fetch failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	copyProxyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if r.Method != http.MethodHead {
		io.Copy(w, resp.Body)
	}
}

func copyProxyHeaders(dst, src http.Header) {
	for _, h := range []string{"Content-Type", "Content-Length", "Content-Range", "Accept-Ranges", "Cache-Control", "ETag"} {
		if v := src.Get(h); v != "" {
			dst.Set(h, v)
		}
	}
}
