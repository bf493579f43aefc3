package plugin

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/otakuhaven/otakuback/internal/apierr"
	"github.com/otakuhaven/otakuback/internal/httpclient"
	"github.com/otakuhaven/otakuback/internal/safeurl"
)

const fetchBodyCap = 10 * 1024 * 1024 // spec.md §4.1: response body capped at 10 MB

// FetchRequest is what a plugin's __fetch(url, opts) call is marshaled
// into on the host side.
type FetchRequest struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
}

// FetchResponse mirrors what the plugin receives back: {status, body}.
type FetchResponse struct {
	Status int
	Body   string
}

// Fetcher performs the one network capability a plugin is granted:
// HTTPS-only requests to hosts equal to, or a subdomain of, the plugin's
// allowlist, paced by a per-plugin rate limiter shared across invocations.
type Fetcher struct {
	pluginID       string
	baseURL        string
	allowedDomains []string
	client         *http.Client
	limiter        *rate.Limiter
}

// NewFetcher builds the fetch capability for one plugin. The limiter paces
// outbound calls so a chatty plugin cannot hammer its own upstream.
func NewFetcher(pluginID, baseURL string, allowedDomains []string, limiter *rate.Limiter) *Fetcher {
	return &Fetcher{
		pluginID:       pluginID,
		baseURL:        baseURL,
		allowedDomains: allowedDomains,
		client:         httpclient.Default(),
		limiter:        limiter,
	}
}

// Do validates req against the allowlist, waits for the rate limiter, and
// performs the request with a stable User-Agent and Origin/Referer matching
// the plugin's base_url, capping the response body at 10 MB.
func (f *Fetcher) Do(ctx context.Context, req FetchRequest) (FetchResponse, error) {
	if !safeurl.IsHTTPOrHTTPS(req.URL) {
		return FetchResponse{}, &apierr.PluginDomainDenied{PluginID: f.pluginID, URL: req.URL, Reason: "scheme"}
	}
	parsed, err := url.Parse(req.URL)
	if err != nil || parsed.Scheme != "https" {
		return FetchResponse{}, &apierr.PluginDomainDenied{PluginID: f.pluginID, URL: req.URL, Reason: "scheme"}
	}
	if !hostAllowed(parsed.Hostname(), f.allowedDomains) {
		return FetchResponse{}, &apierr.PluginDomainDenied{PluginID: f.pluginID, URL: req.URL, Reason: "host"}
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultInvokeTimeout)
		defer cancel()
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return FetchResponse{}, err
		}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var bodyReader io.Reader
	if req.Body != "" {
		bodyReader = strings.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bodyReader)
	if err != nil {
		return FetchResponse{}, err
	}
	httpReq.Header.Set("User-Agent", "otakuback-plugin-runtime/1.0")
	httpReq.Header.Set("Origin", f.baseURL)
	httpReq.Header.Set("Referer", f.baseURL)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	// Transient network errors (connect, reset, timeout) and 5xx responses
	// are retried with backoff, and a 429 after its Retry-After wait, up to
	// DefaultRetryPolicy.MaxRetries times per spec.md §7; a policy
	// violation was already rejected above without ever reaching here.
	resp, err := httpclient.DoWithRetry(ctx, f.client, httpReq, httpclient.DefaultRetryPolicy)
	if err != nil {
		return FetchResponse{}, err
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, fetchBodyCap)
	data, err := io.ReadAll(limited)
	if err != nil {
		return FetchResponse{}, err
	}
	return FetchResponse{Status: resp.StatusCode, Body: string(data)}, nil
}

// hostAllowed checks equality or subdomain membership against allowed,
// using the public suffix list so "evil-example.com" is never mistaken for
// a subdomain of "example.com".
func hostAllowed(host string, allowed []string) bool {
	host = strings.ToLower(host)
	if host == "" {
		return false
	}
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if host == a {
			return true
		}
		if strings.HasSuffix(host, "."+a) {
			// Guard against suffix collisions like "notexample.com" matching
			// "example.com" by confirming the registrable domain agrees too.
			hostETLD, err1 := publicsuffix.EffectiveTLDPlusOne(host)
			allowedETLD, err2 := publicsuffix.EffectiveTLDPlusOne(a)
			if err1 == nil && err2 == nil && hostETLD == allowedETLD {
				return true
			}
			if err1 != nil || err2 != nil {
				return true // a or host isn't a recognized public suffix shape; fall back to the suffix check
			}
		}
	}
	return false
}

// defaultInvokeTimeout bounds a single __fetch call when the caller's
// context carries no deadline of its own.
const defaultInvokeTimeout = 20 * time.Second
