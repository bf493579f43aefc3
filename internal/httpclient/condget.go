package httpclient

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrNotModified is returned by ConditionalGet when the server responds 304.
var ErrNotModified = errors.New("httpclient: 304 not modified")

// GetResult carries the response body and the cache-validator headers from a
// successful (200) ConditionalGet call.
type GetResult struct {
	Body         []byte
	ETag         string
	LastModified string
	// ContentHash lets a caller detect upstream changes even when ETag and
	// Last-Modified are both absent.
	ContentHash string
}

// ConditionalGet issues a GET with If-None-Match / If-Modified-Since when the
// prior etag / lastModified are non-empty. Returns ErrNotModified on 304.
func ConditionalGet(ctx context.Context, client *http.Client, url, etag, lastModified string) (*GetResult, error) {
	if client == nil {
		client = Default()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("condget: build request: %w", err)
	}
	req.Header.Set("User-Agent", "otakuback-plugin/1.0")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := DoWithRetry(ctx, client, req, ProviderRetryPolicy)
	if err != nil {
		return nil, fmt.Errorf("condget %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, ErrNotModified
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("condget %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("condget %s: read body: %w", url, err)
	}

	return &GetResult{
		Body:         body,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		ContentHash:  ContentHash(body),
	}, nil
}

// RangeRequest fetches a byte range of a URL starting at offset, used to
// resume a partially downloaded file. Returns ErrNotModified on 304.
func RangeRequest(ctx context.Context, client *http.Client, url string, offset int64, etag string) (io.ReadCloser, *http.Response, error) {
	if client == nil {
		client = ForStreaming()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", "otakuback-downloader/1.0")
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	if etag != "" {
		req.Header.Set("If-Range", etag)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode == http.StatusNotModified {
		resp.Body.Close()
		return nil, nil, ErrNotModified
	}
	// 206 = server honoured the range; 200 = server ignored Range and sent the
	// full body, caller must discard offset bytes or restart from zero.
	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, nil, fmt.Errorf("range request %s offset %d: status %d", url, offset, resp.StatusCode)
	}
	return resp.Body, resp, nil
}

// ContentHash returns a short hash of arbitrary bytes.
func ContentHash(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:16])
}

// hashReader tees reads through a running content hash so a caller can stream
// a body and learn its hash once fully drained, without buffering twice.
type hashReader struct {
	r   io.ReadCloser
	buf bytes.Buffer
}

func newHashReader(r io.ReadCloser) *hashReader { return &hashReader{r: r} }

func (h *hashReader) Read(p []byte) (int, error) {
	n, err := h.r.Read(p)
	if n > 0 {
		h.buf.Write(p[:n])
	}
	return n, err
}

func (h *hashReader) Hex() string { return ContentHash(h.buf.Bytes()) }

// hashReadCloser wraps a hashReader and finalises ContentHash on Close.
type hashReadCloser struct {
	hr   *hashReader
	meta *GetResult
}

func (h *hashReadCloser) Read(p []byte) (int, error) { return h.hr.Read(p) }
func (h *hashReadCloser) Close() error {
	h.meta.ContentHash = h.hr.Hex()
	return h.hr.r.Close()
}

// ConditionalGetStream is like ConditionalGet but returns a streaming reader
// instead of buffering the full body, for large responses such as HLS
// manifests fetched through the proxy path.
func ConditionalGetStream(ctx context.Context, client *http.Client, url, etag, lastModified string) (io.ReadCloser, *GetResult, error) {
	if client == nil {
		client = Default()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("condget-stream: build request: %w", err)
	}
	req.Header.Set("User-Agent", "otakuback-plugin/1.0")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := DoWithRetry(ctx, client, req, ProviderRetryPolicy)
	if err != nil {
		return nil, nil, fmt.Errorf("condget-stream %s: %w", url, err)
	}

	if resp.StatusCode == http.StatusNotModified {
		resp.Body.Close()
		return nil, nil, ErrNotModified
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, nil, fmt.Errorf("condget-stream %s: unexpected status %d", url, resp.StatusCode)
	}

	meta := &GetResult{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
	hr := newHashReader(resp.Body)
	return &hashReadCloser{hr: hr, meta: meta}, meta, nil
}
