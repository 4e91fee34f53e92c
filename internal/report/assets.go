package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrEmptyAsset is returned when a fetch succeeds but yields no bytes.
var ErrEmptyAsset = errors.New("asset is empty")

// Fetcher resolves a URL to raw bytes. Implementations must be safe for
// concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherConfig configures an HTTPFetcher.
//
// Zero values are given defaults:
//   - Timeout:  15s
//   - MaxBytes: 16 MiB
type FetcherConfig struct {
	// Timeout bounds each request at the http.Client level.
	Timeout time.Duration

	// MaxBytes caps how much of a response body is read.
	MaxBytes int64

	// BaseHeaders are added to every request.
	BaseHeaders http.Header

	// Transport is an optional custom RoundTripper.
	Transport http.RoundTripper
}

// HTTPFetcher downloads photos and logos over HTTP. A failed attempt is
// reported to the caller as-is; nothing is retried.
type HTTPFetcher struct {
	httpClient  *http.Client
	baseHeaders http.Header
	maxBytes    int64
}

// NewHTTPFetcher builds an HTTPFetcher, applying defaults for zero values.
func NewHTTPFetcher(cfg FetcherConfig) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 << 20
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	hdr := http.Header{}
	for k, vs := range cfg.BaseHeaders {
		for _, v := range vs {
			hdr.Add(k, v)
		}
	}

	return &HTTPFetcher{
		httpClient:  &http.Client{Timeout: cfg.Timeout, Transport: transport},
		baseHeaders: hdr,
		maxBytes:    cfg.MaxBytes,
	}
}

// Fetch performs a single GET and returns the body. Any non-2xx status is an
// error.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range f.baseHeaders {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", redactURL(url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("fetch %s: unexpected status %d", redactURL(url), resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", redactURL(url), err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("fetch %s: body exceeds %d bytes", redactURL(url), f.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("fetch %s: %w", redactURL(url), ErrEmptyAsset)
	}
	return data, nil
}

// CloseIdleConnections releases pooled connections held by the fetcher.
func (f *HTTPFetcher) CloseIdleConnections() {
	f.httpClient.CloseIdleConnections()
}

// loadAsset reads source either over HTTP(S) through fetcher or from the
// local filesystem.
func loadAsset(ctx context.Context, fetcher Fetcher, source string) ([]byte, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, ErrEmptyAsset
	}
	if isRemote(source) {
		if fetcher == nil {
			return nil, fmt.Errorf("no fetcher configured for %s", redactURL(source))
		}
		return fetcher.Fetch(ctx, source)
	}
	data, err := os.ReadFile(filepath.Clean(source))
	if err != nil {
		return nil, fmt.Errorf("read asset: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyAsset
	}
	return data, nil
}

func isRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// redactURL drops the query string so signed URL tokens never reach logs.
func redactURL(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
