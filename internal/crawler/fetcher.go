package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Fetcher defaults.
const (
	// DefaultGetTimeout bounds one GET request.
	DefaultGetTimeout = 30 * time.Second

	// DefaultHeadTimeout bounds one HEAD request.
	DefaultHeadTimeout = 10 * time.Second

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	// DefaultMaxBodySize is the largest body accepted, in bytes.
	DefaultMaxBodySize = 100 * 1024 * 1024
)

// Fetcher downloads resources and stores them through a Storage.
//
// Design decision: We require an external *http.Client because:
//  1. Proxy and header injection live in the transport package
//  2. Tests can hand in an httptest server's client
type Fetcher struct {
	// client performs the requests.
	client *http.Client

	// storage receives downloaded bodies.
	storage Storage

	// userAgent is the User-Agent header value.
	userAgent string

	// getTimeout bounds each GET.
	getTimeout time.Duration

	// headTimeout bounds each HEAD.
	headTimeout time.Duration

	// maxBodySize rejects larger bodies instead of truncating them.
	// A truncated file in a mirror is worse than a missing one.
	maxBodySize int64
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithGetTimeout sets the per-request GET timeout.
func WithGetTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.getTimeout = d
	}
}

// WithHeadTimeout sets the per-request HEAD timeout.
func WithHeadTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.headTimeout = d
	}
}

// WithMaxBodySize sets the largest accepted body in bytes.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// NewFetcher creates a Fetcher using client and storage.
func NewFetcher(client *http.Client, storage Storage, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:      client,
		storage:     storage,
		userAgent:   DefaultUserAgent,
		getTimeout:  DefaultGetTimeout,
		headTimeout: DefaultHeadTimeout,
		maxBodySize: DefaultMaxBodySize,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch downloads rawURL and writes the body to dest.
// Any failure, including a non-2xx status or a failed write, wraps ErrFetch.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dest string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.getTimeout)
	defer cancel()

	req, err := f.newRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s: unexpected status %d", ErrFetch, rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %w", ErrFetch, rawURL, err)
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, fmt.Errorf("%w: %s: body exceeds %d bytes", ErrFetch, rawURL, f.maxBodySize)
	}

	if err := f.storage.WriteFile(dest, body); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, rawURL, err)
	}

	return body, nil
}

// ContentType returns the lowercase Content-Type reported by a HEAD request
// for rawURL, or "" when the request fails.
func (f *Fetcher) ContentType(ctx context.Context, rawURL string) string {
	ctx, cancel := context.WithTimeout(ctx, f.headTimeout)
	defer cancel()

	req, err := f.newRequest(ctx, http.MethodHead, rawURL)
	if err != nil {
		return ""
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	return strings.ToLower(resp.Header.Get("Content-Type"))
}

// newRequest builds a request carrying the configured User-Agent.
func (f *Fetcher) newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, rawURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	return req, nil
}
