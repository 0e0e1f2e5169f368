package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// Client defaults.
const (
	// DefaultTimeout bounds a whole request including redirects.
	DefaultTimeout = 60 * time.Second

	// maxRedirects is the number of redirects followed before the last
	// response is returned as is.
	maxRedirects = 10
)

// Options configures NewHTTPClient.
type Options struct {
	// Timeout bounds a whole request. Zero means DefaultTimeout.
	Timeout time.Duration

	// ProxyAddress routes connections through a SOCKS5 proxy in
	// "host:port" form. Empty means direct connections.
	ProxyAddress string

	// UserAgent is set on requests that carry no User-Agent of their own.
	UserAgent string

	// Headers are set on every request, replacing existing values.
	Headers map[string]string
}

// NewHTTPClient creates an HTTP client configured by opts.
//
// Design decisions:
//   - Redirects are capped at 10 to stop loops while allowing normal chains
//   - No cookie jar: mirrored sites are fetched without session state
//   - Headers are injected by a RoundTripper so redirect hops carry them too
func NewHTTPClient(opts Options) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport

	if opts.ProxyAddress != "" {
		dialContext, err := socks5DialContext(opts.ProxyAddress)
		if err != nil {
			return nil, err
		}
		// The proxy resolves names; an environment HTTP proxy must not
		// take precedence over it.
		transport.Proxy = nil
		transport.DialContext = dialContext
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var rt http.RoundTripper = transport
	if opts.UserAgent != "" || len(opts.Headers) > 0 {
		rt = &headerInjectingTransport{
			base:      transport,
			userAgent: opts.UserAgent,
			headers:   opts.Headers,
		}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// socks5DialContext returns a DialContext function connecting through the
// SOCKS5 proxy at address.
func socks5DialContext(address string) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	if err := ValidateProxyAddress(address); err != nil {
		return nil, err
	}

	dialer, err := proxy.SOCKS5("tcp", address, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}, nil
}

// ValidateProxyAddress checks that address is "host:port" with a port in
// 1-65535. IPv6 hosts must be bracketed.
func ValidateProxyAddress(address string) error {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidProxyAddress, address)
	}

	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("%w: %q", ErrInvalidProxyAddress, address)
	}
	return nil
}

// headerInjectingTransport wraps an http.RoundTripper to inject the
// User-Agent and custom headers into every request.
type headerInjectingTransport struct {
	base      http.RoundTripper
	userAgent string
	headers   map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original
	clone := req.Clone(req.Context())

	if t.userAgent != "" && clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
