// Package transport builds the HTTP clients used to mirror sites.
//
// A client may route every connection through a SOCKS5 proxy and injects a
// User-Agent and per-site headers into every request, including redirects.
//
// Design decision: We configure the proxy at the http.Transport level rather
// than in the crawler because:
//  1. The crawler only needs an *http.Client, so tests can pass httptest's
//  2. Header injection in a RoundTripper also covers redirect hops
//
// The package is designed to be used with dependency injection: build a
// client once per run and hand it to crawler.NewFetcher.
package transport
