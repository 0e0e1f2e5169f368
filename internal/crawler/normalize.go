package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// repeatedSchemeRegex matches a run of scheme prefixes such as
// "http://http://" produced by careless relative-link joining.
// RE2 keeps the last iteration of the group, so "$1" collapses the run.
var repeatedSchemeRegex = regexp.MustCompile(`([a-zA-Z]+:/+)+`)

// Normalize canonicalizes rawURL into the form scheme://host[/path][?query].
//
// The fragment is always dropped, the query is kept only when non-empty and
// the path is kept in its escaped form. Normalizing an already normalized
// URL returns it unchanged.
//
// Design decision: We do not lowercase the host or add a trailing slash
// because:
//  1. Host comparison is exact (see Scope), so rewriting it would hide the
//     difference the scope filter is meant to see
//  2. "/dir" and "/dir/" map to different local paths and may be different
//     resources on the server
func Normalize(rawURL string) (string, error) {
	collapsed := repeatedSchemeRegex.ReplaceAllString(strings.TrimSpace(rawURL), "$1")

	u, err := url.Parse(collapsed)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrNormalization, rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q: missing scheme or host", ErrNormalization, rawURL)
	}

	normalized := u.Scheme + "://" + u.Host + u.EscapedPath()
	if u.RawQuery != "" {
		normalized += "?" + u.RawQuery
	}
	return normalized, nil
}

// Scope limits a run to the seed's host.
// Host equality is exact and includes the port; subdomains are out of scope.
type Scope struct {
	host string
}

// NewScope creates a Scope for the host of seedURL.
func NewScope(seedURL string) (Scope, error) {
	u, err := url.Parse(seedURL)
	if err != nil {
		return Scope{}, fmt.Errorf("%w: %q: %w", ErrNormalization, seedURL, err)
	}
	if u.Host == "" {
		return Scope{}, fmt.Errorf("%w: %q: missing host", ErrNormalization, seedURL)
	}
	return Scope{host: u.Host}, nil
}

// Host returns the host the scope is bound to.
func (s Scope) Host() string {
	return s.host
}

// Contains reports whether rawURL has exactly the scope's host.
// Unparseable URLs are never in scope.
func (s Scope) Contains(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Host == s.host
}

// resolveReference joins ref against base and normalizes the result.
// It returns ok=false when either step fails or the result is out of scope.
func resolveReference(base *url.URL, ref string, scope Scope) (string, bool) {
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", false
	}

	normalized, err := Normalize(base.ResolveReference(refURL).String())
	if err != nil {
		return "", false
	}
	if !scope.Contains(normalized) {
		return "", false
	}
	return normalized, true
}

// hasAnyPrefix reports whether s, without surrounding whitespace, starts
// with one of the prefixes ignoring ASCII case.
func hasAnyPrefix(s string, prefixes ...string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// LinkSet is a set of normalized URLs discovered inside one resource.
type LinkSet map[string]struct{}

// NewLinkSet creates an empty LinkSet.
func NewLinkSet() LinkSet {
	return make(LinkSet)
}

// Add inserts a URL.
func (s LinkSet) Add(u string) {
	s[u] = struct{}{}
}

// Has reports whether u is in the set.
func (s LinkSet) Has(u string) bool {
	_, ok := s[u]
	return ok
}

// Len returns the number of URLs.
func (s LinkSet) Len() int {
	return len(s)
}

// Merge adds every URL of other to s.
func (s LinkSet) Merge(other LinkSet) {
	for u := range other {
		s[u] = struct{}{}
	}
}

// Sorted returns the URLs in lexical order.
// Traversal order among siblings is not significant, but a stable order
// keeps logs and tests reproducible.
func (s LinkSet) Sorted() []string {
	urls := make([]string, 0, len(s))
	for u := range s {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}
