package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// cssURLPatterns are the reference forms recognized inside stylesheets and
// style attributes. Each pattern captures the referenced location in group 1.
var cssURLPatterns = []*regexp.Regexp{
	// url(foo.png), url('foo.png'), url("foo.png")
	regexp.MustCompile(`(?i)url\(\s*['"]?(.*?)['"]?\s*\)`),
	// @import "foo.css", @import url(foo.css)
	regexp.MustCompile(`(?i)@import\s+(?:url\(\s*)?['"]?([^'"\s);]+)`),
	// src: url(font.woff) inside @font-face
	regexp.MustCompile(`(?i)src:\s*url\(\s*['"]?(.*?)['"]?\s*\)`),
}

// rawURLPattern is the catch-all scan run over every resource regardless of
// its type.
var rawURLPattern = regexp.MustCompile(`url\(['"]?([^)'"]*?)['"]?\)`)

// Prefixes of references that never point at a fetchable resource.
var (
	cssSkipPrefixes  = []string{"data:", "#", "javascript:"}
	htmlSkipPrefixes = []string{"javascript:", "mailto:", "tel:", "#", "data:"}
	rawSkipPrefixes  = []string{"data:", "#"}
)

// Extractor discovers same-host references inside fetched content.
//
// Design decision: We run a catch-all url(...) scan on every resource in
// addition to the typed extractors because:
//  1. Content-Type metadata is best-effort and often missing
//  2. Inline <style> blocks are not covered by the attribute pass
//  3. A few duplicate candidates cost nothing; the visited set absorbs them
type Extractor struct {
	scope Scope
}

// NewExtractor creates an Extractor limited to scope.
func NewExtractor(scope Scope) *Extractor {
	return &Extractor{scope: scope}
}

// Extract returns the references found in content fetched from baseURL.
//
// The CSS extractor runs when contentType or the URL indicates a
// stylesheet, the HTML extractor when they indicate a page. The raw
// url(...) scan always runs. On a parse failure the result is empty and the
// error wraps ErrExtraction.
func (e *Extractor) Extract(content []byte, baseURL, contentType string) (LinkSet, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return NewLinkSet(), fmt.Errorf("%w: base %q: %w", ErrExtraction, baseURL, err)
	}

	text := decodeContent(content)
	links := NewLinkSet()

	switch {
	case isStylesheet(baseURL, contentType):
		links.Merge(e.extractCSS(text, base))
	case isPage(baseURL, contentType):
		pageLinks, err := e.ExtractHTML(strings.NewReader(text), baseURL)
		if err != nil {
			return NewLinkSet(), err
		}
		links.Merge(pageLinks)
	}

	links.Merge(e.extractRaw(text, base))
	return links, nil
}

// ExtractCSS returns the references found in stylesheet text.
func (e *Extractor) ExtractCSS(text, baseURL string) LinkSet {
	base, err := url.Parse(baseURL)
	if err != nil {
		return NewLinkSet()
	}
	return e.extractCSS(text, base)
}

func (e *Extractor) extractCSS(text string, base *url.URL) LinkSet {
	links := NewLinkSet()
	for _, pattern := range cssURLPatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			ref := strings.TrimSpace(m[1])
			if ref == "" || hasAnyPrefix(ref, cssSkipPrefixes...) {
				continue
			}
			// Stylesheet references are treated as plain paths.
			ref = strings.TrimSpace(stripQueryAndFragment(ref))
			if ref == "" {
				continue
			}
			if normalized, ok := resolveReference(base, ref, e.scope); ok {
				links.Add(normalized)
			}
		}
	}
	return links
}

// extractRaw is the type-independent url(...) scan.
// Unlike extractCSS it keeps query strings.
func (e *Extractor) extractRaw(text string, base *url.URL) LinkSet {
	links := NewLinkSet()
	for _, m := range rawURLPattern.FindAllStringSubmatch(text, -1) {
		ref := m[1]
		if ref == "" || hasAnyPrefix(ref, rawSkipPrefixes...) {
			continue
		}
		if normalized, ok := resolveReference(base, ref, e.scope); ok {
			links.Add(normalized)
		}
	}
	return links
}

// stripQueryAndFragment cuts ref at the first '?' and then at the first '#'.
func stripQueryAndFragment(ref string) string {
	if i := strings.IndexByte(ref, '?'); i >= 0 {
		ref = ref[:i]
	}
	if i := strings.IndexByte(ref, '#'); i >= 0 {
		ref = ref[:i]
	}
	return ref
}

// isStylesheet reports whether the resource should be scanned as CSS.
func isStylesheet(rawURL, contentType string) bool {
	return strings.Contains(contentType, "css") || strings.HasSuffix(rawURL, ".css")
}

// isPage reports whether the resource should be parsed as HTML.
func isPage(rawURL, contentType string) bool {
	return strings.Contains(contentType, "html") ||
		strings.HasSuffix(rawURL, ".html") ||
		strings.HasSuffix(rawURL, ".htm") ||
		strings.HasSuffix(rawURL, "/")
}

// decodeContent returns content as text. Valid UTF-8 is used as is;
// anything else is decoded as ISO-8859-1, which accepts every byte.
func decodeContent(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(content)
	if err != nil {
		return strings.ToValidUTF8(string(content), "")
	}
	return string(decoded)
}
