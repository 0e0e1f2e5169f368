package crawler

import (
	"fmt"
	"io"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

// referenceAttribute is an element/attribute pair that can point at a
// resource worth mirroring.
type referenceAttribute struct {
	tag  string
	attr string
}

// referenceAttributes lists the element attributes followed in HTML pages.
var referenceAttributes = []referenceAttribute{
	{tag: "a", attr: "href"},
	{tag: "link", attr: "href"},
	{tag: "script", attr: "src"},
	{tag: "img", attr: "src"},
	{tag: "source", attr: "src"},
	{tag: "iframe", attr: "src"},
}

// selector returns the CSS selector matching elements carrying the attribute.
func (r referenceAttribute) selector() string {
	return r.tag + "[" + r.attr + "]"
}

// ExtractHTML parses an HTML page and returns its same-host references,
// including those in inline style attributes.
//
// Design decision: We use goquery on top of golang.org/x/net/html because:
//  1. x/net/html tolerates the malformed markup common on real sites
//  2. Attribute-presence selectors ("img[src]", "[style]") express each
//     lookup in one line instead of a hand-written tree walk
func (e *Extractor) ExtractHTML(r io.Reader, baseURL string) (LinkSet, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return NewLinkSet(), fmt.Errorf("%w: %s: %w", ErrExtraction, baseURL, err)
	}
	return e.ExtractDocument(doc, baseURL)
}

// ExtractDocument returns the same-host references of an already parsed page.
func (e *Extractor) ExtractDocument(doc *goquery.Document, baseURL string) (LinkSet, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return NewLinkSet(), fmt.Errorf("%w: base %q: %w", ErrExtraction, baseURL, err)
	}

	links := e.extractAttributes(doc, base)
	links.Merge(e.extractInlineStyles(doc, base))
	return links, nil
}

// extractAttributes collects the referenceAttributes of every element.
func (e *Extractor) extractAttributes(doc *goquery.Document, base *url.URL) LinkSet {
	links := NewLinkSet()
	for _, ra := range referenceAttributes {
		doc.Find(ra.selector()).Each(func(_ int, s *goquery.Selection) {
			ref, ok := s.Attr(ra.attr)
			if !ok || ref == "" || hasAnyPrefix(ref, htmlSkipPrefixes...) {
				return
			}
			if normalized, ok := resolveReference(base, ref, e.scope); ok {
				links.Add(normalized)
			}
		})
	}
	return links
}

// extractInlineStyles feeds every style attribute through the CSS extractor.
func (e *Extractor) extractInlineStyles(doc *goquery.Document, base *url.URL) LinkSet {
	links := NewLinkSet()
	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		if style, ok := s.Attr("style"); ok && style != "" {
			links.Merge(e.extractCSS(style, base))
		}
	})
	return links
}
