package crawler

import (
	"errors"
	"sort"
	"strings"
	"testing"
	"testing/iotest"
)

// newTestExtractor creates an Extractor scoped to http://host.
func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()

	scope, err := NewScope("http://host/")
	if err != nil {
		t.Fatalf("failed to create scope: %v", err)
	}
	return NewExtractor(scope)
}

// assertLinks compares a LinkSet with the expected URLs.
func assertLinks(t *testing.T, got LinkSet, want []string) {
	t.Helper()

	sort.Strings(want)
	sorted := got.Sorted()
	if strings.Join(sorted, "\n") != strings.Join(want, "\n") {
		t.Errorf("unexpected links\ngot:\n  %s\nwant:\n  %s",
			strings.Join(sorted, "\n  "), strings.Join(want, "\n  "))
	}
}

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <link rel="stylesheet" href="/static/site.css">
  <script src="app.js"></script>
  <style>body { background: url('/img/bg.png'); }</style>
</head>
<body>
  <a href="/x">x</a>
  <img src="//host/y.png">
  <a href="http://other.example/z">z</a>
  <a href="javascript:void(0)">js</a>
  <a href="mailto:someone@host">mail</a>
  <a href="tel:+100">call</a>
  <a href="#top">top</a>
  <a href="/page#section">fragment</a>
  <img src="data:image/png;base64,AAAA">
  <div style="background-image: url(/img/hero.jpg)"></div>
  <iframe src="/embed"></iframe>
  <video><source src="/media/clip.mp4"></video>
  <a>no href</a>
</body>
</html>`

// TestExtractHTMLPage tests reference discovery in an HTML page.
func TestExtractHTMLPage(t *testing.T) {
	t.Parallel()

	e := newTestExtractor(t)
	links, err := e.Extract([]byte(samplePage), "http://host/", "text/html; charset=utf-8")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	assertLinks(t, links, []string{
		"http://host/static/site.css",
		"http://host/app.js",
		"http://host/img/bg.png",
		"http://host/x",
		"http://host/y.png",
		"http://host/page",
		"http://host/img/hero.jpg",
		"http://host/embed",
		"http://host/media/clip.mp4",
	})
}

// TestExtractSoundness tests that only same-host references are returned.
func TestExtractSoundness(t *testing.T) {
	t.Parallel()

	page := `<a href="/x">x</a><img src="//host/y.png"><a href="http://other.example/z">z</a>`

	e := newTestExtractor(t)
	links, err := e.Extract([]byte(page), "http://host/", "text/html")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	assertLinks(t, links, []string{"http://host/x", "http://host/y.png"})
	if links.Has("http://other.example/z") {
		t.Error("foreign host must not be extracted")
	}
}

// TestExtractPageDetection tests that pages are recognized without a content type.
func TestExtractPageDetection(t *testing.T) {
	t.Parallel()

	page := []byte(`<a href="next">next</a>`)

	tests := []struct {
		name string
		base string
		want []string
	}{
		{"trailing slash", "http://host/dir/", []string{"http://host/dir/next"}},
		{"html suffix", "http://host/dir/a.html", []string{"http://host/dir/next"}},
		{"htm suffix", "http://host/dir/a.htm", []string{"http://host/dir/next"}},
		{"unknown type", "http://host/dir/a.bin", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newTestExtractor(t)
			links, err := e.Extract(page, tt.base, "")
			if err != nil {
				t.Fatalf("Extract returned error: %v", err)
			}
			assertLinks(t, links, tt.want)
		})
	}
}

const sampleStylesheet = `@import "reset.css";
@import url("theme.css");
body { background: url(img/bg.png?v=2#x); }
@font-face { font-family: f; src: url('/fonts/f.woff'); }
.a { background: url(data:image/png;base64,AAAA); }
.b { background: url(http://other.example/c.png); }
.c { background: url(#svg-filter); }
.d { background: url(); }`

// TestExtractCSS tests the stylesheet patterns.
func TestExtractCSS(t *testing.T) {
	t.Parallel()

	e := newTestExtractor(t)
	links := e.ExtractCSS(sampleStylesheet, "http://host/css/main.css")

	assertLinks(t, links, []string{
		"http://host/css/reset.css",
		"http://host/css/theme.css",
		"http://host/css/img/bg.png",
		"http://host/fonts/f.woff",
	})
}

// TestExtractStylesheet tests Extract on CSS, where the raw scan also keeps
// query strings.
func TestExtractStylesheet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		base        string
		contentType string
	}{
		{"by content type", "http://host/css/main", "text/css"},
		{"by suffix", "http://host/css/main.css", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newTestExtractor(t)
			links, err := e.Extract([]byte(sampleStylesheet), tt.base, tt.contentType)
			if err != nil {
				t.Fatalf("Extract returned error: %v", err)
			}

			assertLinks(t, links, []string{
				"http://host/css/reset.css",
				"http://host/css/theme.css",
				"http://host/css/img/bg.png",
				"http://host/css/img/bg.png?v=2",
				"http://host/fonts/f.woff",
			})
		})
	}
}

// TestExtractRawScan tests the catch-all scan on untyped content.
func TestExtractRawScan(t *testing.T) {
	t.Parallel()

	content := []byte(`var bg = "url(/a.png)"; var skip = "url(data:x)"; var other = "url(http://other.example/b.png)";`)

	e := newTestExtractor(t)
	links, err := e.Extract(content, "http://host/js/app.js", "application/javascript")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	assertLinks(t, links, []string{"http://host/a.png"})
}

// TestExtractLatin1 tests that non-UTF-8 content is decoded as ISO-8859-1.
func TestExtractLatin1(t *testing.T) {
	t.Parallel()

	content := []byte("<a href=\"/caf\xe9\">caf\xe9</a>")

	e := newTestExtractor(t)
	links, err := e.Extract(content, "http://host/", "text/html")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	assertLinks(t, links, []string{"http://host/caf%C3%A9"})
}

// TestExtractErrors tests that extraction failures wrap ErrExtraction.
func TestExtractErrors(t *testing.T) {
	t.Parallel()

	t.Run("invalid base URL", func(t *testing.T) {
		t.Parallel()

		e := newTestExtractor(t)
		links, err := e.Extract([]byte(samplePage), "http://host/%zz", "text/html")
		if !errors.Is(err, ErrExtraction) {
			t.Fatalf("expected ErrExtraction, got %v", err)
		}
		if links.Len() != 0 {
			t.Errorf("expected no links, got %d", links.Len())
		}
	})

	t.Run("unreadable page", func(t *testing.T) {
		t.Parallel()

		e := newTestExtractor(t)
		_, err := e.ExtractHTML(iotest.ErrReader(errors.New("connection reset")), "http://host/")
		if !errors.Is(err, ErrExtraction) {
			t.Fatalf("expected ErrExtraction, got %v", err)
		}
	})
}

// TestHasAnyPrefix tests the skip-prefix matcher.
func TestHasAnyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{"javascript:alert(1)", true},
		{"  JavaScript:alert(1)", true},
		{"#anchor", true},
		{"/path", false},
		{"data-file.png", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			if got := hasAnyPrefix(tt.input, htmlSkipPrefixes...); got != tt.want {
				t.Errorf("hasAnyPrefix(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
