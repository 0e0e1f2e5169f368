package crawler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

const (
	// maxPathLength is the longest relative path kept verbatim.
	// Longer paths are replaced by a hashed name.
	maxPathLength = 200

	// maxExtensionLength bounds the extension carried over to a hashed name.
	// A longer "extension" is treated as part of the name.
	maxExtensionLength = 16

	// longPathPrefix prefixes hashed names for oversized paths.
	longPathPrefix = "long_path_"

	// indexFile is the file name used for directory-style URLs.
	indexFile = "index.html"
)

// fallbackPath is where content lands when a URL cannot be mapped.
var fallbackPath = filepath.Join("error_files", "default.html")

// illegalPathChars replaces characters rejected by common filesystems.
var illegalPathChars = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_", "|", "_", "?", "_", "*", "_",
)

// extensionRule maps a URL to the suffix appended to an extension-less path.
type extensionRule struct {
	// matches is evaluated against the lowercase URL.
	matches func(lowerURL string) bool

	// suffix is appended to the path when matches returns true.
	suffix string
}

// containsAny builds a predicate that matches when any keyword occurs.
func containsAny(keywords ...string) func(string) bool {
	return func(s string) bool {
		for _, k := range keywords {
			if strings.Contains(s, k) {
				return true
			}
		}
		return false
	}
}

// extensionRules is evaluated in order; the first match wins.
// URLs matching no rule are treated as directory-style pages.
var extensionRules = []extensionRule{
	{matches: containsAny("/css/", ".css"), suffix: ".css"},
	{matches: containsAny("/js/", ".js"), suffix: ".js"},
	{matches: containsAny("/images/", "/img/", ".jpg", ".png", ".gif"), suffix: ".jpg"},
}

// directorySuffix is appended when no extension rule matches.
const directorySuffix = "/" + indexFile

// ClassifyExtension returns the suffix PathMapper appends to an
// extension-less path for rawURL. The rules see the whole lowercase URL,
// host included, so "http://app.js.example/about" maps to "about.js".
func ClassifyExtension(rawURL string) string {
	lower := strings.ToLower(rawURL)
	for _, rule := range extensionRules {
		if rule.matches(lower) {
			return rule.suffix
		}
	}
	return directorySuffix
}

// PathMapper maps normalized URLs to files under an output root.
//
// Design decision: Map never returns an error because a resource that cannot
// be placed properly is still worth keeping. Any failure sends the content
// to a fixed fallback file instead.
type PathMapper struct {
	// root is the output directory every mapped path lives under.
	root string

	// storage creates parent directories for mapped paths.
	storage Storage
}

// NewPathMapper creates a PathMapper rooted at root.
func NewPathMapper(root string, storage Storage) *PathMapper {
	return &PathMapper{
		root:    filepath.Clean(root),
		storage: storage,
	}
}

// Root returns the output root.
func (m *PathMapper) Root() string {
	return m.root
}

// Map returns the local path for rawURL and ensures its parent directory
// exists. It never fails.
func (m *PathMapper) Map(rawURL string) string {
	rel, err := relativePath(rawURL)
	if err != nil {
		return m.fallback()
	}

	full := filepath.Join(m.root, filepath.FromSlash(rel))
	if err := m.storage.MkdirAll(filepath.Dir(full)); err != nil {
		return m.fallback()
	}
	return full
}

// fallback returns the fixed fallback path, creating its directory on a
// best-effort basis.
func (m *PathMapper) fallback() string {
	full := filepath.Join(m.root, fallbackPath)
	_ = m.storage.MkdirAll(filepath.Dir(full)) //nolint:errcheck // the write reports the failure
	return full
}

// relativePath derives the slash-separated path under the root for rawURL.
func relativePath(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPathMapping, err)
	}

	p := u.EscapedPath()
	if p == "" || p == "/" {
		return indexFile, nil
	}

	p = strings.TrimPrefix(p, "/")
	p = illegalPathChars.Replace(p)

	if len(p) > maxPathLength {
		p = hashedName(p)
	}

	if base := p[strings.LastIndex(p, "/")+1:]; !strings.Contains(base, ".") {
		if strings.HasSuffix(p, "/") {
			p += indexFile
		} else {
			p += ClassifyExtension(rawURL)
		}
	}

	// Rooting the path before cleaning keeps ".." segments from climbing
	// out of the output directory.
	cleaned := strings.TrimPrefix(path.Clean("/"+p), "/")
	if cleaned == "" {
		return "", fmt.Errorf("%w: %q resolves to the output root", ErrPathMapping, rawURL)
	}
	return cleaned, nil
}

// hashedName replaces an oversized path with a fixed-length name that keeps
// the original extension, or ".html" when there is none.
func hashedName(p string) string {
	ext := splitExt(p)
	if ext == "" || len(ext) > maxExtensionLength {
		ext = ".html"
	}
	sum := sha256.Sum256([]byte(p))
	return longPathPrefix + hex.EncodeToString(sum[:]) + ext
}

// splitExt returns the extension of the last path segment including the dot.
// Leading dots of the segment do not start an extension.
func splitExt(p string) string {
	base := strings.TrimLeft(p[strings.LastIndex(p, "/")+1:], ".")
	i := strings.LastIndex(base, ".")
	if i < 0 {
		return ""
	}
	return base[i:]
}
