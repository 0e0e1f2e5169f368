package crawler

import "errors"

// Resource-local failure kinds.
// None of these abort a run; they are returned so the Spider can decide,
// at the call site, to skip the link or the resource and keep going.
var (
	// ErrNormalization is returned when a URL cannot be parsed or lacks a
	// scheme or host. The link is dropped.
	ErrNormalization = errors.New("url normalization failed")

	// ErrPathMapping is used internally by PathMapper. It never reaches the
	// caller because the mapper falls back to a fixed path.
	ErrPathMapping = errors.New("local path mapping failed")

	// ErrFetch is returned for transport errors, non-2xx responses and
	// oversized bodies. The resource is not expanded.
	ErrFetch = errors.New("fetch failed")

	// ErrExtraction is returned when content cannot be parsed for links.
	// The resource contributes no links.
	ErrExtraction = errors.New("link extraction failed")

	// ErrRecursionLimit is reported when the work list safety cap is hit.
	// The affected branch is dropped.
	ErrRecursionLimit = errors.New("work list limit exceeded")
)
