package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// ResourceStatus describes what happened to one URL.
type ResourceStatus string

const (
	// StatusSaved means the resource was downloaded and written to disk.
	StatusSaved ResourceStatus = "saved"

	// StatusFailed means the download or the write failed.
	// The resource was not expanded.
	StatusFailed ResourceStatus = "failed"
)

// Resource is the outcome of processing one URL during a mirror run.
//
// Design decision: We record failed resources too because:
//  1. The visited set counts them, and the report should explain the count
//  2. A failed URL is the first thing to look at when a mirror is incomplete
type Resource struct {
	// URL is the normalized URL of the resource.
	URL string `json:"url"`

	// LocalPath is the file the resource was (or would have been) written to.
	LocalPath string `json:"local_path"`

	// Depth is the number of link hops from the seed.
	Depth int `json:"depth"`

	// ContentType is the lowercase Content-Type from the HEAD request.
	// Empty when the request failed or the server sent none.
	ContentType string `json:"content_type,omitempty"`

	// Size is the number of bytes written.
	Size int64 `json:"size"`

	// Hash is the SHA-256 of the content, hex encoded.
	Hash string `json:"hash,omitempty"`

	// Status is the outcome.
	Status ResourceStatus `json:"status"`

	// Error is the failure message for failed resources.
	Error string `json:"error,omitempty"`

	// LinksFound is the number of same-host references discovered inside
	// the resource.
	LinksFound int `json:"links_found"`

	// FetchedAt is when processing of the resource started.
	FetchedAt time.Time `json:"fetched_at"`
}

// SetContent records the size and hash of content.
func (r *Resource) SetContent(content []byte) {
	r.Size = int64(len(content))
	if len(content) == 0 {
		r.Hash = ""
		return
	}
	sum := sha256.Sum256(content)
	r.Hash = hex.EncodeToString(sum[:])
}

// IsHTML returns true if the content type indicates an HTML page.
func (r *Resource) IsHTML() bool {
	return strings.HasPrefix(r.ContentType, "text/html") ||
		strings.HasPrefix(r.ContentType, "application/xhtml+xml")
}

// IsStylesheet returns true if the content type indicates CSS.
func (r *Resource) IsStylesheet() bool {
	return strings.HasPrefix(r.ContentType, "text/css")
}

// IsImage returns true if the content type indicates an image.
func (r *Resource) IsImage() bool {
	return strings.HasPrefix(r.ContentType, "image/")
}
