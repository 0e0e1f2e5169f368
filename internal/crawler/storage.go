package crawler

import (
	"fmt"
	"os"
)

// Storage is the filesystem collaborator used by PathMapper and Fetcher.
//
// Design decision: We keep this interface to the two calls the engine
// actually makes so tests can swap in failing or recording fakes without
// touching the disk.
type Storage interface {
	// MkdirAll creates dir and any missing parents.
	MkdirAll(dir string) error

	// WriteFile writes data to path, replacing any existing file.
	WriteFile(path string, data []byte) error
}

// DiskStorage writes to the local filesystem.
type DiskStorage struct{}

// NewDiskStorage returns a Storage backed by the os package.
func NewDiskStorage() DiskStorage {
	return DiskStorage{}
}

// MkdirAll implements Storage.
func (DiskStorage) MkdirAll(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil { //nolint:gosec // mirrored trees are meant to be served
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// WriteFile implements Storage.
func (DiskStorage) WriteFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil { //nolint:gosec // path is confined under the output root by PathMapper
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
