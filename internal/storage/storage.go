// Package storage defines the Storage interface used for condition report
// attachments and the types shared by its backends.
//
// Backends register themselves with the factory from an init() function in
// their own package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (storage.Storage, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// internal/api blank-imports each backend so its init() runs.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned (wrapped) when no object exists at a path.
var ErrNotFound = errors.New("file not found")

// Storage is implemented by every attachment backend.
type Storage interface {
	// Upload stores the contents of reader at path and returns its checksum.
	Upload(ctx context.Context, path string, reader io.Reader, size int64) (*UploadResult, error)

	// Download opens the object at path. Callers must close the reader.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the object at path. Deleting a missing object is not an error.
	Delete(ctx context.Context, path string) error

	// GetURL returns a download URL. Cloud backends sign it for ttl;
	// the local backend points at the API's file route.
	GetURL(ctx context.Context, path string, ttl time.Duration) (string, error)

	Exists(ctx context.Context, path string) (bool, error)

	// GetMetadata retrieves object metadata without returning the body.
	GetMetadata(ctx context.Context, path string) (*FileMetadata, error)
}

// UploadResult describes a stored object.
type UploadResult struct {
	Path     string
	Size     int64
	Checksum string // hex SHA256
}

// FileMetadata describes an object already in storage.
type FileMetadata struct {
	Path         string
	Size         int64
	Checksum     string
	LastModified time.Time
}
