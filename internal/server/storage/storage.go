// Package storage abstracts file storage for user uploads. The S3 backend
// targets any S3-compatible endpoint (MinIO in development); the local
// backend keeps files under a directory on disk.
package storage

import (
	"context"
	"io"

	"github.com/webstarter/api/internal/server/config"
)

// Storage stores and retrieves named blobs.
type Storage interface {
	Save(ctx context.Context, name string, r io.Reader) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}

// NewStorage picks the backend from config.
func NewStorage(cfg *config.Config) Storage {
	if cfg.StorageProvider == "s3" {
		return NewS3Storage(cfg)
	}
	return NewLocalStorage(cfg.UploadDir)
}
