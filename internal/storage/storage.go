package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"alcyxob/fitness-assessment/internal/config"
	"alcyxob/fitness-assessment/internal/logger"

	"github.com/google/uuid"
)

// Default expiry for signed download URLs. Media URLs are re-signed on every
// read, so this is kept short.
const DefaultPresignedURLExpiry = 60 * time.Second

// FileStorage defines the interface for object storage operations.
type FileStorage interface {
	// PutObject uploads data under objectKey, replacing any existing object.
	PutObject(ctx context.Context, objectKey string, contentType string, data []byte) error

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests
	// for downloading/viewing an object directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// DeleteObject removes an object from the storage provider.
	DeleteObject(ctx context.Context, objectKey string) error
}

var (
	ErrObjectNotFound = errors.New("object not found in storage")
)

// NewObjectKey returns a unique key inside folder, keeping the extension
// of fileName.
func NewObjectKey(folder, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	return path.Join(strings.Trim(folder, "/"), uuid.NewString()+ext)
}

// New builds the backend selected by storage.backend.
func New(ctx context.Context, cfg config.Config, log *logger.Logger) (FileStorage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case "", "s3":
		return NewS3Storage(ctx, cfg.S3, log)
	case "gcs":
		return NewGCSStorage(ctx, cfg.GCS, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
