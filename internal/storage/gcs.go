package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"alcyxob/fitness-assessment/internal/config"
	"alcyxob/fitness-assessment/internal/logger"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// gcsStorage implements FileStorage on Google Cloud Storage or a local
// fake-gcs emulator.
type gcsStorage struct {
	client       *storage.Client
	bucketName   string
	emulatorHost string
	log          *logger.Logger
}

func NewGCSStorage(ctx context.Context, cfg config.GCSConfig, log *logger.Logger) (FileStorage, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs.bucket_name required")
	}
	emulator := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/")

	var opts []option.ClientOption
	if emulator != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", emulator)
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	log.Info("GCS storage initialized", "bucket", cfg.BucketName, "emulator_host", emulator)
	return &gcsStorage{
		client:       client,
		bucketName:   cfg.BucketName,
		emulatorHost: emulator,
		log:          log.With("service", "GCSStorage"),
	}, nil
}

func (g *gcsStorage) PutObject(ctx context.Context, objectKey string, contentType string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.client.Bucket(g.bucketName).Object(objectKey).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	g.log.Debug("object stored", "key", objectKey, "bytes", len(data))
	return nil
}

// GeneratePresignedDownloadURL signs a V4 GET URL with the client's
// credentials. The emulator cannot sign, so it gets a plain media link.
func (g *gcsStorage) GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error) {
	if expires <= 0 {
		expires = DefaultPresignedURLExpiry
	}
	if g.emulatorHost != "" {
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media",
			g.emulatorHost, g.bucketName, url.PathEscape(objectKey)), nil
	}
	u, err := g.client.Bucket(g.bucketName).SignedURL(objectKey, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expires),
	})
	if err != nil {
		g.log.Error("failed to sign GET URL", "key", objectKey, "error", err)
		return "", err
	}
	return u, nil
}

func (g *gcsStorage) DeleteObject(ctx context.Context, objectKey string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := g.client.Bucket(g.bucketName).Object(objectKey).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, objectKey)
		}
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", objectKey, g.bucketName, err)
	}
	g.log.Info("deleted object", "key", objectKey, "bucket", g.bucketName)
	return nil
}
