// Package storage provides object storage for listing images, backed by any
// S3-compatible endpoint via the MinIO client.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/okravets/baraholka/internal/config"
)

// ImageStore persists image bytes and returns a public URL for them.
type ImageStore interface {
	StoreImage(ctx context.Context, data []byte, name, contentType string) (string, error)
}

type minioImageStore struct {
	client  *minio.Client
	logger  *slog.Logger
	bucket  string
	baseURL string
}

// NewImageStore creates an ImageStore backed by the configured S3-compatible
// endpoint. It ensures the target bucket exists.
func NewImageStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (ImageStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", cfg.Bucket, err)
		}
		logger.Info("Created image bucket", "bucket", cfg.Bucket)
	}

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	return &minioImageStore{
		client:  client,
		logger:  logger.With("component", "image_store"),
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// StoreImage uploads image bytes under the given object name and returns the
// public URL of the stored object.
func (s *minioImageStore) StoreImage(ctx context.Context, data []byte, name, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("cannot store empty image data")
	}
	if name == "" {
		return "", fmt.Errorf("cannot store image without a name")
	}

	info, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		s.logger.ErrorContext(ctx, "Image upload failed", "name", name, "error", err)
		return "", fmt.Errorf("failed to upload image %q: %w", name, err)
	}

	s.logger.DebugContext(ctx, "Image uploaded",
		"name", name, "size", info.Size, "content_type", contentType)

	return s.baseURL + "/" + name, nil
}
