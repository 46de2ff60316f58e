package imagestore

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/shinyyama/ecograd-backend/internal/config"
)

// Uploader stores an object and returns the URL it can be fetched from.
type Uploader interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

// New builds the uploader selected by IMAGE_STORE. It returns a nil Uploader
// for "none". The returned close func is never nil.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Uploader, func() error, error) {
	noop := func() error { return nil }
	switch cfg.ImageStore {
	case "", "none":
		return nil, noop, nil
	case "gcs":
		g, err := NewGCS(ctx, cfg.GCSBucket, cfg.GCSCredentials, logger)
		if err != nil {
			return nil, noop, err
		}
		return g, g.Close, nil
	case "s3":
		s, err := NewS3(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicBaseURL, logger)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	default:
		return nil, noop, fmt.Errorf("imagestore: unknown IMAGE_STORE %q", cfg.ImageStore)
	}
}
