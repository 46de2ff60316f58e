package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// GCS writes objects to a Cloud Storage bucket and serves them through
// Firebase download-token URLs.
type GCS struct {
	client *storage.Client
	bucket string
	logger *slog.Logger
}

func NewGCS(ctx context.Context, bucket, credentialsFile string, logger *slog.Logger) (*GCS, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("gcs: GCS_BUCKET is required")
	}
	var opts []option.ClientOption
	if f := strings.TrimSpace(credentialsFile); f != "" {
		opts = append(opts, option.WithCredentialsFile(f))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: create client: %w", err)
	}
	return &GCS{client: client, bucket: bucket, logger: logger}, nil
}

func (g *GCS) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("gcs: object key is required")
	}
	token := uuid.NewString()
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{
		"firebaseStorageDownloadTokens": token,
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs: write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs: close %s: %w", key, err)
	}

	publicURL := downloadURL(g.bucket, key, token)
	if g.logger != nil {
		g.logger.InfoContext(ctx, "gcs upload completed", "bucket", g.bucket, "key", key)
	}
	return publicURL, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

func downloadURL(bucket, key, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(key), token)
}

var _ Uploader = (*GCS)(nil)
