// Package gcs provides a BlobStore backed by Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
)

// Config captures the parameters required to write media to GCS.
type Config struct {
	Bucket string
	// Prefix is prepended to every object path.
	Prefix string
	// PublicBaseURL is the URL objects are served under. Defaults to
	// https://storage.googleapis.com/<bucket>.
	PublicBaseURL string
	// CacheControl is set on every object. Paths are reused when a capture is
	// reprocessed, so the default allows caches to revalidate.
	CacheControl string
}

// DefaultCacheControl applies when Config.CacheControl is empty.
const DefaultCacheControl = "public, max-age=3600"

// BlobStore writes media to a configured GCS bucket.
type BlobStore struct {
	client  *storage.Client
	bucket  string
	prefix  string
	baseURL string
	cache   string
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = "https://storage.googleapis.com/" + cfg.Bucket
	}
	cache := cfg.CacheControl
	if cache == "" {
		cache = DefaultCacheControl
	}
	return &BlobStore{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		baseURL: base,
		cache:   cache,
	}, nil
}

// PutObject uploads data and returns the object's public URL.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	if s.prefix != "" {
		path = s.prefix + "/" + path
	}

	writer := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	writer.CacheControl = s.cache
	if _, err := io.Copy(writer, r); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return s.publicURL(path), nil
}

func (s *BlobStore) publicURL(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segments, "/")
}
