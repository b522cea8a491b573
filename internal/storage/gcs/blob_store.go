// Package gcs stores result artifacts in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

// Config captures the bucket artifacts are written to.
type Config struct {
	Bucket string
	// Prefix is prepended to every object name.
	Prefix string
	// CacheControl is set on every artifact. Defaults to no-cache.
	CacheControl string
}

const defaultCacheControl = "no-cache"

// BlobStore writes artifacts to a configured GCS bucket.
type BlobStore struct {
	client       *storage.Client
	bucket       string
	prefix       string
	cacheControl string
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	cacheControl := cfg.CacheControl
	if cacheControl == "" {
		cacheControl = defaultCacheControl
	}
	return &BlobStore{
		client:       client,
		bucket:       cfg.Bucket,
		prefix:       strings.Trim(cfg.Prefix, "/"),
		cacheControl: cacheControl,
	}, nil
}

// PutObject uploads the artifact and returns a gs:// URI.
func (s *BlobStore) PutObject(ctx context.Context, name string, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("path is required")
	}
	object := strings.TrimPrefix(path.Join(s.prefix, name), "/")
	if contentType == "" && path.Ext(name) == ".json" {
		contentType = "application/json"
	}
	writer := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = s.cacheControl
	writer.Metadata = artifactMetadata(name)
	if _, err := io.Copy(writer, r); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, object), nil
}

// artifactMetadata tags worker exports (<job>/worker-<n>.json) with their job
// and worker index.
func artifactMetadata(name string) map[string]string {
	meta := map[string]string{"producer": "scrapeorch"}
	dir, file := path.Split(strings.Trim(name, "/"))
	worker, ok := strings.CutPrefix(strings.TrimSuffix(file, path.Ext(file)), "worker-")
	if !ok || worker == "" {
		return meta
	}
	meta["worker"] = worker
	if job := path.Base(strings.TrimSuffix(dir, "/")); job != "." && job != "" {
		meta["job_id"] = job
	}
	return meta
}
