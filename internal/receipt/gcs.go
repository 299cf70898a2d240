package receipt

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
)

const gcsTimeout = 2 * time.Minute

// GCSStorage implements the Storage interface on a Google Cloud Storage bucket.
// Credentials come from Application Default Credentials.
type GCSStorage struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStorage creates a GCS-backed Storage. Keys are stored under prefix when set.
func NewGCSStorage(ctx context.Context, bucket, prefix string) (*GCSStorage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCSStorage{client: client, bucket: bucket, prefix: prefix}, nil
}

func (g *GCSStorage) object(key string) *storage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(path.Join(g.prefix, key))
}

// Save uploads data as an object
func (g *GCSStorage) Save(name string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), gcsTimeout)
	defer cancel()

	w := g.object(name).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("writing object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing object %s: %w", name, err)
	}
	return name, nil
}

// Get downloads an object
func (g *GCSStorage) Get(key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), gcsTimeout)
	defer cancel()

	rc, err := g.object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w", key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading object bytes: %w", err)
	}
	return data, nil
}

// Delete removes an object
func (g *GCSStorage) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), gcsTimeout)
	defer cancel()

	if err := g.object(key).Delete(ctx); err != nil {
		return fmt.Errorf("deleting object %s: %w", key, err)
	}
	return nil
}

// Close releases the storage client
func (g *GCSStorage) Close() error {
	return g.client.Close()
}
