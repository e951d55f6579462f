// Package gcs keeps planner documents as objects in a Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/rezkam/dayplan/internal/storage/document"
)

// Bucket is a document.Bucket over a GCS bucket. All object names are
// placed below prefix, so several deployments can share one bucket.
type Bucket struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ document.Bucket = (*Bucket)(nil)

// NewBucket creates a GCS client and returns a bucket handle.
// It assumes the client is authenticated (e.g. via GOOGLE_APPLICATION_CREDENTIALS).
func NewBucket(ctx context.Context, bucketName, prefix string) (*Bucket, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Bucket{
		client: client,
		bucket: bucketName,
		prefix: prefix,
	}, nil
}

// NewStore returns a document store on a GCS bucket.
func NewStore(ctx context.Context, bucketName, prefix string) (*document.Store, *Bucket, error) {
	bucket, err := NewBucket(ctx, bucketName, prefix)
	if err != nil {
		return nil, nil, err
	}
	return document.NewStore(bucket), bucket, nil
}

// Close releases the underlying client.
func (b *Bucket) Close() error {
	return b.client.Close()
}

func (b *Bucket) object(key string) *storage.ObjectHandle {
	return b.client.Bucket(b.bucket).Object(b.prefix + key)
}

// Get reads the object at key.
func (b *Bucket) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := b.object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, document.ErrMissing
		}
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read object data: %w", err)
	}
	return data, nil
}

// Put uploads data to key.
func (b *Bucket) Put(ctx context.Context, key string, data []byte) error {
	w := b.object(key).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize object: %w", err)
	}
	return nil
}

// Delete removes the object at key.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	err := b.object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return document.ErrMissing
	}
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// List returns the keys of all objects whose name starts with prefix.
func (b *Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	it := b.client.Bucket(b.bucket).Objects(ctx, &storage.Query{Prefix: b.prefix + prefix})
	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		keys = append(keys, strings.TrimPrefix(attrs.Name, b.prefix))
	}
	return keys, nil
}
