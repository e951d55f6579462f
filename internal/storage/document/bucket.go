// Package document stores the planner's records as JSON documents in a
// key/value bucket, so the same store runs on a local directory or on
// object storage.
package document

import (
	"context"
	"errors"
)

// ErrMissing is returned by Bucket.Get and Bucket.Delete for absent keys.
var ErrMissing = errors.New("document: key not found")

// Bucket is a flat key/value space with "/"-separated keys.
type Bucket interface {
	// Get returns the document stored at key, or ErrMissing.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put creates or replaces the document at key.
	Put(ctx context.Context, key string, data []byte) error
	// Delete removes key, or returns ErrMissing.
	Delete(ctx context.Context, key string) error
	// List returns every key starting with prefix, in no particular order.
	List(ctx context.Context, prefix string) ([]string, error)
}
