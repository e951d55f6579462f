// Package fs keeps planner documents in a local directory through diskv.
package fs

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"strings"

	"github.com/peterbourgon/diskv/v3"

	"github.com/rezkam/dayplan/internal/storage/document"
)

// Bucket is a document.Bucket rooted at a directory.
// Each "/" in a key becomes a directory level.
type Bucket struct {
	d       *diskv.Diskv
	baseDir string
}

var _ document.Bucket = (*Bucket)(nil)

// NewBucket creates the directory if needed and returns a bucket over it.
func NewBucket(baseDir string) (*Bucket, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &Bucket{
		d: diskv.New(diskv.Options{
			BasePath:          baseDir,
			AdvancedTransform: keyToPath,
			InverseTransform:  pathToKey,
			// No cache: files edited outside the process must be read fresh.
			CacheSizeMax: 0,
		}),
		baseDir: baseDir,
	}, nil
}

// NewStore returns a document store on a directory bucket.
func NewStore(baseDir string) (*document.Store, *Bucket, error) {
	bucket, err := NewBucket(baseDir)
	if err != nil {
		return nil, nil, err
	}
	return document.NewStore(bucket), bucket, nil
}

func keyToPath(key string) *diskv.PathKey {
	parts := strings.Split(key, "/")
	return &diskv.PathKey{
		Path:     parts[:len(parts)-1],
		FileName: parts[len(parts)-1],
	}
}

func pathToKey(pathKey *diskv.PathKey) string {
	if len(pathKey.Path) == 0 {
		return pathKey.FileName
	}
	return strings.Join(pathKey.Path, "/") + "/" + pathKey.FileName
}

func notExist(err error) error {
	if errors.Is(err, iofs.ErrNotExist) {
		return document.ErrMissing
	}
	return err
}

// Get reads the file at key.
func (b *Bucket) Get(_ context.Context, key string) ([]byte, error) {
	data, err := b.d.Read(key)
	if err != nil {
		return nil, notExist(err)
	}
	return data, nil
}

// Put writes the file at key, creating parent directories.
func (b *Bucket) Put(_ context.Context, key string, data []byte) error {
	return b.d.Write(key, data)
}

// Delete removes the file at key.
func (b *Bucket) Delete(_ context.Context, key string) error {
	return notExist(b.d.Erase(key))
}

// List walks the directory below prefix. Prefixes end in "/" so the walk
// starts at the matching directory.
func (b *Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for key := range b.d.KeysPrefix(prefix, ctx.Done()) {
		keys = append(keys, key)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
