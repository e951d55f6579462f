// Package storage opens the persistence backend selected by configuration.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/rezkam/dayplan/internal/application/auth"
	"github.com/rezkam/dayplan/internal/application/planner"
	"github.com/rezkam/dayplan/internal/application/profile"
	"github.com/rezkam/dayplan/internal/config"
	"github.com/rezkam/dayplan/internal/infrastructure/persistence/postgres"
	"github.com/rezkam/dayplan/internal/infrastructure/persistence/sqlite"
	"github.com/rezkam/dayplan/internal/storage/fs"
	"github.com/rezkam/dayplan/internal/storage/gcs"
)

// Store is everything a backend provides to the application.
type Store interface {
	planner.Repository
	profile.Repository
	auth.Repository
}

// Backend is an opened store plus its lifecycle hooks.
type Backend struct {
	Store

	// Name identifies the backend in logs.
	Name string

	close func() error
	watch func(ctx context.Context, publish func(ownerID string)) error
}

// Close releases connections held by the backend.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// CanWatch reports whether the backend reports changes made by other writers.
func (b *Backend) CanWatch() bool {
	return b.watch != nil
}

// Watch reports externally changed owners to publish until ctx is done.
// It is a no-op when CanWatch is false.
func (b *Backend) Watch(ctx context.Context, publish func(ownerID string)) error {
	if b.watch == nil {
		return nil
	}
	return b.watch(ctx, publish)
}

// Open validates cfg and opens the selected backend.
func Open(ctx context.Context, cfg config.StorageConfig) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Kind() {
	case config.BackendPostgres:
		store, err := postgres.NewStoreWithConfig(ctx, postgres.DBConfig{
			DSN:             cfg.DSN,
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		slog.InfoContext(ctx, "storage initialized", "backend", cfg.Kind(), "url", MaskPassword(cfg.DSN))
		return &Backend{Store: store, Name: cfg.Kind(), close: store.Close}, nil

	case config.BackendSQLite:
		store, err := sqlite.NewStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		slog.InfoContext(ctx, "storage initialized", "backend", cfg.Kind(), "path", cfg.SQLitePath)
		return &Backend{Store: store, Name: cfg.Kind(), close: store.Close}, nil

	case config.BackendFS:
		store, bucket, err := fs.NewStore(cfg.FSDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open fs store: %w", err)
		}
		slog.InfoContext(ctx, "storage initialized", "backend", cfg.Kind(), "dir", cfg.FSDir)
		return &Backend{Store: store, Name: cfg.Kind(), watch: bucket.Watch}, nil

	case config.BackendGCS:
		store, bucket, err := gcs.NewStore(ctx, cfg.GCSBucket, cfg.GCSPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to open gcs store: %w", err)
		}
		slog.InfoContext(ctx, "storage initialized", "backend", cfg.Kind(), "bucket", cfg.GCSBucket, "prefix", cfg.GCSPrefix)
		return &Backend{Store: store, Name: cfg.Kind(), close: bucket.Close}, nil
	}

	// Validate rejects everything else.
	return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
}

// MaskPassword masks the password in a connection string for logging.
func MaskPassword(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil {
		return "[REDACTED]"
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxxx")
		}
	}
	return u.String()
}
