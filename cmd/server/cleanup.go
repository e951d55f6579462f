package main

import (
	"context"
	"io"
	"log/slog"
)

// shutdowner is a background component that drains on shutdown.
type shutdowner interface {
	Shutdown(context.Context) error
}

// component names a shutdowner for logging.
type component struct {
	name string
	svc  shutdowner
}

// newCleanup returns the shutdown hook run after the HTTP server stops.
// Components drain in order so producers stop before the consumers they
// feed; the store is closed last.
func newCleanup(ctx context.Context, components []component, store io.Closer) func() {
	return func() {
		for _, c := range components {
			if c.svc == nil {
				continue
			}
			if err := c.svc.Shutdown(ctx); err != nil {
				slog.WarnContext(ctx, "shutdown incomplete", "component", c.name, "error", err)
				continue
			}
			slog.InfoContext(ctx, "shutdown complete", "component", c.name)
		}

		if store != nil {
			if err := store.Close(); err != nil {
				slog.ErrorContext(ctx, "failed to close store", "error", err)
			}
		}
	}
}
