package fs

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rezkam/dayplan/internal/storage/document"
)

// watchDelay coalesces bursts of writes into one notification per owner.
const watchDelay = 100 * time.Millisecond

// Watch calls publish with the owner of every item file that changes on
// disk, including edits made outside the server. It returns once the
// watcher is running; watching stops when ctx is done.
func (b *Bucket) Watch(ctx context.Context, publish func(ownerID string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	dirs, err := collectDirs(b.baseDir)
	if err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to enumerate directories: %w", err)
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	go func() {
		defer func() {
			if err := watcher.Close(); err != nil {
				slog.Warn("failed to close watcher", "error", err)
			}
		}()

		watched := make(map[string]struct{}, len(dirs))
		for _, dir := range dirs {
			watched[dir] = struct{}{}
		}

		throttle := newOwnerThrottle(watchDelay, publish)
		defer throttle.stop()

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("storage watcher error", "error", err)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if evt.Has(fsnotify.Create) {
					if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
						// New owner and kind directories appear lazily;
						// files may already sit inside them.
						added, err := collectDirs(evt.Name)
						if err != nil {
							slog.Warn("failed to enumerate directory", "dir", evt.Name, "error", err)
						}
						for _, dir := range added {
							if _, found := watched[dir]; found {
								continue
							}
							if err := watcher.Add(dir); err != nil {
								slog.Warn("failed to watch directory", "dir", dir, "error", err)
								continue
							}
							watched[dir] = struct{}{}
							// Writes that landed before the watch was added.
							if owner, ok := b.ownerForPath(dir); ok {
								throttle.enqueue(owner)
							}
						}
					}
				}
				if owner, ok := b.ownerForPath(evt.Name); ok {
					throttle.enqueue(owner)
				}
			}
		}
	}()

	return nil
}

func (b *Bucket) ownerForPath(path string) (string, bool) {
	rel, err := filepath.Rel(b.baseDir, path)
	if err != nil {
		return "", false
	}
	return document.OwnerFromKey(filepath.ToSlash(rel))
}

// collectDirs walks base and returns every directory below it, base included.
func collectDirs(base string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(base, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, filepath.Clean(path))
		}
		return nil
	})
	return dirs, err
}

// ownerThrottle batches owners seen within delay and publishes each once.
type ownerThrottle struct {
	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]struct{}
	delay   time.Duration
	publish func(string)
}

func newOwnerThrottle(delay time.Duration, publish func(string)) *ownerThrottle {
	return &ownerThrottle{
		delay:   delay,
		pending: make(map[string]struct{}),
		publish: publish,
	}
}

func (t *ownerThrottle) enqueue(owner string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[owner] = struct{}{}
	if t.timer == nil {
		t.timer = time.AfterFunc(t.delay, t.flush)
	}
}

func (t *ownerThrottle) flush() {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[string]struct{})
	t.timer = nil
	t.mu.Unlock()

	for owner := range pending {
		t.publish(owner)
	}
}

func (t *ownerThrottle) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
