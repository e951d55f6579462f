// Package lapse notifies owners about timed tasks whose start passed
// without completion. Lapses are never written back to storage.
package lapse

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rezkam/dayplan/internal/application/planner"
	"github.com/rezkam/dayplan/internal/domain"
	"github.com/rezkam/dayplan/internal/schedule"
)

// Lister is the read side of planner.Repository the sweeper needs.
type Lister interface {
	ListOwners(ctx context.Context) ([]string, error)
	ListItems(ctx context.Context, ownerID string) ([]domain.Item, error)
}

// Sweeper finds tasks that lapsed since its previous run.
type Sweeper struct {
	repo     Lister
	notifier planner.Notifier
	loc      *time.Location
	now      func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewSweeper creates a sweeper whose first window starts now, so tasks that
// lapsed before startup are not reported.
func NewSweeper(repo Lister, notifier planner.Notifier, loc *time.Location, now func() time.Time) *Sweeper {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		repo:     repo,
		notifier: notifier,
		loc:      loc,
		now:      now,
		last:     now(),
	}
}

// Sweep notifies every task whose start fell in [previous run, now) and is
// still not completed. It returns the number of notifications enqueued.
// On error nothing is enqueued and the window does not advance.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	since := s.last

	owners, err := s.repo.ListOwners(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list owners: %w", err)
	}

	// Nothing is enqueued until every owner has loaded, so a failed run
	// leaves no partial batch behind to be repeated by the retry.
	var pending []domain.Notification
	for _, owner := range owners {
		items, err := s.repo.ListItems(ctx, owner)
		if err != nil {
			return 0, fmt.Errorf("failed to list items for %s: %w", owner, err)
		}
		for _, item := range items {
			if !s.lapsedIn(item, since, now) {
				continue
			}
			n, err := domain.NewNotification(owner, "Missed: "+item.Title,
				fmt.Sprintf("Scheduled for %s at %s and not completed.", item.Date, item.Time))
			if err != nil {
				continue
			}
			pending = append(pending, n)
		}
	}

	if s.notifier != nil {
		for _, n := range pending {
			s.notifier.Enqueue(ctx, n)
		}
	}
	sent := len(pending)

	s.last = now
	slog.DebugContext(ctx, "lapse sweep finished",
		slog.Int("owners", len(owners)),
		slog.Int("lapsed", sent))
	return sent, nil
}

// lapsedIn reports whether item's start lies in [since, now) and the
// read-time view shows it as failed.
func (s *Sweeper) lapsedIn(item domain.Item, since, now time.Time) bool {
	if item.Kind != domain.KindTask || item.Time.IsZero() {
		return false
	}
	// Explicitly failed tasks were reported by their owner.
	if item.Status == domain.StatusFailed {
		return false
	}
	start, err := item.Time.On(item.Date, s.loc)
	if err != nil || start.Before(since) || !start.Before(now) {
		return false
	}
	return schedule.DetectLapsed(item, now, s.loc) == domain.StatusFailed
}
