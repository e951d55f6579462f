package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/dayplan/internal/domain"
)

type recordingSender struct {
	mu    sync.Mutex
	got   []domain.Notification
	err   error
	block chan struct{}
}

func (s *recordingSender) Send(_ context.Context, n domain.Notification) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	return s.err
}

func (s *recordingSender) sent() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Notification(nil), s.got...)
}

func note(title string) domain.Notification {
	return domain.Notification{OwnerID: "alice", Title: title, Message: "body"}
}

func TestRelay_ShutdownDrainsQueue(t *testing.T) {
	sender := &recordingSender{}
	relay := NewRelay(sender, RelayConfig{QueueSize: 10})

	for _, title := range []string{"a", "b", "c"} {
		relay.Enqueue(context.Background(), note(title))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, relay.Shutdown(ctx))

	titles := make([]string, 0, 3)
	for _, n := range sender.sent() {
		titles = append(titles, n.Title)
	}
	assert.Equal(t, []string{"a", "b", "c"}, titles)

	// Idempotent, and later notifications are dropped.
	require.NoError(t, relay.Shutdown(ctx))
	relay.Enqueue(context.Background(), note("late"))
	assert.Len(t, sender.sent(), 3)
}

func TestRelay_DropsWhenQueueFull(t *testing.T) {
	sender := &recordingSender{block: make(chan struct{})}
	relay := NewRelay(sender, RelayConfig{QueueSize: 1})

	// The worker takes the first and blocks; one more fits the queue.
	relay.Enqueue(context.Background(), note("first"))
	require.Eventually(t, func() bool { return len(relay.queue) == 0 }, time.Second, 5*time.Millisecond)
	relay.Enqueue(context.Background(), note("queued"))
	relay.Enqueue(context.Background(), note("dropped"))

	close(sender.block)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, relay.Shutdown(ctx))

	var titles []string
	for _, n := range sender.sent() {
		titles = append(titles, n.Title)
	}
	assert.Equal(t, []string{"first", "queued"}, titles)
}

func TestRelay_SendFailureDoesNotStopWorker(t *testing.T) {
	sender := &recordingSender{err: errors.New("provider down")}
	relay := NewRelay(sender, RelayConfig{})

	relay.Enqueue(context.Background(), note("one"))
	relay.Enqueue(context.Background(), note("two"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, relay.Shutdown(ctx))
	assert.Len(t, sender.sent(), 2)
}

func TestRelay_ShutdownTimeout(t *testing.T) {
	sender := &recordingSender{block: make(chan struct{})}
	defer close(sender.block)
	relay := NewRelay(sender, RelayConfig{})
	relay.Enqueue(context.Background(), note("stuck"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := relay.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
