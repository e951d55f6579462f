package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/rezkam/dayplan/internal/domain"
)

// Default configuration values.
const (
	DefaultQueueSize   = 256
	DefaultSendTimeout = 10 * time.Second
)

// Sender delivers a single notification.
type Sender interface {
	Send(ctx context.Context, n domain.Notification) error
}

// RelayConfig holds configuration for the Relay.
type RelayConfig struct {
	QueueSize   int
	SendTimeout time.Duration
}

// Relay queues notifications and delivers them from one background
// worker. Enqueue never blocks: when the queue is full the notification is
// dropped and counted.
type Relay struct {
	sender  Sender
	queue   chan domain.Notification
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	timeout time.Duration

	sent    metric.Int64Counter
	failed  metric.Int64Counter
	dropped metric.Int64Counter
}

// NewRelay creates a relay and starts its worker.
func NewRelay(sender Sender, config RelayConfig) *Relay {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = DefaultSendTimeout
	}

	meter := otel.Meter("github.com/rezkam/dayplan/internal/infrastructure/notify")
	r := &Relay{
		sender:  sender,
		queue:   make(chan domain.Notification, config.QueueSize),
		stop:    make(chan struct{}),
		timeout: config.SendTimeout,
	}
	r.sent = mustCounter(meter, "dayplan.notifications.sent", "Notifications accepted by the push provider")
	r.failed = mustCounter(meter, "dayplan.notifications.failed", "Notifications the push provider rejected")
	r.dropped = mustCounter(meter, "dayplan.notifications.dropped", "Notifications dropped because the queue was full")

	r.wg.Add(1)
	go r.run()

	return r
}

func mustCounter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		slog.Error("failed to create counter", "name", name, "error", err)
		return noop.Int64Counter{}
	}
	return c
}

// Enqueue schedules n for delivery.
func (r *Relay) Enqueue(ctx context.Context, n domain.Notification) {
	select {
	case <-r.stop:
		r.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "stopped")))
		return
	default:
	}

	select {
	case r.queue <- n:
	default:
		r.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "queue_full")))
		slog.WarnContext(ctx, "dropped notification, queue full",
			slog.String("owner_id", n.OwnerID),
			slog.String("title", n.Title))
	}
}

func (r *Relay) run() {
	defer r.wg.Done()

	for {
		select {
		case n := <-r.queue:
			r.deliver(n)
		case <-r.stop:
			for {
				select {
				case n := <-r.queue:
					r.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (r *Relay) deliver(n domain.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.sender.Send(ctx, n); err != nil {
		r.failed.Add(ctx, 1)
		slog.WarnContext(ctx, "failed to deliver notification",
			slog.String("owner_id", n.OwnerID),
			slog.String("error", err.Error()))
		return
	}
	r.sent.Add(ctx, 1)
	slog.DebugContext(ctx, "notification delivered", slog.String("owner_id", n.OwnerID))
}

// Shutdown stops accepting notifications and waits for the queue to drain.
// It honours ctx's deadline and is safe to call more than once.
func (r *Relay) Shutdown(ctx context.Context) error {
	var err error
	r.once.Do(func() {
		close(r.stop)

		done := make(chan struct{})
		go func() {
			r.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("shutdown timeout: %w", ctx.Err())
		}
	})
	return err
}
