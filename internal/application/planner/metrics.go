package planner

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/rezkam/dayplan/internal/domain"
)

const meterName = "github.com/rezkam/dayplan/internal/application/planner"

// serviceMetrics counts accepted mutations. Counters come from the global
// meter provider, so they are no-ops until observability installs one.
type serviceMetrics struct {
	created       metric.Int64Counter
	statusChanges metric.Int64Counter
	rescheduled   metric.Int64Counter
}

func newServiceMetrics() serviceMetrics {
	meter := otel.Meter(meterName)
	return serviceMetrics{
		created:       counter(meter, "dayplan.items.created", "Items created"),
		statusChanges: counter(meter, "dayplan.items.status_changes", "Accepted status changes"),
		rescheduled:   counter(meter, "dayplan.items.rescheduled", "Tasks moved to a new date"),
	}
}

func counter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		slog.Error("failed to create counter", "name", name, "error", err)
		return noop.Int64Counter{}
	}
	return c
}

func (m serviceMetrics) itemCreated(ctx context.Context, kind domain.ItemKind) {
	m.created.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}

func (m serviceMetrics) statusChanged(ctx context.Context, kind domain.ItemKind, status domain.Status) {
	m.statusChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("status", string(status))))
}

func (m serviceMetrics) taskRescheduled(ctx context.Context) {
	m.rescheduled.Add(ctx, 1)
}
