// Package schedule derives and edits the status and order of agenda items.
//
// Every function here is pure: it takes items by value and returns new
// values, leaving persistence and notification to the caller.
package schedule

import (
	"fmt"
	"time"

	"github.com/rezkam/dayplan/internal/domain"
)

// EffectiveStatus returns the status of item on date.
// Events resolve through their per-day map and default to pending.
func EffectiveStatus(item domain.Item, date domain.Date) domain.Status {
	return item.StatusOn(date)
}

// DetectLapsed returns failed for a timed task whose start has passed ref
// without being completed. The result is a read-time view and is never
// written back. Events and untimed tasks return their stored status.
func DetectLapsed(item domain.Item, ref time.Time, loc *time.Location) domain.Status {
	if item.Kind != domain.KindTask || item.Time.IsZero() || item.Status == domain.StatusCompleted {
		return item.Status
	}
	if loc == nil {
		loc = time.UTC
	}
	at, err := item.Time.On(item.Date, loc)
	if err != nil {
		return item.Status
	}
	if at.Before(ref) {
		return domain.StatusFailed
	}
	return item.Status
}

// DisplayStatus is the status shown for item on date: the effective status
// with lapse detection applied to tasks.
func DisplayStatus(item domain.Item, date domain.Date, ref time.Time, loc *time.Location) domain.Status {
	if item.Kind == domain.KindTask {
		return DetectLapsed(item, ref, loc)
	}
	return EffectiveStatus(item, date)
}

// ApplyStatusChange returns a copy of item with status set for date.
//
// Tasks change their single status and key failure marks by their own date.
// Events change only the per-day entry; the template status is untouched.
// A failed status sets the mark for the date, anything else clears it.
func ApplyStatusChange(item domain.Item, date domain.Date, status domain.Status) (domain.Item, error) {
	if _, err := domain.NewStatus(string(status)); err != nil {
		return item, err
	}

	out := item.Clone()
	markDate := date

	switch out.Kind {
	case domain.KindTask:
		out.Status = status
		markDate = out.Date
	case domain.KindEvent:
		if !out.OccursOn(date) {
			return item, fmt.Errorf("%w: %s not in %s..%s", domain.ErrDateOutOfRange, date, out.StartDate, out.EndDate)
		}
		if out.PerDayStatus == nil {
			out.PerDayStatus = make(map[domain.Date]domain.Status)
		}
		out.PerDayStatus[date] = status
	default:
		return item, fmt.Errorf("%w: %s", domain.ErrInvalidKind, out.Kind)
	}

	if status == domain.StatusFailed {
		if out.FailureMarks == nil {
			out.FailureMarks = make(map[domain.Date]bool)
		}
		out.FailureMarks[markDate] = true
	} else if out.Kind == domain.KindTask {
		// tasks have a single status; marks left under an older date go too
		clear(out.FailureMarks)
	} else {
		delete(out.FailureMarks, markDate)
	}
	return out, nil
}

// Reschedule moves a task to newDate as a fresh start: status returns to
// pending and every failure mark is cleared. newTime replaces the time only
// when the task already had one and newTime is set.
func Reschedule(item domain.Item, newDate domain.Date, newTime domain.ClockTime) (domain.Item, error) {
	if item.Kind != domain.KindTask {
		return item, domain.ErrNotReschedulable
	}
	if newDate.IsZero() {
		return item, domain.ErrDateRequired
	}

	out := item.Clone()
	out.Date = newDate
	if !out.Time.IsZero() && !newTime.IsZero() {
		out.Time = newTime
	}
	out.Status = domain.StatusPending
	out.FailureMarks = nil
	return out, nil
}

// transitions lists the status changes allowed outside of Reschedule.
var transitions = map[domain.Status]map[domain.Status]bool{
	domain.StatusPending: {
		domain.StatusInProgress: true, domain.StatusCompleted: true, domain.StatusFailed: true,
	},
	domain.StatusInProgress: {
		domain.StatusPending: true, domain.StatusCompleted: true, domain.StatusFailed: true,
	},
	domain.StatusCompleted: {
		domain.StatusPending: true, domain.StatusInProgress: true,
	},
}

// CheckTransition validates a direct status change on item for date.
//
// The check runs against the stored status, so a task that only reads as
// lapsed is still pending and can be completed. A task stored as failed
// leaves that state through Reschedule only. Events cannot be rescheduled,
// so a failed day may be reopened to pending directly.
func CheckTransition(item domain.Item, date domain.Date, to domain.Status) error {
	from := item.StatusOn(date)
	if from == to {
		return nil
	}
	if from == domain.StatusFailed && item.Kind == domain.KindEvent && to == domain.StatusPending {
		return nil
	}
	if !transitions[from][to] {
		return fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, from, to)
	}
	return nil
}
