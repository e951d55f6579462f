package schedule

import (
	"testing"
	"time"

	"github.com/rezkam/dayplan/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func task(id string, date domain.Date, clock domain.ClockTime, status domain.Status) domain.Item {
	return domain.Item{
		ID: id, OwnerID: "owner-1", Title: "task " + id,
		Kind: domain.KindTask, Date: date, Time: clock, Status: status,
	}
}

func event(id string, start, end domain.Date, allDay bool) domain.Item {
	return domain.Item{
		ID: id, OwnerID: "owner-1", Title: "event " + id,
		Kind: domain.KindEvent, StartDate: start, EndDate: end, AllDay: allDay,
		Status: domain.StatusPending,
	}
}

func mustInstant(t *testing.T, s string) time.Time {
	t.Helper()
	at, err := time.Parse("2006-01-02T15:04", s)
	require.NoError(t, err)
	return at
}

// sampleItems covers every kind/status/marker combination used by the property tests.
func sampleItems() []domain.Item {
	items := []domain.Item{}
	for _, s := range domain.AllStatuses {
		timed := task("timed-"+string(s), "2024-07-01", "09:00", s)
		untimed := task("untimed-"+string(s), "2024-07-01", "", s)
		marked := task("marked-"+string(s), "2024-07-01", "18:30", s)
		marked.FailureMarks = map[domain.Date]bool{"2024-07-01": true, "2024-06-30": true}

		ev := event("event-"+string(s), "2024-06-30", "2024-07-02", false)
		ev.Time = "12:00"
		ev.Status = s
		ev.PerDayStatus = map[domain.Date]domain.Status{"2024-07-01": s}
		ev.FailureMarks = map[domain.Date]bool{"2024-07-01": true}

		items = append(items, timed, untimed, marked, ev)
	}
	return items
}

func TestEffectiveStatus(t *testing.T) {
	t.Run("event per day map", func(t *testing.T) {
		ev := event("e1", "2024-07-01", "2024-07-03", false)
		ev.PerDayStatus = map[domain.Date]domain.Status{"2024-07-02": domain.StatusCompleted}

		assert.Equal(t, domain.StatusCompleted, EffectiveStatus(ev, "2024-07-02"))
		assert.Equal(t, domain.StatusPending, EffectiveStatus(ev, "2024-07-01"))
	})

	t.Run("event template status never leaks", func(t *testing.T) {
		ev := event("e1", "2024-07-01", "2024-07-03", true)
		ev.Status = domain.StatusCompleted

		assert.Equal(t, domain.StatusPending, EffectiveStatus(ev, "2024-07-03"))
	})

	t.Run("task uses its status", func(t *testing.T) {
		tk := task("t1", "2024-07-01", "", domain.StatusInProgress)
		assert.Equal(t, domain.StatusInProgress, EffectiveStatus(tk, "2024-07-01"))
	})
}

func TestDetectLapsed(t *testing.T) {
	ref := mustInstant(t, "2024-07-01T10:00")

	t.Run("timed pending task in the past fails", func(t *testing.T) {
		tk := task("t1", "2024-07-01", "09:00", domain.StatusPending)
		assert.Equal(t, domain.StatusFailed, DetectLapsed(tk, ref, time.UTC))
	})

	t.Run("in progress task lapses too", func(t *testing.T) {
		tk := task("t1", "2024-07-01", "09:59", domain.StatusInProgress)
		assert.Equal(t, domain.StatusFailed, DetectLapsed(tk, ref, time.UTC))
	})

	t.Run("exact instant is not lapsed", func(t *testing.T) {
		tk := task("t1", "2024-07-01", "10:00", domain.StatusPending)
		assert.Equal(t, domain.StatusPending, DetectLapsed(tk, ref, time.UTC))
	})

	t.Run("future task unchanged", func(t *testing.T) {
		tk := task("t1", "2024-07-02", "08:00", domain.StatusPending)
		assert.Equal(t, domain.StatusPending, DetectLapsed(tk, ref, time.UTC))
	})

	t.Run("completed task never lapses", func(t *testing.T) {
		tk := task("t1", "2024-06-01", "09:00", domain.StatusCompleted)
		assert.Equal(t, domain.StatusCompleted, DetectLapsed(tk, ref, time.UTC))
	})

	t.Run("events are not lapse checked", func(t *testing.T) {
		ev := event("e1", "2024-06-01", "2024-06-02", false)
		ev.Time = "09:00"
		assert.Equal(t, domain.StatusPending, DetectLapsed(ev, ref, time.UTC))
	})

	t.Run("location shifts the deadline", func(t *testing.T) {
		loc := time.FixedZone("UTC-3", -3*60*60)
		tk := task("t1", "2024-07-01", "09:00", domain.StatusPending)
		// 09:00 at UTC-3 is 12:00 UTC, still ahead of 10:00 UTC
		assert.Equal(t, domain.StatusPending, DetectLapsed(tk, ref, loc))
	})

	t.Run("untimed tasks never lapse", func(t *testing.T) {
		far := mustInstant(t, "2099-01-01T00:00")
		for _, item := range sampleItems() {
			if item.Kind != domain.KindTask || !item.Time.IsZero() || item.Status == domain.StatusFailed {
				continue
			}
			assert.NotEqual(t, domain.StatusFailed, DetectLapsed(item, far, time.UTC), item.ID)
			assert.Equal(t, item.Status, DetectLapsed(item, far, time.UTC), item.ID)
		}
	})
}

func TestApplyStatusChange(t *testing.T) {
	t.Run("completed always reads completed without a mark", func(t *testing.T) {
		const d domain.Date = "2024-07-01"
		for _, item := range sampleItems() {
			updated, err := ApplyStatusChange(item, d, domain.StatusCompleted)
			require.NoError(t, err, item.ID)

			assert.Equal(t, domain.StatusCompleted, EffectiveStatus(updated, d), item.ID)
			assert.False(t, updated.HasFailureMark(d), item.ID)
		}
	})

	t.Run("event change leaves template status alone", func(t *testing.T) {
		ev := event("e1", "2024-07-01", "2024-07-03", false)
		ev.Status = domain.StatusInProgress

		updated, err := ApplyStatusChange(ev, "2024-07-02", domain.StatusCompleted)
		require.NoError(t, err)

		assert.Equal(t, domain.StatusInProgress, updated.Status)
		assert.Equal(t, domain.StatusCompleted, updated.PerDayStatus["2024-07-02"])
		assert.Nil(t, ev.PerDayStatus, "input must not be mutated")
	})

	t.Run("event date outside range rejected", func(t *testing.T) {
		ev := event("e1", "2024-07-01", "2024-07-03", false)
		_, err := ApplyStatusChange(ev, "2024-07-04", domain.StatusCompleted)
		assert.ErrorIs(t, err, domain.ErrDateOutOfRange)
	})

	t.Run("failed sets a mark for the day", func(t *testing.T) {
		ev := event("e1", "2024-07-01", "2024-07-03", false)
		updated, err := ApplyStatusChange(ev, "2024-07-02", domain.StatusFailed)
		require.NoError(t, err)

		assert.True(t, updated.HasFailureMark("2024-07-02"))
		assert.False(t, updated.HasFailureMark("2024-07-01"))
	})

	t.Run("event keeps marks on other days", func(t *testing.T) {
		ev := event("e1", "2024-07-01", "2024-07-03", false)
		ev.FailureMarks = map[domain.Date]bool{"2024-07-01": true, "2024-07-02": true}

		updated, err := ApplyStatusChange(ev, "2024-07-02", domain.StatusInProgress)
		require.NoError(t, err)

		assert.True(t, updated.HasFailureMark("2024-07-01"))
		assert.False(t, updated.HasFailureMark("2024-07-02"))
	})

	t.Run("task mark follows its own date", func(t *testing.T) {
		tk := task("t1", "2024-07-01", "", domain.StatusPending)
		updated, err := ApplyStatusChange(tk, "2024-07-05", domain.StatusFailed)
		require.NoError(t, err)

		assert.Equal(t, domain.StatusFailed, updated.Status)
		assert.True(t, updated.HasFailureMark("2024-07-01"))
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		tk := task("t1", "2024-07-01", "", domain.StatusPending)
		_, err := ApplyStatusChange(tk, "2024-07-01", "archived")
		assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	})
}

func TestReschedule(t *testing.T) {
	t.Run("always fresh start", func(t *testing.T) {
		for _, item := range sampleItems() {
			if item.Kind != domain.KindTask {
				continue
			}
			updated, err := Reschedule(item, "2024-08-01", "")
			require.NoError(t, err, item.ID)

			assert.Equal(t, domain.StatusPending, updated.Status, item.ID)
			assert.Empty(t, updated.FailureMarks, item.ID)
			assert.Equal(t, domain.Date("2024-08-01"), updated.Date)
		}
	})

	t.Run("time replaced only when item had one", func(t *testing.T) {
		timed := task("t1", "2024-07-01", "09:00", domain.StatusCompleted)
		updated, err := Reschedule(timed, "2024-07-02", "15:30")
		require.NoError(t, err)
		assert.Equal(t, domain.ClockTime("15:30"), updated.Time)

		kept, err := Reschedule(timed, "2024-07-02", "")
		require.NoError(t, err)
		assert.Equal(t, domain.ClockTime("09:00"), kept.Time)

		untimed := task("t2", "2024-07-01", "", domain.StatusFailed)
		stillUntimed, err := Reschedule(untimed, "2024-07-02", "15:30")
		require.NoError(t, err)
		assert.True(t, stillUntimed.Time.IsZero())
	})

	t.Run("events rejected", func(t *testing.T) {
		_, err := Reschedule(event("e1", "2024-07-01", "2024-07-01", true), "2024-07-02", "")
		assert.ErrorIs(t, err, domain.ErrNotReschedulable)
	})

	t.Run("date required", func(t *testing.T) {
		_, err := Reschedule(task("t1", "2024-07-01", "", domain.StatusPending), "", "")
		assert.ErrorIs(t, err, domain.ErrDateRequired)
	})
}

func TestCheckTransition(t *testing.T) {
	const d domain.Date = "2024-07-01"
	tests := []struct {
		from, to domain.Status
		ok       bool
	}{
		{domain.StatusPending, domain.StatusInProgress, true},
		{domain.StatusPending, domain.StatusCompleted, true},
		{domain.StatusPending, domain.StatusFailed, true},
		{domain.StatusInProgress, domain.StatusPending, true},
		{domain.StatusInProgress, domain.StatusCompleted, true},
		{domain.StatusInProgress, domain.StatusFailed, true},
		{domain.StatusCompleted, domain.StatusPending, true},
		{domain.StatusCompleted, domain.StatusInProgress, true},
		{domain.StatusCompleted, domain.StatusFailed, false},
		{domain.StatusFailed, domain.StatusCompleted, false},
		{domain.StatusFailed, domain.StatusInProgress, false},
		{domain.StatusFailed, domain.StatusPending, false},
		{domain.StatusCompleted, domain.StatusCompleted, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := CheckTransition(task("t1", d, "", tt.from), d, tt.to)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		})
	}

	t.Run("failed event day can reopen", func(t *testing.T) {
		ev := event("e1", d, d, false)
		ev.PerDayStatus = map[domain.Date]domain.Status{d: domain.StatusFailed}

		assert.NoError(t, CheckTransition(ev, d, domain.StatusPending))
		assert.ErrorIs(t, CheckTransition(ev, d, domain.StatusCompleted), domain.ErrInvalidTransition)
	})

	t.Run("lapsed task is still pending in storage", func(t *testing.T) {
		tk := task("t1", "2020-01-01", "09:00", domain.StatusPending)
		assert.NoError(t, CheckTransition(tk, "2020-01-01", domain.StatusCompleted))
	})
}
