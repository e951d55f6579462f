package schedule

import (
	"time"

	"github.com/rezkam/dayplan/internal/domain"
)

// DayStats counts agenda entries by display status.
type DayStats struct {
	Date       domain.Date
	Completed  int
	InProgress int
	Pending    int
	Failed     int
	Total      int
}

// Summarize counts entries by their display status.
func Summarize(date domain.Date, entries []Entry) DayStats {
	stats := DayStats{Date: date, Total: len(entries)}
	for _, e := range entries {
		switch e.Status {
		case domain.StatusCompleted:
			stats.Completed++
		case domain.StatusInProgress:
			stats.InProgress++
		case domain.StatusFailed:
			stats.Failed++
		default:
			stats.Pending++
		}
	}
	return stats
}

// RangeStats returns one DayStats per date in [from, to], in date order.
func RangeStats(items []domain.Item, from, to domain.Date, ref time.Time, loc *time.Location) []DayStats {
	if to.Before(from) {
		return nil
	}
	out := make([]DayStats, 0, from.DaysUntil(to)+1)
	for d := from; !d.After(to); d = d.AddDays(1) {
		out = append(out, Summarize(d, Agenda(items, d, ref, loc)))
	}
	return out
}
