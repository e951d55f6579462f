package schedule

import (
	"slices"
	"strings"
	"time"

	"github.com/rezkam/dayplan/internal/domain"
)

// Occurs reports whether item belongs to the agenda of date.
func Occurs(item domain.Item, date domain.Date) bool {
	return item.OccursOn(date)
}

// AgendaFor selects the items occurring on date and orders them: all-day
// events first, then by time of day with untimed items leading. The sort is
// stable so ties keep their collection order.
func AgendaFor(items []domain.Item, date domain.Date) []domain.Item {
	agenda := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if Occurs(item, date) {
			agenda = append(agenda, item)
		}
	}
	slices.SortStableFunc(agenda, compareAgenda)
	return agenda
}

func compareAgenda(a, b domain.Item) int {
	aAllDay, bAllDay := a.IsAllDayEvent(), b.IsAllDayEvent()
	switch {
	case aAllDay && bAllDay:
		return 0
	case aAllDay:
		return -1
	case bAllDay:
		return 1
	default:
		return strings.Compare(a.Time.String(), b.Time.String())
	}
}

// Entry is an agenda item paired with the status to display for the day.
type Entry struct {
	Item   domain.Item
	Status domain.Status
}

// Agenda builds the ordered day view with display statuses evaluated at ref.
func Agenda(items []domain.Item, date domain.Date, ref time.Time, loc *time.Location) []Entry {
	ordered := AgendaFor(items, date)
	entries := make([]Entry, len(ordered))
	for i, item := range ordered {
		entries[i] = Entry{Item: item, Status: DisplayStatus(item, date, ref, loc)}
	}
	return entries
}
