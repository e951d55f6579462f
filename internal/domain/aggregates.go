package domain

import (
	"fmt"
	"maps"
	"time"
)

// Item is the aggregate root for anything that shows up on the agenda.
//
// Tasks are single-day: they carry Date and a single authoritative Status.
// Events span StartDate..EndDate inclusive and track status per day in
// PerDayStatus. An event's Status is only a template default and is never
// the answer for a specific date; use StatusOn.
type Item struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Kind        ItemKind

	// Time is the wall-clock start, empty when unset or AllDay.
	Time   ClockTime
	AllDay bool

	// Task scheduling
	Date Date

	// Event scheduling
	StartDate Date
	EndDate   Date

	Status       Status
	PerDayStatus map[Date]Status

	// FailureMarks holds the dates explicitly marked failed.
	// Tasks key the mark by their own Date.
	FailureMarks map[Date]bool

	// Position is the manual order within the owner's collection.
	Position int

	CreatedAt time.Time
	UpdatedAt time.Time

	// Optimistic locking version for concurrent update protection
	Version int
}

// Etag returns the entity tag for this item.
// The etag is based on the version number and is used for optimistic concurrency control.
func (item *Item) Etag() string {
	return fmt.Sprintf("%d", item.Version)
}

// IsTask reports whether the item is a task.
func (item *Item) IsTask() bool {
	return item.Kind == KindTask
}

// IsEvent reports whether the item is an event.
func (item *Item) IsEvent() bool {
	return item.Kind == KindEvent
}

// IsAllDayEvent reports whether the item sorts in the all-day block of an agenda.
func (item *Item) IsAllDayEvent() bool {
	return item.Kind == KindEvent && item.AllDay
}

// OccursOn reports whether the item belongs to the agenda of date.
func (item *Item) OccursOn(date Date) bool {
	switch item.Kind {
	case KindTask:
		return item.Date == date
	case KindEvent:
		return !date.Before(item.StartDate) && !date.After(item.EndDate)
	default:
		return false
	}
}

// StatusOn resolves the status of the item for a date.
// Events fall back to pending when no per-day entry exists.
func (item *Item) StatusOn(date Date) Status {
	if item.Kind == KindEvent {
		if s, ok := item.PerDayStatus[date]; ok {
			return s
		}
		return StatusPending
	}
	return item.Status
}

// HasFailureMark reports whether date carries a failure marker.
func (item *Item) HasFailureMark(date Date) bool {
	return item.FailureMarks[date]
}

// FirstDate returns the earliest date the item occurs on.
func (item *Item) FirstDate() Date {
	if item.Kind == KindEvent {
		return item.StartDate
	}
	return item.Date
}

// LastDate returns the latest date the item occurs on.
func (item *Item) LastDate() Date {
	if item.Kind == KindEvent {
		return item.EndDate
	}
	return item.Date
}

// TrimToSchedule drops per-day entries and failure marks for dates the item
// no longer occurs on. Used after the schedule is edited.
func (item *Item) TrimToSchedule() {
	for d := range item.PerDayStatus {
		if !item.OccursOn(d) {
			delete(item.PerDayStatus, d)
		}
	}
	for d := range item.FailureMarks {
		if !item.OccursOn(d) {
			delete(item.FailureMarks, d)
		}
	}
}

// Clone returns a deep copy so callers can mutate without aliasing maps.
func (item Item) Clone() Item {
	item.PerDayStatus = maps.Clone(item.PerDayStatus)
	item.FailureMarks = maps.Clone(item.FailureMarks)
	return item
}

// Validate checks the structural invariants of the item.
func (item *Item) Validate() error {
	if item.OwnerID == "" {
		return ErrOwnerRequired
	}
	if _, err := NewTitle(item.Title); err != nil {
		return err
	}
	if _, err := NewStatus(string(item.Status)); err != nil {
		return err
	}
	if item.Time != "" {
		if _, err := ParseClockTime(string(item.Time)); err != nil {
			return err
		}
	}

	switch item.Kind {
	case KindTask:
		if item.Date.IsZero() {
			return ErrDateRequired
		}
		if _, err := ParseDate(string(item.Date)); err != nil {
			return err
		}
		if item.AllDay {
			return ErrAllDayOnlyEvents
		}
		if len(item.PerDayStatus) > 0 {
			return ErrPerDayStatusTask
		}
	case KindEvent:
		if item.StartDate.IsZero() || item.EndDate.IsZero() {
			return ErrDateRequired
		}
		if _, err := ParseDate(string(item.StartDate)); err != nil {
			return err
		}
		if _, err := ParseDate(string(item.EndDate)); err != nil {
			return err
		}
		if item.EndDate.Before(item.StartDate) {
			return ErrInvalidDateRange
		}
		if item.AllDay && item.Time != "" {
			return ErrAllDayTimeSet
		}
		for d, s := range item.PerDayStatus {
			if !item.OccursOn(d) {
				return fmt.Errorf("%w: %s", ErrDateOutOfRange, d)
			}
			if _, err := NewStatus(string(s)); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidKind, item.Kind)
	}
	return nil
}

// Profile holds the owner's display settings.
type Profile struct {
	OwnerID   string
	Name      string
	BirthDate Date // Optional
	CreatedAt time.Time
	UpdatedAt time.Time
}

// APIKey is an aggregate root representing an API key for authentication.
//
// API keys use a split-token pattern:
//   - ShortToken: indexed portion for lookup
//   - LongSecretHash: cryptographic hash for verification
//   - FullKey: only shown once at creation (short + long)
//
// Every key belongs to exactly one owner; the owner ID is the identity
// passed to all planner operations.
type APIKey struct {
	ID             string
	OwnerID        string
	KeyType        string // "sk" = secret key, "pk" = public key
	Service        string // Service name (e.g., "dayplan")
	Version        string // API version (e.g., "v1")
	ShortToken     string // Indexed portion for fast lookup
	LongSecretHash string // BLAKE2b-256 hash of long secret
	Name           string // Human-readable name/description
	IsActive       bool
	CreatedAt      time.Time
	LastUsedAt     *time.Time
	ExpiresAt      *time.Time
}

// Notification is a push message relayed to the owner's devices.
type Notification struct {
	OwnerID string
	Title   string
	Message string
}

// NewNotification validates the required fields.
func NewNotification(ownerID, title, message string) (Notification, error) {
	if title == "" {
		return Notification{}, ErrNotificationTitleRequired
	}
	if message == "" {
		return Notification{}, ErrNotificationMessageRequired
	}
	return Notification{OwnerID: ownerID, Title: title, Message: message}, nil
}
