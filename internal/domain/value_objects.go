package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Layouts for the calendar value objects.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Title is a validated title value object (1-255 characters).
type Title struct {
	value string
}

// NewTitle creates a new Title, validating the input.
func NewTitle(s string) (Title, error) {
	s = strings.TrimSpace(s)

	if s == "" {
		return Title{}, ErrTitleRequired
	}

	if utf8.RuneCountInString(s) > 255 {
		return Title{}, ErrTitleTooLong
	}

	return Title{value: s}, nil
}

// String returns the title value.
func (t Title) String() string {
	return t.value
}

// NewItemKind validates and creates an ItemKind.
func NewItemKind(s string) (ItemKind, error) {
	kind := ItemKind(strings.ToLower(strings.TrimSpace(s)))

	switch kind {
	case KindTask, KindEvent:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidKind, s)
	}
}

// NewStatus validates and creates a Status.
func NewStatus(s string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))

	switch status {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidStatus, s)
	}
}

// Date is a calendar date without time zone, formatted YYYY-MM-DD.
// The zero value means "not set". Canonical formatting keeps string
// comparison equal to chronological comparison.
type Date string

// ParseDate validates s and returns it as a Date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// String returns the YYYY-MM-DD form.
func (d Date) String() string {
	return string(d)
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d == ""
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d < other
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d > other
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	t, err := time.ParseInLocation(DateLayout, string(d), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return DateOf(d.In(time.UTC).AddDate(0, 0, n))
}

// DaysUntil returns the number of days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.In(time.UTC).Sub(d.In(time.UTC)).Hours() / 24)
}

// ClockTime is a wall-clock time of day formatted HH:MM (24h).
// The zero value means "no time".
type ClockTime string

// ParseClockTime validates s and returns it as a ClockTime.
// An empty string yields the zero ClockTime.
func ParseClockTime(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return ClockTime(t.Format(ClockLayout)), nil
}

// String returns the HH:MM form, or "" when unset.
func (c ClockTime) String() string {
	return string(c)
}

// IsZero reports whether no time is set.
func (c ClockTime) IsZero() bool {
	return c == ""
}

// On combines the clock time with a date in loc.
func (c ClockTime) On(d Date, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+ClockLayout, string(d)+" "+string(c), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %s", ErrInvalidTime, d, c)
	}
	return t, nil
}

// DisplayName is a validated profile name (1-100 characters).
type DisplayName struct {
	value string
}

// NewDisplayName creates a DisplayName, trimming whitespace.
func NewDisplayName(s string) (DisplayName, error) {
	s = strings.TrimSpace(s)

	if s == "" {
		return DisplayName{}, ErrNameRequired
	}

	if utf8.RuneCountInString(s) > 100 {
		return DisplayName{}, ErrNameTooLong
	}

	return DisplayName{value: s}, nil
}

// String returns the name value.
func (n DisplayName) String() string {
	return n.value
}
