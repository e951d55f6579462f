package domain

import "errors"

// Domain errors returned by repository implementations.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrItemNotFound indicates the item does not exist or belongs to another owner.
	ErrItemNotFound = errors.New("item not found")

	// ErrProfileNotFound indicates the owner has not saved a profile yet.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrInvalidID indicates the provided ID format is invalid.
	ErrInvalidID = errors.New("invalid ID format")

	// ErrVersionConflict indicates the stored version differs from the expected one.
	ErrVersionConflict = errors.New("version conflict")

	// ErrAlreadyExists indicates a record with the same identity is already stored.
	ErrAlreadyExists = errors.New("already exists")
)

// Validation errors.
var (
	ErrTitleRequired     = errors.New("title is required")
	ErrTitleTooLong      = errors.New("title must be 255 characters or less")
	ErrNameRequired      = errors.New("name is required")
	ErrNameTooLong       = errors.New("name must be 100 characters or less")
	ErrOwnerRequired     = errors.New("owner is required")
	ErrInvalidKind       = errors.New("invalid item kind")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidDate       = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidTime       = errors.New("invalid time, expected HH:MM")
	ErrInvalidDateRange  = errors.New("end date must not be before start date")
	ErrDateRequired      = errors.New("date is required")
	ErrAllDayTimeSet     = errors.New("all-day events cannot have a time")
	ErrAllDayOnlyEvents  = errors.New("only events can be all-day")
	ErrPerDayStatusTask  = errors.New("per-day status is only valid for events")
	ErrDateOutOfRange    = errors.New("date is outside the item's schedule")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotReschedulable  = errors.New("only tasks can be rescheduled")
	ErrReorderMismatch   = errors.New("reorder must list exactly the items scheduled on the date")
	ErrRangeTooLarge     = errors.New("date range is too large")
	ErrInvalidEtagFormat = errors.New("invalid etag format")
	ErrEmptyUpdateMask   = errors.New("update mask must not be empty")
	ErrUnknownField      = errors.New("unknown field in update mask")
	ErrFieldNotForKind   = errors.New("field does not apply to this item kind")
)

// Authentication errors.
var (
	// ErrUnauthorized indicates missing, invalid or expired credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidAPIKeyFormat indicates the key does not match the expected layout.
	ErrInvalidAPIKeyFormat = errors.New("invalid API key format")
)

// Notification errors.
var (
	ErrNotificationTitleRequired   = errors.New("notification title is required")
	ErrNotificationMessageRequired = errors.New("notification message is required")
)
