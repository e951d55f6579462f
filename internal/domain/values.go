package domain

// ItemKind distinguishes single-day tasks from multi-day events.
// Value object - immutable string enum.
type ItemKind string

const (
	KindTask  ItemKind = "task"
	KindEvent ItemKind = "event"
)

// Status represents the state of an item on a calendar date.
// Value object - immutable string enum.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// AllStatuses lists every status in display order.
var AllStatuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusFailed}
