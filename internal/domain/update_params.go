package domain

// Field names for Item update masks.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldTime        = "time"
	FieldAllDay      = "all_day"
	FieldDate        = "date"
	FieldStartDate   = "start_date"
	FieldEndDate     = "end_date"
)

// taskFields and eventFields list the mask entries valid for each kind.
var (
	taskFields = map[string]bool{
		FieldTitle: true, FieldDescription: true, FieldTime: true, FieldDate: true,
	}
	eventFields = map[string]bool{
		FieldTitle: true, FieldDescription: true, FieldTime: true, FieldAllDay: true,
		FieldStartDate: true, FieldEndDate: true,
	}
)

// UpdateItemParams contains parameters for editing an item with field mask support.
// Status and schedule moves go through dedicated operations instead.
type UpdateItemParams struct {
	ItemID string

	// Etag for optimistic concurrency control.
	// If provided and doesn't match current version, returns ErrVersionConflict.
	Etag *string

	// UpdateMask specifies which fields to update.
	// Only fields in this list will be modified.
	UpdateMask []string

	// Field values (only applied if field is in UpdateMask)
	Title       *string
	Description *string
	Time        *ClockTime
	AllDay      *bool
	Date        *Date
	StartDate   *Date
	EndDate     *Date
}

// ValidateMask checks that every masked field is known and applies to kind.
func (p UpdateItemParams) ValidateMask(kind ItemKind) error {
	if len(p.UpdateMask) == 0 {
		return ErrEmptyUpdateMask
	}
	allowed := taskFields
	if kind == KindEvent {
		allowed = eventFields
	}
	for _, field := range p.UpdateMask {
		if !taskFields[field] && !eventFields[field] {
			return ErrUnknownField
		}
		if !allowed[field] {
			return ErrFieldNotForKind
		}
	}
	return nil
}

// Apply copies masked values onto item. Call ValidateMask first; the result
// still needs Item.Validate.
func (p UpdateItemParams) Apply(item *Item) {
	for _, field := range p.UpdateMask {
		switch field {
		case FieldTitle:
			if p.Title != nil {
				item.Title = *p.Title
			}
		case FieldDescription:
			item.Description = deref(p.Description)
		case FieldTime:
			item.Time = deref(p.Time)
		case FieldAllDay:
			item.AllDay = deref(p.AllDay)
			if item.AllDay {
				item.Time = ""
			}
		case FieldDate:
			item.Date = deref(p.Date)
		case FieldStartDate:
			item.StartDate = deref(p.StartDate)
		case FieldEndDate:
			item.EndDate = deref(p.EndDate)
		}
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
