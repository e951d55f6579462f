package postgres

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rezkam/dayplan/internal/domain"
)

// === pgtype Conversion Helpers ===

func uuidToPgtype(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// pgtypeToUUIDString returns "" for NULL.
func pgtypeToUUIDString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}

func timeToPgtype(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

// pgtypeToTime returns the zero time for NULL, otherwise UTC.
func pgtypeToTime(t pgtype.Timestamptz) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

func pgtypeToTimePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

// timePtrToPgtype maps nil to NULL.
func timePtrToPgtype(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

// dateToPgtype maps the zero Date to NULL.
func dateToPgtype(d domain.Date) (pgtype.Date, error) {
	if d.IsZero() {
		return pgtype.Date{}, nil
	}
	if _, err := domain.ParseDate(string(d)); err != nil {
		return pgtype.Date{}, err
	}
	return pgtype.Date{Time: d.In(time.UTC), Valid: true}, nil
}

func pgtypeToDate(d pgtype.Date) domain.Date {
	if !d.Valid {
		return ""
	}
	return domain.DateOf(d.Time)
}

// === Item Conversions ===

// itemRow is the column set of the items table in select order.
type itemRow struct {
	ID           pgtype.UUID
	OwnerID      string
	Kind         string
	Title        string
	Description  string
	StartTime    string
	AllDay       bool
	TaskDate     pgtype.Date
	StartDate    pgtype.Date
	EndDate      pgtype.Date
	Status       string
	PerDayStatus []byte
	FailureMarks []byte
	Position     int32
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
	Version      int32
}

const itemColumns = `id, owner_id, kind, title, description, start_time, all_day,
	task_date, start_date, end_date, status, per_day_status, failure_marks,
	position, created_at, updated_at, version`

func (r *itemRow) scanTargets() []any {
	return []any{
		&r.ID, &r.OwnerID, &r.Kind, &r.Title, &r.Description, &r.StartTime, &r.AllDay,
		&r.TaskDate, &r.StartDate, &r.EndDate, &r.Status, &r.PerDayStatus, &r.FailureMarks,
		&r.Position, &r.CreatedAt, &r.UpdatedAt, &r.Version,
	}
}

func (r *itemRow) toDomain() (domain.Item, error) {
	item := domain.Item{
		ID:          pgtypeToUUIDString(r.ID),
		OwnerID:     r.OwnerID,
		Kind:        domain.ItemKind(r.Kind),
		Title:       r.Title,
		Description: r.Description,
		Time:        domain.ClockTime(r.StartTime),
		AllDay:      r.AllDay,
		Date:        pgtypeToDate(r.TaskDate),
		StartDate:   pgtypeToDate(r.StartDate),
		EndDate:     pgtypeToDate(r.EndDate),
		Status:      domain.Status(r.Status),
		Position:    int(r.Position),
		CreatedAt:   pgtypeToTime(r.CreatedAt),
		UpdatedAt:   pgtypeToTime(r.UpdatedAt),
		Version:     int(r.Version),
	}

	var perDay map[string]string
	if err := json.Unmarshal(r.PerDayStatus, &perDay); err != nil {
		return item, fmt.Errorf("failed to decode per_day_status: %w", err)
	}
	if len(perDay) > 0 {
		item.PerDayStatus = make(map[domain.Date]domain.Status, len(perDay))
		for d, st := range perDay {
			item.PerDayStatus[domain.Date(d)] = domain.Status(st)
		}
	}

	var marks []string
	if err := json.Unmarshal(r.FailureMarks, &marks); err != nil {
		return item, fmt.Errorf("failed to decode failure_marks: %w", err)
	}
	if len(marks) > 0 {
		item.FailureMarks = make(map[domain.Date]bool, len(marks))
		for _, d := range marks {
			item.FailureMarks[domain.Date(d)] = true
		}
	}
	return item, nil
}

// itemParams are the values written for an item, in itemColumns order
// without position, created_at and version.
type itemParams struct {
	ID           pgtype.UUID
	TaskDate     pgtype.Date
	StartDate    pgtype.Date
	EndDate      pgtype.Date
	PerDayStatus []byte
	FailureMarks []byte
}

func domainItemToParams(item *domain.Item) (itemParams, error) {
	var p itemParams

	id, err := uuid.Parse(item.ID)
	if err != nil {
		return p, fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}
	p.ID = uuidToPgtype(id)

	if p.TaskDate, err = dateToPgtype(item.Date); err != nil {
		return p, err
	}
	if p.StartDate, err = dateToPgtype(item.StartDate); err != nil {
		return p, err
	}
	if p.EndDate, err = dateToPgtype(item.EndDate); err != nil {
		return p, err
	}

	perDay := make(map[string]string, len(item.PerDayStatus))
	for d, st := range item.PerDayStatus {
		perDay[string(d)] = string(st)
	}
	if p.PerDayStatus, err = json.Marshal(perDay); err != nil {
		return p, fmt.Errorf("failed to encode per_day_status: %w", err)
	}

	marks := make([]string, 0, len(item.FailureMarks))
	for _, d := range slices.Sorted(maps.Keys(item.FailureMarks)) {
		if item.FailureMarks[d] {
			marks = append(marks, string(d))
		}
	}
	if p.FailureMarks, err = json.Marshal(marks); err != nil {
		return p, fmt.Errorf("failed to encode failure_marks: %w", err)
	}
	return p, nil
}
