package handler

import (
	"maps"
	"slices"
	"time"

	"github.com/rezkam/dayplan/internal/application/planner"
	"github.com/rezkam/dayplan/internal/domain"
	"github.com/rezkam/dayplan/internal/schedule"
)

// ItemDTO is the wire form of an item.
type ItemDTO struct {
	ID           string            `json:"id"`
	Kind         string            `json:"kind"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	Time         string            `json:"time,omitempty"`
	AllDay       bool              `json:"all_day"`
	Date         string            `json:"date,omitempty"`
	StartDate    string            `json:"start_date,omitempty"`
	EndDate      string            `json:"end_date,omitempty"`
	Status       string            `json:"status"`
	PerDayStatus map[string]string `json:"per_day_status,omitempty"`
	FailedDates  []string          `json:"failed_dates,omitempty"`
	Position     int               `json:"position"`
	Etag         string            `json:"etag"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// EntryDTO is one agenda row with its display status for the day.
type EntryDTO struct {
	Item   ItemDTO `json:"item"`
	Status string  `json:"status"`
}

// StatsDTO counts a day's entries by display status.
type StatsDTO struct {
	Date       string `json:"date"`
	Completed  int    `json:"completed"`
	InProgress int    `json:"in_progress"`
	Pending    int    `json:"pending"`
	Failed     int    `json:"failed"`
	Total      int    `json:"total"`
}

// DayViewDTO is the agenda of one date.
type DayViewDTO struct {
	Date    string     `json:"date"`
	Entries []EntryDTO `json:"entries"`
	Stats   StatsDTO   `json:"stats"`
}

// ProfileDTO is the owner's display profile.
type ProfileDTO struct {
	Name      string    `json:"name"`
	BirthDate string    `json:"birth_date,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GreetingDTO is the banner for a date.
type GreetingDTO struct {
	Date     string `json:"date"`
	Birthday bool   `json:"birthday"`
	Age      int    `json:"age,omitempty"`
	Message  string `json:"message"`
	Byline   string `json:"byline,omitempty"`
	// BirthdaysToday names every profile born on Date.
	BirthdaysToday []string `json:"birthdays_today"`
}

// MapItemToDTO converts domain.Item to ItemDTO.
func MapItemToDTO(item *domain.Item) ItemDTO {
	dto := ItemDTO{
		ID:          item.ID,
		Kind:        string(item.Kind),
		Title:       item.Title,
		Description: item.Description,
		Time:        item.Time.String(),
		AllDay:      item.AllDay,
		Date:        item.Date.String(),
		StartDate:   item.StartDate.String(),
		EndDate:     item.EndDate.String(),
		Status:      string(item.Status),
		Position:    item.Position,
		Etag:        item.Etag(),
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}

	if len(item.PerDayStatus) > 0 {
		dto.PerDayStatus = make(map[string]string, len(item.PerDayStatus))
		for d, s := range item.PerDayStatus {
			dto.PerDayStatus[d.String()] = string(s)
		}
	}

	for _, d := range sortedDates(item.FailureMarks) {
		if item.FailureMarks[d] {
			dto.FailedDates = append(dto.FailedDates, d.String())
		}
	}

	return dto
}

// MapItemsToDTO converts a collection, keeping its order.
func MapItemsToDTO(items []domain.Item) []ItemDTO {
	out := make([]ItemDTO, len(items))
	for i := range items {
		out[i] = MapItemToDTO(&items[i])
	}
	return out
}

// MapStatsToDTO converts schedule.DayStats to StatsDTO.
func MapStatsToDTO(s schedule.DayStats) StatsDTO {
	return StatsDTO{
		Date:       s.Date.String(),
		Completed:  s.Completed,
		InProgress: s.InProgress,
		Pending:    s.Pending,
		Failed:     s.Failed,
		Total:      s.Total,
	}
}

// MapDayViewToDTO converts a planner.DayView to DayViewDTO.
func MapDayViewToDTO(view *planner.DayView) DayViewDTO {
	entries := make([]EntryDTO, len(view.Entries))
	for i, e := range view.Entries {
		entries[i] = EntryDTO{Item: MapItemToDTO(&e.Item), Status: string(e.Status)}
	}
	return DayViewDTO{
		Date:    view.Date.String(),
		Entries: entries,
		Stats:   MapStatsToDTO(view.Stats),
	}
}

// MapProfileToDTO converts domain.Profile to ProfileDTO.
func MapProfileToDTO(p *domain.Profile) ProfileDTO {
	return ProfileDTO{
		Name:      p.Name,
		BirthDate: p.BirthDate.String(),
		UpdatedAt: p.UpdatedAt,
	}
}

// MapGreetingToDTO converts domain.Greeting to GreetingDTO.
func MapGreetingToDTO(date domain.Date, g domain.Greeting, birthdays []string) GreetingDTO {
	if birthdays == nil {
		birthdays = []string{}
	}
	return GreetingDTO{
		Date:           date.String(),
		Birthday:       g.Birthday,
		Age:            g.Age,
		Message:        g.Message,
		Byline:         g.Byline,
		BirthdaysToday: birthdays,
	}
}

// sortedDates returns the keys of a per-date map in calendar order.
func sortedDates[V any](m map[domain.Date]V) []domain.Date {
	return slices.Sorted(maps.Keys(m))
}
