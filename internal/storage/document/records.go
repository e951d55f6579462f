package document

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/rezkam/dayplan/internal/domain"
)

// Key layout. Tasks and events live under separate prefixes per owner.
const (
	ownersPrefix   = "owners/"
	tasksSegment   = "tasks"
	eventsSegment  = "events"
	profilesPrefix = "profiles/"
	apiKeysPrefix  = "apikeys/"
	docSuffix      = ".json"
)

// encodeSegment makes an arbitrary owner ID safe as a single key segment.
func encodeSegment(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func decodeSegment(s string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("invalid key segment %q: %w", s, err)
	}
	return string(b), nil
}

func ownerPrefix(ownerID string) string {
	return ownersPrefix + encodeSegment(ownerID) + "/"
}

func kindSegment(kind domain.ItemKind) string {
	if kind == domain.KindEvent {
		return eventsSegment
	}
	return tasksSegment
}

func itemKey(ownerID string, kind domain.ItemKind, id string) string {
	return ownerPrefix(ownerID) + kindSegment(kind) + "/" + id + docSuffix
}

func profileKey(ownerID string) string {
	return profilesPrefix + encodeSegment(ownerID) + docSuffix
}

func apiKeyKey(shortToken string) string {
	return apiKeysPrefix + encodeSegment(shortToken) + docSuffix
}

// OwnerFromKey extracts the owner from an item key or path below owners/.
func OwnerFromKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, ownersPrefix)
	if !ok {
		return "", false
	}
	segment, _, _ := strings.Cut(rest, "/")
	if segment == "" {
		return "", false
	}
	owner, err := decodeSegment(segment)
	if err != nil {
		return "", false
	}
	return owner, true
}

// itemRecord is the stored form of domain.Item.
type itemRecord struct {
	ID           string            `json:"id"`
	OwnerID      string            `json:"owner_id"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	Kind         string            `json:"kind"`
	Time         string            `json:"time,omitempty"`
	AllDay       bool              `json:"all_day,omitempty"`
	Date         string            `json:"date,omitempty"`
	StartDate    string            `json:"start_date,omitempty"`
	EndDate      string            `json:"end_date,omitempty"`
	Status       string            `json:"status"`
	PerDayStatus map[string]string `json:"per_day_status,omitempty"`
	FailureMarks []string          `json:"failure_marks,omitempty"`
	Position     int               `json:"position"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Version      int               `json:"version"`
}

func itemToRecord(item *domain.Item) itemRecord {
	rec := itemRecord{
		ID:          item.ID,
		OwnerID:     item.OwnerID,
		Title:       item.Title,
		Description: item.Description,
		Kind:        string(item.Kind),
		Time:        string(item.Time),
		AllDay:      item.AllDay,
		Date:        string(item.Date),
		StartDate:   string(item.StartDate),
		EndDate:     string(item.EndDate),
		Status:      string(item.Status),
		Position:    item.Position,
		CreatedAt:   item.CreatedAt.UTC(),
		UpdatedAt:   item.UpdatedAt.UTC(),
		Version:     item.Version,
	}
	if len(item.PerDayStatus) > 0 {
		rec.PerDayStatus = make(map[string]string, len(item.PerDayStatus))
		for d, s := range item.PerDayStatus {
			rec.PerDayStatus[string(d)] = string(s)
		}
	}
	for d, marked := range item.FailureMarks {
		if marked {
			rec.FailureMarks = append(rec.FailureMarks, string(d))
		}
	}
	return rec
}

func recordToItem(rec itemRecord) domain.Item {
	item := domain.Item{
		ID:          rec.ID,
		OwnerID:     rec.OwnerID,
		Title:       rec.Title,
		Description: rec.Description,
		Kind:        domain.ItemKind(rec.Kind),
		Time:        domain.ClockTime(rec.Time),
		AllDay:      rec.AllDay,
		Date:        domain.Date(rec.Date),
		StartDate:   domain.Date(rec.StartDate),
		EndDate:     domain.Date(rec.EndDate),
		Status:      domain.Status(rec.Status),
		Position:    rec.Position,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		Version:     rec.Version,
	}
	if len(rec.PerDayStatus) > 0 {
		item.PerDayStatus = make(map[domain.Date]domain.Status, len(rec.PerDayStatus))
		for d, s := range rec.PerDayStatus {
			item.PerDayStatus[domain.Date(d)] = domain.Status(s)
		}
	}
	if len(rec.FailureMarks) > 0 {
		item.FailureMarks = make(map[domain.Date]bool, len(rec.FailureMarks))
		for _, d := range rec.FailureMarks {
			item.FailureMarks[domain.Date(d)] = true
		}
	}
	return item
}

type profileRecord struct {
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	BirthDate string    `json:"birth_date,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type apiKeyRecord struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"owner_id"`
	KeyType        string     `json:"key_type"`
	Service        string     `json:"service"`
	Version        string     `json:"version"`
	ShortToken     string     `json:"short_token"`
	LongSecretHash string     `json:"long_secret_hash"`
	Name           string     `json:"name"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}
