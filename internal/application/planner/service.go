package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rezkam/dayplan/internal/domain"
	"github.com/rezkam/dayplan/internal/schedule"
)

// Default configuration values.
const (
	DefaultMaxRangeDays = 62
)

// Config holds configuration for the Service.
type Config struct {
	// Location interprets task dates and times for lapse detection.
	Location *time.Location
	// MaxRangeDays caps range queries (stats, export).
	MaxRangeDays int
	// Now returns the current instant. Defaults to time.Now.
	Now func() time.Time
}

// NewItem holds the fields of an item to create.
type NewItem struct {
	Kind        domain.ItemKind
	Title       string
	Description string
	Time        domain.ClockTime
	AllDay      bool
	Date        domain.Date
	StartDate   domain.Date
	EndDate     domain.Date
}

// DayView is the agenda of one date with its statistics.
type DayView struct {
	Date    domain.Date
	Entries []schedule.Entry
	Stats   schedule.DayStats
}

// Service provides the planner's business operations.
//
// Every operation takes the owner explicitly. Mutations work on a copy and
// only publish or notify once the repository accepted the write, so a failed
// write leaves both the store and subscribers as they were.
type Service struct {
	repo      Repository
	publisher Publisher
	notifier  Notifier
	config    Config
	metrics   serviceMetrics
}

// NewService creates a new planner service.
// publisher and notifier may be nil.
// Applies application defaults for zero or invalid config values.
func NewService(repo Repository, publisher Publisher, notifier Notifier, config Config) *Service {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.MaxRangeDays <= 0 {
		config.MaxRangeDays = DefaultMaxRangeDays
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Service{
		repo:      repo,
		publisher: publisher,
		notifier:  notifier,
		config:    config,
		metrics:   newServiceMetrics(),
	}
}

// Location returns the time zone used for dates and lapse detection.
func (s *Service) Location() *time.Location {
	return s.config.Location
}

// Today returns the current date in the service location.
func (s *Service) Today() domain.Date {
	return domain.DateOf(s.config.Now().In(s.config.Location))
}

// CreateItem validates and stores a new task or event.
func (s *Service) CreateItem(ctx context.Context, ownerID string, in NewItem) (*domain.Item, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}

	title, err := domain.NewTitle(in.Title)
	if err != nil {
		return nil, err
	}

	idObj, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate id: %w", err)
	}

	now := s.config.Now().UTC()
	item := &domain.Item{
		ID:          idObj.String(),
		OwnerID:     ownerID,
		Title:       title.String(),
		Description: strings.TrimSpace(in.Description),
		Kind:        in.Kind,
		Time:        in.Time,
		AllDay:      in.AllDay,
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Kind == domain.KindEvent {
		item.StartDate, item.EndDate = in.StartDate, in.EndDate
	} else {
		item.Date = in.Date
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	s.metrics.itemCreated(ctx, created.Kind)
	s.changed(ctx, ownerID, fmt.Sprintf("New %s added", created.Kind), created.Title)
	return created, nil
}

// GetItem retrieves one of the owner's items.
func (s *Service) GetItem(ctx context.Context, ownerID, id string) (*domain.Item, error) {
	if id == "" {
		return nil, domain.ErrItemNotFound
	}
	return s.repo.FindItem(ctx, ownerID, id)
}

// ListItems returns the owner's full collection in manual order.
func (s *Service) ListItems(ctx context.Context, ownerID string) ([]domain.Item, error) {
	items, err := s.repo.ListItems(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// UpdateItem edits the masked fields of an item.
func (s *Service) UpdateItem(ctx context.Context, ownerID string, params domain.UpdateItemParams) (*domain.Item, error) {
	current, err := s.load(ctx, ownerID, params.ItemID, params.Etag)
	if err != nil {
		return nil, err
	}
	if err := params.ValidateMask(current.Kind); err != nil {
		return nil, err
	}

	updated := current.Clone()
	params.Apply(&updated)
	title, err := domain.NewTitle(updated.Title)
	if err != nil {
		return nil, err
	}
	updated.Title = title.String()
	updated.Description = strings.TrimSpace(updated.Description)
	updated.TrimToSchedule()

	// A task moved to another date starts over, same as Reschedule.
	moved := updated.IsTask() && updated.Date != current.Date
	if moved {
		if updated, err = schedule.Reschedule(updated, updated.Date, updated.Time); err != nil {
			return nil, err
		}
	}

	if err := updated.Validate(); err != nil {
		return nil, err
	}

	saved, err := s.save(ctx, &updated)
	if err != nil {
		return nil, err
	}
	if moved {
		s.metrics.taskRescheduled(ctx)
	}
	s.changed(ctx, ownerID, fmt.Sprintf("%s updated", kindLabel(saved.Kind)), saved.Title)
	return saved, nil
}

// DeleteItem removes an item permanently.
func (s *Service) DeleteItem(ctx context.Context, ownerID, id string) error {
	if id == "" {
		return domain.ErrItemNotFound
	}
	if err := s.repo.DeleteItem(ctx, ownerID, id); err != nil {
		return err
	}
	s.publish(ownerID)
	return nil
}

// ChangeStatus sets the status of an item for date.
// A task accepts only its own date or none; events change only that day.
func (s *Service) ChangeStatus(ctx context.Context, ownerID, id string, date domain.Date, status domain.Status, etag *string) (*domain.Item, error) {
	current, err := s.load(ctx, ownerID, id, etag)
	if err != nil {
		return nil, err
	}
	if current.IsTask() {
		if date.IsZero() {
			date = current.Date
		}
		if date != current.Date {
			return nil, fmt.Errorf("%w: task is scheduled for %s", domain.ErrDateOutOfRange, current.Date)
		}
	}
	if date.IsZero() {
		return nil, domain.ErrDateRequired
	}

	if err := schedule.CheckTransition(*current, date, status); err != nil {
		return nil, err
	}
	updated, err := schedule.ApplyStatusChange(*current, date, status)
	if err != nil {
		return nil, err
	}

	saved, err := s.save(ctx, &updated)
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "item status changed",
		slog.String("item_id", saved.ID),
		slog.String("date", date.String()),
		slog.String("status", string(status)))

	s.metrics.statusChanged(ctx, saved.Kind, status)
	s.changed(ctx, ownerID, fmt.Sprintf("%s marked %s", kindLabel(saved.Kind), statusLabel(status)), saved.Title)
	return saved, nil
}

// Reschedule moves a task to a new date as a fresh pending task.
func (s *Service) Reschedule(ctx context.Context, ownerID, id string, date domain.Date, clock domain.ClockTime, etag *string) (*domain.Item, error) {
	current, err := s.load(ctx, ownerID, id, etag)
	if err != nil {
		return nil, err
	}

	updated, err := schedule.Reschedule(*current, date, clock)
	if err != nil {
		return nil, err
	}

	saved, err := s.save(ctx, &updated)
	if err != nil {
		return nil, err
	}
	s.metrics.taskRescheduled(ctx)
	s.changed(ctx, ownerID, "Task rescheduled", fmt.Sprintf("%s moved to %s", saved.Title, saved.Date))
	return saved, nil
}

// Agenda returns the ordered day view for date with display statuses.
func (s *Service) Agenda(ctx context.Context, ownerID string, date domain.Date) (*DayView, error) {
	items, err := s.ListItems(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	entries := schedule.Agenda(items, date, s.config.Now(), s.config.Location)
	return &DayView{
		Date:    date,
		Entries: entries,
		Stats:   schedule.Summarize(date, entries),
	}, nil
}

// Reorder applies a drag reorder of date's agenda and persists positions.
func (s *Service) Reorder(ctx context.Context, ownerID string, date domain.Date, orderedIDs []string) ([]domain.Item, error) {
	items, err := s.ListItems(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	reordered, err := schedule.Reorder(items, date, orderedIDs)
	if err != nil {
		return nil, err
	}

	positions := make(map[string]int, len(reordered))
	for _, item := range reordered {
		positions[item.ID] = item.Position
	}
	if err := s.repo.SavePositions(ctx, ownerID, positions); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	s.publish(ownerID)
	return reordered, nil
}

// Stats returns per-day statistics for [from, to].
func (s *Service) Stats(ctx context.Context, ownerID string, from, to domain.Date) ([]schedule.DayStats, error) {
	if err := s.checkRange(from, to); err != nil {
		return nil, err
	}
	items, err := s.ListItems(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return schedule.RangeStats(items, from, to, s.config.Now(), s.config.Location), nil
}

// ItemsBetween returns the items occurring on any date in [from, to].
func (s *Service) ItemsBetween(ctx context.Context, ownerID string, from, to domain.Date) ([]domain.Item, error) {
	if err := s.checkRange(from, to); err != nil {
		return nil, err
	}
	items, err := s.ListItems(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if !item.LastDate().Before(from) && !item.FirstDate().After(to) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *Service) checkRange(from, to domain.Date) error {
	if from.IsZero() || to.IsZero() {
		return domain.ErrDateRequired
	}
	if to.Before(from) {
		return domain.ErrInvalidDateRange
	}
	if from.DaysUntil(to)+1 > s.config.MaxRangeDays {
		return fmt.Errorf("%w: at most %d days", domain.ErrRangeTooLarge, s.config.MaxRangeDays)
	}
	return nil
}

// load fetches an item and checks the caller's etag against it.
func (s *Service) load(ctx context.Context, ownerID, id string, etag *string) (*domain.Item, error) {
	if id == "" {
		return nil, domain.ErrItemNotFound
	}
	current, err := s.repo.FindItem(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if etag != nil {
		version, err := ParseEtag(*etag)
		if err != nil {
			return nil, err
		}
		if version != current.Version {
			return nil, fmt.Errorf("%w: expected version %d, current version %d",
				domain.ErrVersionConflict, version, current.Version)
		}
	}
	return current, nil
}

func (s *Service) save(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	item.UpdatedAt = s.config.Now().UTC()
	saved, err := s.repo.UpdateItem(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return saved, nil
}

func (s *Service) publish(ownerID string) {
	if s.publisher != nil {
		s.publisher.Publish(ownerID)
	}
}

// changed publishes the new snapshot and relays a notification.
func (s *Service) changed(ctx context.Context, ownerID, title, message string) {
	s.publish(ownerID)
	if s.notifier == nil {
		return
	}
	n, err := domain.NewNotification(ownerID, title, message)
	if err != nil {
		slog.WarnContext(ctx, "skipping notification", slog.String("error", err.Error()))
		return
	}
	s.notifier.Enqueue(ctx, n)
}

// ParseEtag extracts the version from an etag such as `"3"`, `W/"3"` or `3`.
func ParseEtag(etag string) (int, error) {
	etag = strings.TrimPrefix(strings.TrimSpace(etag), "W/")
	etag = strings.Trim(etag, `"`)
	version, err := strconv.Atoi(etag)
	if err != nil || version < 1 {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidEtagFormat, etag)
	}
	return version, nil
}

func kindLabel(kind domain.ItemKind) string {
	if kind == domain.KindEvent {
		return "Event"
	}
	return "Task"
}

func statusLabel(status domain.Status) string {
	return strings.ReplaceAll(string(status), "_", " ")
}
