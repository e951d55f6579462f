package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rezkam/dayplan/internal/domain"
)

// Repository defines storage operations for owner profiles.
type Repository interface {
	// FindProfile returns domain.ErrProfileNotFound when nothing was saved yet.
	FindProfile(ctx context.Context, ownerID string) (*domain.Profile, error)

	// SaveProfile inserts or replaces the owner's profile.
	SaveProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error)

	// ListProfilesWithBirthday returns every profile born on month and day
	// of any year, ordered by name.
	ListProfilesWithBirthday(ctx context.Context, month time.Month, day int) ([]domain.Profile, error)
}

// Service manages the display profile supplied alongside the owner identity.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a profile service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// GetProfile returns the owner's profile.
func (s *Service) GetProfile(ctx context.Context, ownerID string) (*domain.Profile, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	return s.repo.FindProfile(ctx, ownerID)
}

// UpdateProfile validates and saves the display name and optional birth date.
func (s *Service) UpdateProfile(ctx context.Context, ownerID, name string, birthDate domain.Date) (*domain.Profile, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	displayName, err := domain.NewDisplayName(name)
	if err != nil {
		return nil, err
	}
	if !birthDate.IsZero() {
		if _, err := domain.ParseDate(string(birthDate)); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	profile := &domain.Profile{
		OwnerID:   ownerID,
		Name:      displayName.String(),
		BirthDate: birthDate,
		CreatedAt: now,
		UpdatedAt: now,
	}

	existing, err := s.repo.FindProfile(ctx, ownerID)
	switch {
	case err == nil:
		profile.CreatedAt = existing.CreatedAt
	case !errors.Is(err, domain.ErrProfileNotFound):
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	saved, err := s.repo.SaveProfile(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return saved, nil
}

// Greeting returns the banner for date: a birthday message on the owner's
// birthday, the default quote otherwise or when no profile exists.
func (s *Service) Greeting(ctx context.Context, ownerID string, date domain.Date) (domain.Greeting, error) {
	profile, err := s.repo.FindProfile(ctx, ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return domain.GreetingFor(nil, date), nil
		}
		return domain.Greeting{}, fmt.Errorf("failed to load profile: %w", err)
	}
	return domain.GreetingFor(profile, date), nil
}

// BirthdaysOn returns the names of everyone whose birthday falls on date.
func (s *Service) BirthdaysOn(ctx context.Context, date domain.Date) ([]string, error) {
	parsed, err := domain.ParseDate(string(date))
	if err != nil {
		return nil, err
	}
	day := parsed.In(time.UTC)
	profiles, err := s.repo.ListProfilesWithBirthday(ctx, day.Month(), day.Day())
	if err != nil {
		return nil, fmt.Errorf("failed to list birthdays: %w", err)
	}
	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.Name)
	}
	return names, nil
}
