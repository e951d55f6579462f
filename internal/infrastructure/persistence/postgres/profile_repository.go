package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rezkam/dayplan/internal/domain"
)

// === Profile Repository Implementation ===

// FindProfile returns the owner's saved profile.
func (s *Store) FindProfile(ctx context.Context, ownerID string) (*domain.Profile, error) {
	var (
		p                    domain.Profile
		birthDate            pgtype.Date
		createdAt, updatedAt pgtype.Timestamptz
	)
	err := s.db.QueryRow(ctx, `
		SELECT owner_id, name, birth_date, created_at, updated_at
		FROM profiles WHERE owner_id = $1`, ownerID).Scan(
		&p.OwnerID, &p.Name, &birthDate, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	p.BirthDate = pgtypeToDate(birthDate)
	p.CreatedAt = pgtypeToTime(createdAt)
	p.UpdatedAt = pgtypeToTime(updatedAt)
	return &p, nil
}

// SaveProfile inserts or replaces the owner's profile, keeping the
// original created_at.
func (s *Store) SaveProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	birthDate, err := dateToPgtype(p.BirthDate)
	if err != nil {
		return nil, err
	}

	var createdAt pgtype.Timestamptz
	err = s.db.QueryRow(ctx, `
		INSERT INTO profiles (owner_id, name, birth_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id) DO UPDATE SET
			name = EXCLUDED.name,
			birth_date = EXCLUDED.birth_date,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at`,
		p.OwnerID, p.Name, birthDate, timeToPgtype(p.CreatedAt), timeToPgtype(p.UpdatedAt)).Scan(&createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	saved := *p
	saved.CreatedAt = pgtypeToTime(createdAt)
	return &saved, nil
}

// ListProfilesWithBirthday returns the profiles whose birth date falls on
// month and day.
func (s *Store) ListProfilesWithBirthday(ctx context.Context, month time.Month, day int) ([]domain.Profile, error) {
	rows, err := s.db.Query(ctx, `
		SELECT owner_id, name, birth_date, created_at, updated_at
		FROM profiles
		WHERE birth_date IS NOT NULL
			AND EXTRACT(MONTH FROM birth_date) = $1
			AND EXTRACT(DAY FROM birth_date) = $2
		ORDER BY name, owner_id`, int(month), day)
	if err != nil {
		return nil, fmt.Errorf("failed to list birthdays: %w", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var (
			p                    domain.Profile
			birthDate            pgtype.Date
			createdAt, updatedAt pgtype.Timestamptz
		)
		if err := rows.Scan(&p.OwnerID, &p.Name, &birthDate, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		p.BirthDate = pgtypeToDate(birthDate)
		p.CreatedAt = pgtypeToTime(createdAt)
		p.UpdatedAt = pgtypeToTime(updatedAt)
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
