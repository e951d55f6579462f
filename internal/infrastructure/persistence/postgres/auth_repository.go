package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rezkam/dayplan/internal/domain"
)

// === Auth Repository Implementation ===

// FindByShortToken retrieves an API key by its short token for validation.
func (s *Store) FindByShortToken(ctx context.Context, shortToken string) (*domain.APIKey, error) {
	var (
		id                   pgtype.UUID
		createdAt            pgtype.Timestamptz
		lastUsedAt, expireAt pgtype.Timestamptz
		key                  domain.APIKey
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, owner_id, key_type, service, version, short_token, long_secret_hash,
			name, is_active, created_at, last_used_at, expires_at
		FROM api_keys WHERE short_token = $1`, shortToken).Scan(
		&id, &key.OwnerID, &key.KeyType, &key.Service, &key.Version, &key.ShortToken,
		&key.LongSecretHash, &key.Name, &key.IsActive, &createdAt, &lastUsedAt, &expireAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: API key", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}

	key.ID = pgtypeToUUIDString(id)
	key.CreatedAt = pgtypeToTime(createdAt)
	key.LastUsedAt = pgtypeToTimePtr(lastUsedAt)
	key.ExpiresAt = pgtypeToTimePtr(expireAt)
	return &key, nil
}

// UpdateLastUsed only moves last_used_at forward. An earlier timestamp is
// an idempotent success; an unknown key is ErrNotFound.
func (s *Store) UpdateLastUsed(ctx context.Context, keyID string, timestamp time.Time) error {
	id, err := uuid.Parse(keyID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}
	pgID := uuidToPgtype(id)

	tag, err := s.db.Exec(ctx, `
		UPDATE api_keys SET last_used_at = $2
		WHERE id = $1 AND (last_used_at IS NULL OR last_used_at < $2)`,
		pgID, timeToPgtype(timestamp))
	if err != nil {
		return fmt.Errorf("failed to update last used: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Either the key does not exist or the timestamp was not later.
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM api_keys WHERE id = $1)`, pgID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check key existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: API key", domain.ErrNotFound)
	}
	return nil
}

// Create stores a new API key.
func (s *Store) Create(ctx context.Context, key *domain.APIKey) error {
	id, err := uuid.Parse(key.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO api_keys (id, owner_id, key_type, service, version, short_token,
			long_secret_hash, name, is_active, created_at, last_used_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		uuidToPgtype(id), key.OwnerID, key.KeyType, key.Service, key.Version, key.ShortToken,
		key.LongSecretHash, key.Name, key.IsActive, timeToPgtype(key.CreatedAt),
		timePtrToPgtype(key.LastUsedAt), timePtrToPgtype(key.ExpiresAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: API key", domain.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create API key: %w", err)
	}
	return nil
}
