package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rezkam/dayplan/internal/application/auth"
	"github.com/rezkam/dayplan/internal/application/planner"
	"github.com/rezkam/dayplan/internal/application/profile"
	"github.com/rezkam/dayplan/internal/domain"
)

// Timestamps are stored as fixed-width UTC text so they sort correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store provides the SQLite implementation of the planner, profile and
// auth repositories.
type Store struct {
	db *sql.DB
}

var (
	_ planner.Repository = (*Store)(nil)
	_ profile.Repository = (*Store)(nil)
	_ auth.Repository    = (*Store)(nil)
)

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// inTx runs fn in a transaction, rolling back when it fails.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w (rollback error: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

const itemColumns = `id, owner_id, kind, title, description, start_time, all_day,
	task_date, start_date, end_date, status, per_day_status, failure_marks,
	position, created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (domain.Item, error) {
	var (
		item                 domain.Item
		kind, clock, status  string
		taskDate, start, end string
		perDay, marks        string
		createdAt, updatedAt string
	)
	err := row.Scan(&item.ID, &item.OwnerID, &kind, &item.Title, &item.Description,
		&clock, &item.AllDay, &taskDate, &start, &end, &status, &perDay, &marks,
		&item.Position, &createdAt, &updatedAt, &item.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return item, domain.ErrItemNotFound
		}
		return item, fmt.Errorf("failed to scan item: %w", err)
	}

	item.Kind = domain.ItemKind(kind)
	item.Time = domain.ClockTime(clock)
	item.Status = domain.Status(status)
	item.Date, item.StartDate, item.EndDate = domain.Date(taskDate), domain.Date(start), domain.Date(end)

	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return item, err
	}
	if item.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return item, err
	}

	var perDayMap map[domain.Date]domain.Status
	if err := json.Unmarshal([]byte(perDay), &perDayMap); err != nil {
		return item, fmt.Errorf("failed to decode per_day_status: %w", err)
	}
	if len(perDayMap) > 0 {
		item.PerDayStatus = perDayMap
	}

	var markList []domain.Date
	if err := json.Unmarshal([]byte(marks), &markList); err != nil {
		return item, fmt.Errorf("failed to decode failure_marks: %w", err)
	}
	if len(markList) > 0 {
		item.FailureMarks = make(map[domain.Date]bool, len(markList))
		for _, d := range markList {
			item.FailureMarks[d] = true
		}
	}
	return item, nil
}

func encodeDayState(item *domain.Item) (perDay, marks string, err error) {
	perDayMap := item.PerDayStatus
	if perDayMap == nil {
		perDayMap = map[domain.Date]domain.Status{}
	}
	perDayJSON, err := json.Marshal(perDayMap)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode per_day_status: %w", err)
	}

	markList := make([]domain.Date, 0, len(item.FailureMarks))
	for _, d := range slices.Sorted(maps.Keys(item.FailureMarks)) {
		if item.FailureMarks[d] {
			markList = append(markList, d)
		}
	}
	marksJSON, err := json.Marshal(markList)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode failure_marks: %w", err)
	}
	return string(perDayJSON), string(marksJSON), nil
}

// CreateItem inserts the item after the owner's last position.
func (s *Store) CreateItem(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	perDay, marks, err := encodeDayState(item)
	if err != nil {
		return nil, err
	}

	var created domain.Item
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO items (id, owner_id, kind, title, description, start_time, all_day,
				task_date, start_date, end_date, status, per_day_status, failure_marks,
				position, created_at, updated_at, version)
			VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, ?10, ?11, ?12, ?13,
				(SELECT COALESCE(MAX(position) + 1, 0) FROM items WHERE owner_id = ?2),
				?14, ?15, 1)
			RETURNING `+itemColumns,
			item.ID, item.OwnerID, string(item.Kind), item.Title, item.Description,
			string(item.Time), item.AllDay, string(item.Date), string(item.StartDate),
			string(item.EndDate), string(item.Status), perDay, marks,
			formatTime(item.CreatedAt), formatTime(item.UpdatedAt))

		var err error
		created, err = scanItem(row)
		if err != nil && isUniqueViolation(err) {
			return fmt.Errorf("%w: item %s", domain.ErrAlreadyExists, item.ID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// FindItem retrieves one of the owner's items.
func (s *Store) FindItem(ctx context.Context, ownerID, id string) (*domain.Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ? AND owner_id = ?`, id, ownerID)
	item, err := scanItem(row)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem replaces the item when its version matches the stored one.
func (s *Store) UpdateItem(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	perDay, marks, err := encodeDayState(item)
	if err != nil {
		return nil, err
	}

	var updated domain.Item
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var current int
		err := tx.QueryRowContext(ctx,
			`SELECT version FROM items WHERE id = ? AND owner_id = ?`,
			item.ID, item.OwnerID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrItemNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check item version: %w", err)
		}
		if current != item.Version {
			return fmt.Errorf("%w: expected version %d, current version %d",
				domain.ErrVersionConflict, item.Version, current)
		}

		row := tx.QueryRowContext(ctx, `
			UPDATE items SET
				kind = ?3, title = ?4, description = ?5, start_time = ?6, all_day = ?7,
				task_date = ?8, start_date = ?9, end_date = ?10, status = ?11,
				per_day_status = ?12, failure_marks = ?13, updated_at = ?14,
				version = version + 1
			WHERE id = ?1 AND owner_id = ?2
			RETURNING `+itemColumns,
			item.ID, item.OwnerID, string(item.Kind), item.Title, item.Description,
			string(item.Time), item.AllDay, string(item.Date), string(item.StartDate),
			string(item.EndDate), string(item.Status), perDay, marks,
			formatTime(item.UpdatedAt))
		updated, err = scanItem(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteItem removes an item.
func (s *Store) DeleteItem(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

// ListItems returns the owner's items in position order.
func (s *Store) ListItems(ctx context.Context, ownerID string) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE owner_id = ? ORDER BY position, created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := []domain.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}

// SavePositions writes all positions in one transaction.
func (s *Store) SavePositions(ctx context.Context, ownerID string, positions map[string]int) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE items SET position = ? WHERE id = ? AND owner_id = ?`)
		if err != nil {
			return fmt.Errorf("failed to prepare position update: %w", err)
		}
		defer stmt.Close()

		for id, position := range positions {
			if _, err := stmt.ExecContext(ctx, position, id, ownerID); err != nil {
				return fmt.Errorf("failed to save position: %w", err)
			}
		}
		return nil
	})
}

// ListOwners returns every owner with at least one item.
func (s *Store) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT owner_id FROM items ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("failed to scan owner: %w", err)
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

// FindProfile returns the owner's saved profile.
func (s *Store) FindProfile(ctx context.Context, ownerID string) (*domain.Profile, error) {
	var (
		p                    domain.Profile
		birthDate            string
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id, name, birth_date, created_at, updated_at FROM profiles WHERE owner_id = ?`,
		ownerID).Scan(&p.OwnerID, &p.Name, &birthDate, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	p.BirthDate = domain.Date(birthDate)
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveProfile inserts or replaces the owner's profile, keeping the
// original created_at.
func (s *Store) SaveProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO profiles (owner_id, name, birth_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET
			name = excluded.name,
			birth_date = excluded.birth_date,
			updated_at = excluded.updated_at
		RETURNING created_at`,
		p.OwnerID, p.Name, string(p.BirthDate), formatTime(p.CreatedAt), formatTime(p.UpdatedAt)).Scan(&createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	saved := *p
	if saved.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &saved, nil
}

// ListProfilesWithBirthday returns the profiles whose birth date falls on
// month and day. Birth dates are stored as YYYY-MM-DD text.
func (s *Store) ListProfilesWithBirthday(ctx context.Context, month time.Month, day int) ([]domain.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner_id, name, birth_date, created_at, updated_at
		FROM profiles
		WHERE birth_date != '' AND substr(birth_date, 6, 5) = ?
		ORDER BY name, owner_id`, fmt.Sprintf("%02d-%02d", int(month), day))
	if err != nil {
		return nil, fmt.Errorf("failed to list birthdays: %w", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var (
			p                    domain.Profile
			birthDate            string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&p.OwnerID, &p.Name, &birthDate, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		p.BirthDate = domain.Date(birthDate)
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// FindByShortToken retrieves an API key by its short token.
func (s *Store) FindByShortToken(ctx context.Context, shortToken string) (*domain.APIKey, error) {
	var (
		key                  domain.APIKey
		createdAt            string
		lastUsedAt, expireAt sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, key_type, service, version, short_token, long_secret_hash,
			name, is_active, created_at, last_used_at, expires_at
		FROM api_keys WHERE short_token = ?`, shortToken).Scan(
		&key.ID, &key.OwnerID, &key.KeyType, &key.Service, &key.Version, &key.ShortToken,
		&key.LongSecretHash, &key.Name, &key.IsActive, &createdAt, &lastUsedAt, &expireAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: API key", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}

	if key.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if key.LastUsedAt, err = parseTimePtr(lastUsedAt); err != nil {
		return nil, err
	}
	if key.ExpiresAt, err = parseTimePtr(expireAt); err != nil {
		return nil, err
	}
	return &key, nil
}

// UpdateLastUsed only moves last_used_at forward.
func (s *Store) UpdateLastUsed(ctx context.Context, keyID string, timestamp time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE api_keys SET last_used_at = ?2
		WHERE id = ?1 AND (last_used_at IS NULL OR last_used_at < ?2)`,
		keyID, formatTime(timestamp))
	if err != nil {
		return fmt.Errorf("failed to update last used: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM api_keys WHERE id = ?)`, keyID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check key existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: API key", domain.ErrNotFound)
	}
	return nil
}

// Create stores a new API key.
func (s *Store) Create(ctx context.Context, key *domain.APIKey) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, owner_id, key_type, service, version, short_token,
			long_secret_hash, name, is_active, created_at, last_used_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID, key.OwnerID, key.KeyType, key.Service, key.Version, key.ShortToken,
		key.LongSecretHash, key.Name, key.IsActive, formatTime(key.CreatedAt),
		formatTimePtr(key.LastUsedAt), formatTimePtr(key.ExpiresAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: API key", domain.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create API key: %w", err)
	}
	return nil
}
