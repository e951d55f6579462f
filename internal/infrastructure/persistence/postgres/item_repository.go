package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rezkam/dayplan/internal/domain"
)

// === Planner Repository Implementation ===

func (s *Store) scanItem(row pgx.Row) (*domain.Item, error) {
	var r itemRow
	if err := row.Scan(r.scanTargets()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}
	item, err := r.toDomain()
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem inserts the item after the owner's last position.
func (s *Store) CreateItem(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	p, err := domainItemToParams(item)
	if err != nil {
		return nil, err
	}

	var created *domain.Item
	err = s.executeInTransaction(ctx, "create_item", func(tx *Store) error {
		// Serializes position allocation per owner.
		if _, err := tx.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, item.OwnerID); err != nil {
			return fmt.Errorf("failed to lock owner: %w", err)
		}

		row := tx.db.QueryRow(ctx, `
			INSERT INTO items (id, owner_id, kind, title, description, start_time, all_day,
				task_date, start_date, end_date, status, per_day_status, failure_marks,
				position, created_at, updated_at, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
				(SELECT COALESCE(MAX(position) + 1, 0) FROM items WHERE owner_id = $2),
				$14, $15, 1)
			RETURNING `+itemColumns,
			p.ID, item.OwnerID, string(item.Kind), item.Title, item.Description,
			string(item.Time), item.AllDay, p.TaskDate, p.StartDate, p.EndDate,
			string(item.Status), p.PerDayStatus, p.FailureMarks,
			timeToPgtype(item.CreatedAt), timeToPgtype(item.UpdatedAt))

		var err error
		created, err = tx.scanItem(row)
		if err != nil && isUniqueViolation(err) {
			return fmt.Errorf("%w: item %s", domain.ErrAlreadyExists, item.ID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// FindItem retrieves one of the owner's items.
func (s *Store) FindItem(ctx context.Context, ownerID, id string) (*domain.Item, error) {
	itemID, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrItemNotFound
	}
	row := s.db.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1 AND owner_id = $2`,
		uuidToPgtype(itemID), ownerID)
	return s.scanItem(row)
}

// UpdateItem replaces the item when its version matches the stored one.
// Position and created_at are never changed here.
func (s *Store) UpdateItem(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	p, err := domainItemToParams(item)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRow(ctx, `
		UPDATE items SET
			kind = $3, title = $4, description = $5, start_time = $6, all_day = $7,
			task_date = $8, start_date = $9, end_date = $10, status = $11,
			per_day_status = $12, failure_marks = $13, updated_at = $14,
			version = version + 1
		WHERE id = $1 AND owner_id = $2 AND version = $15
		RETURNING `+itemColumns,
		p.ID, item.OwnerID, string(item.Kind), item.Title, item.Description,
		string(item.Time), item.AllDay, p.TaskDate, p.StartDate, p.EndDate,
		string(item.Status), p.PerDayStatus, p.FailureMarks,
		timeToPgtype(item.UpdatedAt), item.Version)

	updated, err := s.scanItem(row)
	if !errors.Is(err, domain.ErrItemNotFound) {
		return updated, err
	}

	// No row: either the item is gone or the version moved on.
	var current int
	err = s.db.QueryRow(ctx,
		`SELECT version FROM items WHERE id = $1 AND owner_id = $2`,
		p.ID, item.OwnerID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check item version: %w", err)
	}
	return nil, fmt.Errorf("%w: expected version %d, current version %d",
		domain.ErrVersionConflict, item.Version, current)
}

// DeleteItem removes an item.
func (s *Store) DeleteItem(ctx context.Context, ownerID, id string) error {
	itemID, err := uuid.Parse(id)
	if err != nil {
		return domain.ErrItemNotFound
	}
	tag, err := s.db.Exec(ctx,
		`DELETE FROM items WHERE id = $1 AND owner_id = $2`,
		uuidToPgtype(itemID), ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

// ListItems returns the owner's items in position order.
func (s *Store) ListItems(ctx context.Context, ownerID string) ([]domain.Item, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+itemColumns+` FROM items WHERE owner_id = $1 ORDER BY position, created_at, id`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := []domain.Item{}
	for rows.Next() {
		var r itemRow
		if err := rows.Scan(r.scanTargets()...); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item, err := r.toDomain()
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

// SavePositions writes all positions in one transaction. IDs not owned by
// ownerID are skipped.
func (s *Store) SavePositions(ctx context.Context, ownerID string, positions map[string]int) error {
	return s.executeInTransaction(ctx, "save_positions", func(tx *Store) error {
		batch := &pgx.Batch{}
		for id, position := range positions {
			itemID, err := uuid.Parse(id)
			if err != nil {
				continue
			}
			batch.Queue(`UPDATE items SET position = $3 WHERE id = $1 AND owner_id = $2`,
				uuidToPgtype(itemID), ownerID, position)
		}
		if batch.Len() == 0 {
			return nil
		}
		conn, ok := tx.db.(pgx.Tx)
		if !ok {
			return errors.New("save positions requires a transaction")
		}
		if err := conn.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to save positions: %w", err)
		}
		return nil
	})
}

// ListOwners returns every owner with at least one item.
func (s *Store) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT owner_id FROM items ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	owners, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan owners: %w", err)
	}
	return owners, nil
}
