package document

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rezkam/dayplan/internal/application/auth"
	"github.com/rezkam/dayplan/internal/application/planner"
	"github.com/rezkam/dayplan/internal/application/profile"
	"github.com/rezkam/dayplan/internal/domain"
)

const apiKeyIDsPrefix = "apikey-ids/"

// maxConcurrency bounds parallel document reads when listing.
const maxConcurrency = 20

// Store implements the application repositories over a Bucket.
//
// Version checks and position allocation are read-modify-write sequences;
// the store serializes them in process, so a bucket must not be shared by
// two running servers.
type Store struct {
	bucket Bucket
	mu     sync.Mutex
}

var (
	_ planner.Repository = (*Store)(nil)
	_ profile.Repository = (*Store)(nil)
	_ auth.Repository    = (*Store)(nil)
)

// NewStore creates a document store over bucket.
func NewStore(bucket Bucket) *Store {
	return &Store{bucket: bucket}
}

func (s *Store) readJSON(ctx context.Context, key string, dst any) error {
	data, err := s.bucket.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) writeJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.bucket.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// findRecord looks the item up under both kind prefixes.
func (s *Store) findRecord(ctx context.Context, ownerID, id string) (itemRecord, error) {
	var rec itemRecord
	// IDs become path segments; anything but a UUID cannot name a stored item.
	if _, err := uuid.Parse(id); err != nil {
		return rec, domain.ErrItemNotFound
	}
	for _, kind := range []domain.ItemKind{domain.KindTask, domain.KindEvent} {
		err := s.readJSON(ctx, itemKey(ownerID, kind, id), &rec)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrMissing) {
			return rec, err
		}
	}
	return rec, domain.ErrItemNotFound
}

// listRecords loads every item of the owner in parallel.
func (s *Store) listRecords(ctx context.Context, ownerID string) ([]itemRecord, error) {
	keys, err := s.bucket.List(ctx, ownerPrefix(ownerID))
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		records  = make([]itemRecord, 0, len(keys))
		firstErr error
	)
	semaphore := make(chan struct{}, maxConcurrency)

	for _, key := range keys {
		if !strings.HasSuffix(key, docSuffix) {
			continue
		}
		wg.Add(1)
		semaphore <- struct{}{}

		go func(key string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			var rec itemRecord
			err := s.readJSON(ctx, key, &rec)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				records = append(records, rec)
			case errors.Is(err, ErrMissing):
				// Deleted between List and Get.
			case firstErr == nil:
				firstErr = err
			}
		}(key)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	slices.SortFunc(records, func(a, b itemRecord) int {
		return cmp.Or(cmp.Compare(a.Position, b.Position), a.CreatedAt.Compare(b.CreatedAt), strings.Compare(a.ID, b.ID))
	})
	return records, nil
}

// CreateItem stores a new item at the end of the owner's order.
func (s *Store) CreateItem(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.listRecords(ctx, item.OwnerID)
	if err != nil {
		return nil, err
	}
	position := 0
	for _, rec := range existing {
		if rec.ID == item.ID {
			return nil, fmt.Errorf("%w: item %s", domain.ErrAlreadyExists, item.ID)
		}
		position = max(position, rec.Position+1)
	}

	rec := itemToRecord(item)
	rec.Position = position
	rec.Version = 1
	if err := s.writeJSON(ctx, itemKey(item.OwnerID, item.Kind, item.ID), rec); err != nil {
		return nil, err
	}

	created := recordToItem(rec)
	return &created, nil
}

// FindItem retrieves one of the owner's items.
func (s *Store) FindItem(ctx context.Context, ownerID, id string) (*domain.Item, error) {
	rec, err := s.findRecord(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	item := recordToItem(rec)
	return &item, nil
}

// UpdateItem replaces an item when its version matches.
func (s *Store) UpdateItem(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.findRecord(ctx, item.OwnerID, item.ID)
	if err != nil {
		return nil, err
	}
	if current.Version != item.Version {
		return nil, fmt.Errorf("%w: expected version %d, current version %d",
			domain.ErrVersionConflict, item.Version, current.Version)
	}

	rec := itemToRecord(item)
	rec.Version = current.Version + 1
	rec.Position = current.Position
	rec.CreatedAt = current.CreatedAt
	if err := s.writeJSON(ctx, itemKey(item.OwnerID, item.Kind, item.ID), rec); err != nil {
		return nil, err
	}

	updated := recordToItem(rec)
	return &updated, nil
}

// DeleteItem removes an item.
func (s *Store) DeleteItem(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.findRecord(ctx, ownerID, id)
	if err != nil {
		return err
	}
	err = s.bucket.Delete(ctx, itemKey(ownerID, domain.ItemKind(rec.Kind), id))
	if errors.Is(err, ErrMissing) {
		return domain.ErrItemNotFound
	}
	return err
}

// ListItems returns the owner's tasks and events merged in position order.
func (s *Store) ListItems(ctx context.Context, ownerID string) ([]domain.Item, error) {
	records, err := s.listRecords(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	items := make([]domain.Item, len(records))
	for i, rec := range records {
		items[i] = recordToItem(rec)
	}
	return items, nil
}

// SavePositions rewrites the position of each listed item.
func (s *Store) SavePositions(ctx context.Context, ownerID string, positions map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, position := range positions {
		rec, err := s.findRecord(ctx, ownerID, id)
		if errors.Is(err, domain.ErrItemNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if rec.Position == position {
			continue
		}
		rec.Position = position
		if err := s.writeJSON(ctx, itemKey(ownerID, domain.ItemKind(rec.Kind), id), rec); err != nil {
			return err
		}
	}
	return nil
}

// ListOwners returns every owner with at least one stored item.
func (s *Store) ListOwners(ctx context.Context) ([]string, error) {
	keys, err := s.bucket.List(ctx, ownersPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	seen := make(map[string]bool)
	var owners []string
	for _, key := range keys {
		owner, ok := OwnerFromKey(key)
		if !ok || seen[owner] {
			continue
		}
		seen[owner] = true
		owners = append(owners, owner)
	}
	slices.Sort(owners)
	return owners, nil
}

// FindProfile returns the owner's saved profile.
func (s *Store) FindProfile(ctx context.Context, ownerID string) (*domain.Profile, error) {
	var rec profileRecord
	if err := s.readJSON(ctx, profileKey(ownerID), &rec); err != nil {
		if errors.Is(err, ErrMissing) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, err
	}
	return &domain.Profile{
		OwnerID:   rec.OwnerID,
		Name:      rec.Name,
		BirthDate: domain.Date(rec.BirthDate),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

// SaveProfile inserts or replaces the owner's profile.
func (s *Store) SaveProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	rec := profileRecord{
		OwnerID:   p.OwnerID,
		Name:      p.Name,
		BirthDate: string(p.BirthDate),
		CreatedAt: p.CreatedAt.UTC(),
		UpdatedAt: p.UpdatedAt.UTC(),
	}
	if err := s.writeJSON(ctx, profileKey(p.OwnerID), rec); err != nil {
		return nil, err
	}
	saved := *p
	return &saved, nil
}

// ListProfilesWithBirthday scans every stored profile for birth dates on
// month and day.
func (s *Store) ListProfilesWithBirthday(ctx context.Context, month time.Month, day int) ([]domain.Profile, error) {
	keys, err := s.bucket.List(ctx, profilesPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	var profiles []domain.Profile
	for _, key := range keys {
		if !strings.HasSuffix(key, docSuffix) {
			continue
		}
		var rec profileRecord
		if err := s.readJSON(ctx, key, &rec); err != nil {
			if errors.Is(err, ErrMissing) {
				continue
			}
			return nil, err
		}
		if !domain.BornOn(domain.Date(rec.BirthDate), month, day) {
			continue
		}
		profiles = append(profiles, domain.Profile{
			OwnerID:   rec.OwnerID,
			Name:      rec.Name,
			BirthDate: domain.Date(rec.BirthDate),
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		})
	}
	slices.SortFunc(profiles, func(a, b domain.Profile) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), strings.Compare(a.OwnerID, b.OwnerID))
	})
	return profiles, nil
}

// FindByShortToken retrieves an API key by its short token.
func (s *Store) FindByShortToken(ctx context.Context, shortToken string) (*domain.APIKey, error) {
	var rec apiKeyRecord
	if err := s.readJSON(ctx, apiKeyKey(shortToken), &rec); err != nil {
		if errors.Is(err, ErrMissing) {
			return nil, fmt.Errorf("%w: API key", domain.ErrNotFound)
		}
		return nil, err
	}
	return &domain.APIKey{
		ID:             rec.ID,
		OwnerID:        rec.OwnerID,
		KeyType:        rec.KeyType,
		Service:        rec.Service,
		Version:        rec.Version,
		ShortToken:     rec.ShortToken,
		LongSecretHash: rec.LongSecretHash,
		Name:           rec.Name,
		IsActive:       rec.IsActive,
		CreatedAt:      rec.CreatedAt,
		LastUsedAt:     rec.LastUsedAt,
		ExpiresAt:      rec.ExpiresAt,
	}, nil
}

// UpdateLastUsed moves the key's last-used time forward, never back.
func (s *Store) UpdateLastUsed(ctx context.Context, keyID string, timestamp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	shortToken, err := s.bucket.Get(ctx, apiKeyIDsPrefix+keyID)
	if err != nil {
		if errors.Is(err, ErrMissing) {
			return fmt.Errorf("%w: API key", domain.ErrNotFound)
		}
		return err
	}

	key := apiKeyKey(string(shortToken))
	var rec apiKeyRecord
	if err := s.readJSON(ctx, key, &rec); err != nil {
		if errors.Is(err, ErrMissing) {
			return fmt.Errorf("%w: API key", domain.ErrNotFound)
		}
		return err
	}
	if rec.LastUsedAt != nil && !timestamp.After(*rec.LastUsedAt) {
		return nil
	}
	ts := timestamp.UTC()
	rec.LastUsedAt = &ts
	return s.writeJSON(ctx, key, rec)
}

// Create stores a new API key.
func (s *Store) Create(ctx context.Context, key *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docKey := apiKeyKey(key.ShortToken)
	if _, err := s.bucket.Get(ctx, docKey); err == nil {
		return fmt.Errorf("%w: API key", domain.ErrAlreadyExists)
	} else if !errors.Is(err, ErrMissing) {
		return err
	}

	rec := apiKeyRecord{
		ID:             key.ID,
		OwnerID:        key.OwnerID,
		KeyType:        key.KeyType,
		Service:        key.Service,
		Version:        key.Version,
		ShortToken:     key.ShortToken,
		LongSecretHash: key.LongSecretHash,
		Name:           key.Name,
		IsActive:       key.IsActive,
		CreatedAt:      key.CreatedAt.UTC(),
		LastUsedAt:     key.LastUsedAt,
		ExpiresAt:      key.ExpiresAt,
	}
	if err := s.writeJSON(ctx, docKey, rec); err != nil {
		return err
	}
	if err := s.bucket.Put(ctx, apiKeyIDsPrefix+key.ID, []byte(key.ShortToken)); err != nil {
		return fmt.Errorf("failed to index API key: %w", err)
	}
	return nil
}
