package handler

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rezkam/dayplan/internal/domain"
)

// memStore is an in-memory planner.Repository and profile.Repository.
type memStore struct {
	mu       sync.Mutex
	items    map[string]domain.Item
	profiles map[string]domain.Profile
	next     int
}

func newMemStore() *memStore {
	return &memStore{items: map[string]domain.Item{}, profiles: map[string]domain.Profile{}}
}

func (s *memStore) CreateItem(_ context.Context, item *domain.Item) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := item.Clone()
	stored.Version = 1
	stored.Position = s.next
	s.next++
	s.items[stored.ID] = stored
	out := stored.Clone()
	return &out, nil
}

func (s *memStore) FindItem(_ context.Context, ownerID, id string) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok || item.OwnerID != ownerID {
		return nil, domain.ErrItemNotFound
	}
	out := item.Clone()
	return &out, nil
}

func (s *memStore) UpdateItem(_ context.Context, item *domain.Item) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.items[item.ID]
	if !ok || current.OwnerID != item.OwnerID {
		return nil, domain.ErrItemNotFound
	}
	if current.Version != item.Version {
		return nil, domain.ErrVersionConflict
	}
	stored := item.Clone()
	stored.Version++
	s.items[stored.ID] = stored
	out := stored.Clone()
	return &out, nil
}

func (s *memStore) DeleteItem(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok || item.OwnerID != ownerID {
		return domain.ErrItemNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *memStore) ListItems(_ context.Context, ownerID string) ([]domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Item
	for _, item := range s.items {
		if item.OwnerID == ownerID {
			out = append(out, item.Clone())
		}
	}
	slices.SortFunc(out, func(a, b domain.Item) int { return cmp.Compare(a.Position, b.Position) })
	return out, nil
}

func (s *memStore) SavePositions(_ context.Context, ownerID string, positions map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, pos := range positions {
		if item, ok := s.items[id]; ok && item.OwnerID == ownerID {
			item.Position = pos
			s.items[id] = item
		}
	}
	return nil
}

func (s *memStore) ListOwners(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var owners []string
	for _, item := range s.items {
		if !slices.Contains(owners, item.OwnerID) {
			owners = append(owners, item.OwnerID)
		}
	}
	return owners, nil
}

func (s *memStore) FindProfile(_ context.Context, ownerID string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[ownerID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &p, nil
}

func (s *memStore) SaveProfile(_ context.Context, p *domain.Profile) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.OwnerID] = *p
	out := *p
	return &out, nil
}

func (s *memStore) ListProfilesWithBirthday(_ context.Context, month time.Month, day int) ([]domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Profile
	for _, p := range s.profiles {
		if domain.BornOn(p.BirthDate, month, day) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Profile) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}
