package planner

import (
	"context"

	"github.com/rezkam/dayplan/internal/domain"
)

// Repository defines storage operations for an owner's item collection.
// All create/update operations return the entity as persisted, including version.
// Every lookup is scoped by owner: another owner's item reads as not found.
type Repository interface {
	// CreateItem stores a new item at the end of the owner's manual order.
	// Returns the created item with Version 1 and its Position populated.
	CreateItem(ctx context.Context, item *domain.Item) (*domain.Item, error)

	// FindItem retrieves one item.
	// Returns domain.ErrItemNotFound if it doesn't exist for the owner.
	FindItem(ctx context.Context, ownerID, id string) (*domain.Item, error)

	// UpdateItem replaces the stored item.
	// item.Version must equal the stored version; the stored version is then incremented.
	// Returns domain.ErrItemNotFound if the item doesn't exist for the owner.
	// Returns domain.ErrVersionConflict if the versions differ.
	UpdateItem(ctx context.Context, item *domain.Item) (*domain.Item, error)

	// DeleteItem removes an item permanently.
	// Returns domain.ErrItemNotFound if it doesn't exist for the owner.
	DeleteItem(ctx context.Context, ownerID, id string) error

	// ListItems returns the owner's whole collection ordered by Position.
	ListItems(ctx context.Context, ownerID string) ([]domain.Item, error)

	// SavePositions rewrites the manual order. Unknown IDs are ignored.
	SavePositions(ctx context.Context, ownerID string, positions map[string]int) error

	// ListOwners returns every owner with at least one item.
	ListOwners(ctx context.Context) ([]string, error)
}

// Publisher fans collection changes out to live subscribers.
type Publisher interface {
	Publish(ownerID string)
}

// Notifier relays push notifications. Implementations must not block.
type Notifier interface {
	Enqueue(ctx context.Context, n domain.Notification)
}
