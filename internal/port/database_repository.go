package port

import (
	"context"

	"estoque/internal/core/domain"
)

// ItemRepository is the persistence port for inventory items. The core
// only ever mutates quantity; everything else is owned by the CRUD
// screens outside this module.
type ItemRepository interface {
	// ListByClass returns the items of one category at one location in
	// the collection's natural order (name, then id).
	ListByClass(ctx context.Context, category domain.Category, location string) ([]domain.InventoryItem, error)

	// GetByID retrieves a single item, nil if it does not exist.
	GetByID(ctx context.Context, id string) (*domain.InventoryItem, error)

	// DecrementIfAvailable subtracts qty only when enough stock remains.
	// Returns the remaining quantity and whether the write was applied.
	DecrementIfAvailable(ctx context.Context, id string, qty int) (int, bool, error)

	// IncreaseQuantity adds qty and returns the new quantity.
	IncreaseQuantity(ctx context.Context, id string, qty int) (int, error)
}

// LedgerRepository is the persistence port for the append-only audit
// trail. There is no update or delete.
type LedgerRepository interface {
	AppendEntry(ctx context.Context, entry domain.LedgerEntry) error

	// ListRecent returns the newest entries for a location, most recent
	// first.
	ListRecent(ctx context.Context, location string, limit int) ([]domain.LedgerEntry, error)
}
