package port

import (
	"context"

	"estoque/internal/core/domain"
)

// EventPublisher pushes accepted stock mutations to an external bus.
// Publish failures must never block or fail the mutation itself.
type EventPublisher interface {
	PublishStockEvent(ctx context.Context, event *domain.StockEvent) error
	Close() error
}
