package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"estoque/internal/core/domain"
	"estoque/internal/port"
)

const recentLedgerLimit = 100

// Config carries the coordinator tunables.
//
// The dedup windows trade false-duplicate suppression against a
// legitimate rapid re-entry of the same item and quantity by different
// staff. Do not widen them without product input.
type Config struct {
	ItemTTL           time.Duration
	LedgerTTL         time.Duration
	ThrottleInterval  time.Duration
	LocalDedupWindow  time.Duration
	RemoteDedupWindow time.Duration
	QueueSize         int
	PublishWorkers    int
}

func DefaultConfig() Config {
	return Config{
		ItemTTL:           30 * time.Second,
		LedgerTTL:         120 * time.Second,
		ThrottleInterval:  10 * time.Second,
		LocalDedupWindow:  3 * time.Second,
		RemoteDedupWindow: 5 * time.Second,
		QueueSize:         1024,
		PublishWorkers:    4,
	}
}

// Coordinator is the process-wide mutation and cache coordination
// layer every inventory screen goes through. One instance is
// constructed at startup and injected into all consumers; the cache
// and guard it owns are deliberately shared.
type Coordinator struct {
	items  port.ItemRepository
	ledger port.LedgerRepository
	tokens port.TokenRegistry

	itemCache   *SnapshotCache[[]domain.InventoryItem]
	ledgerCache *SnapshotCache[[]domain.LedgerEntry]
	guard       *MutationGuard
	dedup       *LedgerDeduplicator

	publisher port.EventPublisher
	events    chan domain.StockEvent
	workers   sync.WaitGroup

	now func() time.Time
}

// NewCoordinator wires the coordination layer. publisher may be nil;
// stock events are then dropped silently.
func NewCoordinator(items port.ItemRepository, ledger port.LedgerRepository, tokens port.TokenRegistry, publisher port.EventPublisher, cfg Config) *Coordinator {
	c := &Coordinator{
		items:       items,
		ledger:      ledger,
		tokens:      tokens,
		itemCache:   NewSnapshotCache[[]domain.InventoryItem](cfg.ItemTTL, cfg.ThrottleInterval),
		ledgerCache: NewSnapshotCache[[]domain.LedgerEntry](cfg.LedgerTTL, cfg.ThrottleInterval),
		guard:       NewMutationGuard(),
		dedup:       NewLedgerDeduplicator(ledger, cfg.LocalDedupWindow, cfg.RemoteDedupWindow),
		publisher:   publisher,
		now:         time.Now,
	}

	if publisher != nil {
		c.events = make(chan domain.StockEvent, cfg.QueueSize)
		workers := cfg.PublishWorkers
		if workers < 1 {
			workers = 1
		}
		for i := 0; i < workers; i++ {
			c.workers.Add(1)
			go c.publishLoop(i)
		}
	}

	return c
}

func itemKey(location string, class domain.Category) string {
	return fmt.Sprintf("items:%s:%s", location, class)
}

func ledgerKey(location string) string {
	return fmt.Sprintf("ledger:%s", location)
}

// Items is the read-through path for stock screens. Snapshots are
// read-only; returns ErrPending when throttled with nothing cached.
func (c *Coordinator) Items(ctx context.Context, class domain.Category, location string) ([]domain.InventoryItem, error) {
	if !domain.ValidCategory(class) {
		return nil, fmt.Errorf("%w: unknown category %q", ErrNotFound, class)
	}
	return c.itemCache.Get(ctx, itemKey(location, class), func(ctx context.Context) ([]domain.InventoryItem, error) {
		return c.items.ListByClass(ctx, class, location)
	})
}

// Ledger returns the recent audit history for a location, cached with
// the slow-collection TTL.
func (c *Coordinator) Ledger(ctx context.Context, location string) ([]domain.LedgerEntry, error) {
	return c.ledgerCache.Get(ctx, ledgerKey(location), func(ctx context.Context) ([]domain.LedgerEntry, error) {
		return c.ledger.ListRecent(ctx, location, recentLedgerLimit)
	})
}

// Mutate runs fn under the single-flight guard for class. A concurrent
// mutation on the same class yields ErrBusy immediately.
func (c *Coordinator) Mutate(ctx context.Context, class domain.Category, fn func(ctx context.Context) error) error {
	if !domain.ValidCategory(class) {
		return fmt.Errorf("%w: unknown category %q", ErrNotFound, class)
	}
	return c.guard.WithLock(class, func() error {
		return fn(ctx)
	})
}

// AdjustInput describes a manual quantity adjustment entered on a CRUD
// screen, as opposed to a scan.
type AdjustInput struct {
	Class     domain.Category
	ItemID    string
	Quantity  int
	Direction domain.Direction
	Note      string
	Location  string
}

type AdjustResult struct {
	ItemName   string `json:"item_name"`
	Remaining  int    `json:"remaining"`
	Suppressed bool   `json:"ledger_suppressed,omitempty"`
}

// AdjustStock applies a manual stock movement: guarded quantity write,
// deduplicated ledger append, cache invalidation, event publish.
func (c *Coordinator) AdjustStock(ctx context.Context, in AdjustInput) (AdjustResult, error) {
	if !domain.ValidCategory(in.Class) {
		return AdjustResult{}, fmt.Errorf("%w: unknown category %q", ErrNotFound, in.Class)
	}
	if in.Quantity <= 0 {
		return AdjustResult{}, fmt.Errorf("quantity must be positive, got %d", in.Quantity)
	}
	if !domain.ValidDirection(in.Direction) {
		return AdjustResult{}, fmt.Errorf("invalid direction %q", in.Direction)
	}

	var out AdjustResult
	err := c.guard.WithLock(in.Class, func() error {
		item, err := c.items.GetByID(ctx, in.ItemID)
		if err != nil {
			return fmt.Errorf("load item %s: %w", in.ItemID, err)
		}
		if item == nil {
			return ErrNotFound
		}

		var remaining int
		switch in.Direction {
		case domain.DirectionOutbound:
			var ok bool
			remaining, ok, err = c.items.DecrementIfAvailable(ctx, item.ID, in.Quantity)
			if err != nil {
				return fmt.Errorf("decrement %s: %w", item.ID, err)
			}
			if !ok {
				return ErrOutOfStock
			}
		case domain.DirectionInbound:
			remaining, err = c.items.IncreaseQuantity(ctx, item.ID, in.Quantity)
			if err != nil {
				return fmt.Errorf("increase %s: %w", item.ID, err)
			}
		}

		suppressed := c.recordMovement(ctx, domain.LedgerEntry{
			ID:        uuid.NewString(),
			ItemName:  item.Name,
			Quantity:  in.Quantity,
			Direction: in.Direction,
			Note:      in.Note,
			Location:  in.Location,
			CreatedAt: c.now(),
		})

		out = AdjustResult{ItemName: item.Name, Remaining: remaining, Suppressed: suppressed}

		delta := in.Quantity
		eventType := domain.EventStockIncremented
		if in.Direction == domain.DirectionOutbound {
			delta = -in.Quantity
			eventType = domain.EventStockDecremented
		}
		c.enqueueEvent(domain.StockEvent{
			ID:        uuid.NewString(),
			Type:      eventType,
			ItemID:    item.ID,
			ItemName:  item.Name,
			Category:  in.Class,
			Location:  in.Location,
			Delta:     delta,
			Remaining: remaining,
			Timestamp: c.now(),
		})
		return nil
	})
	if err != nil {
		return AdjustResult{}, err
	}

	c.refreshAfterWrite(in.Location, in.Class)
	return out, nil
}

// recordMovement appends through the deduplicator. A failed append is
// logged, never rolled back: the quantity change already landed and
// the missing audit row is reconciled manually.
func (c *Coordinator) recordMovement(ctx context.Context, entry domain.LedgerEntry) bool {
	loaded, _ := c.ledgerCache.Peek(ledgerKey(entry.Location))
	_, suppressed, err := c.dedup.Append(ctx, entry, loaded)
	if err != nil {
		log.Printf("ledger: write failed for %s %d %s at %s, quantity change stands without audit row: %v",
			entry.ItemName, entry.Quantity, entry.Direction, entry.Location, err)
	}
	return suppressed
}

// refreshAfterWrite invalidates the affected snapshots and refreshes
// the stock list in the background, bypassing the fetch throttle.
func (c *Coordinator) refreshAfterWrite(location string, class domain.Category) {
	key := itemKey(location, class)
	c.itemCache.Invalidate(key)
	c.ledgerCache.Invalidate(ledgerKey(location))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := c.itemCache.Refresh(ctx, key, func(ctx context.Context) ([]domain.InventoryItem, error) {
			return c.items.ListByClass(ctx, class, location)
		}); err != nil {
			log.Printf("cache: post-write refresh of %s failed: %v", key, err)
		}
	}()
}

func (c *Coordinator) enqueueEvent(event domain.StockEvent) {
	if c.events == nil {
		return
	}
	select {
	case c.events <- event:
	default:
		log.Printf("events: queue full, dropped %s for %s", event.Type, event.ItemID)
	}
}

func (c *Coordinator) publishLoop(id int) {
	defer c.workers.Done()
	for event := range c.events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.publisher.PublishStockEvent(ctx, &event); err != nil {
			log.Printf("publisher %d: failed to publish %s for %s: %v", id, event.Type, event.ItemID, err)
		}
		cancel()
	}
}

// Close drains the event queue and stops the publish workers. Safe to
// call once at shutdown.
func (c *Coordinator) Close() {
	if c.events == nil {
		return
	}
	close(c.events)
	c.workers.Wait()
}
