package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"estoque/internal/core/domain"
	"estoque/internal/port"
)

type movementKey struct {
	name      string
	quantity  int
	direction domain.Direction
}

type localRecord struct {
	at    time.Time
	entry domain.LedgerEntry
}

// LedgerDeduplicator absorbs accidental double submissions of the same
// stock movement before they reach the audit trail. Two tiers:
//
//   - the local window catches same-process double-submits (UI
//     double-click) before the remote round-trip even completes;
//   - the remote window checks entries already loaded into memory,
//     which is subject to cache staleness.
//
// A suppressed insert is an idempotent no-op: the prior entry is
// returned without error.
type LedgerDeduplicator struct {
	ledger       port.LedgerRepository
	localWindow  time.Duration
	remoteWindow time.Duration

	mu        sync.Mutex
	lastLocal map[movementKey]localRecord

	now func() time.Time
}

func NewLedgerDeduplicator(ledger port.LedgerRepository, localWindow, remoteWindow time.Duration) *LedgerDeduplicator {
	return &LedgerDeduplicator{
		ledger:       ledger,
		localWindow:  localWindow,
		remoteWindow: remoteWindow,
		lastLocal:    make(map[movementKey]localRecord),
		now:          time.Now,
	}
}

// Append writes entry unless an identical movement was recorded inside
// either window. loaded is the ledger snapshot currently in memory;
// pass whatever the cache holds, staleness included. Returns the entry
// that stands for the movement and whether the insert was suppressed.
func (d *LedgerDeduplicator) Append(ctx context.Context, entry domain.LedgerEntry, loaded []domain.LedgerEntry) (domain.LedgerEntry, bool, error) {
	key := movementKey{name: entry.ItemName, quantity: entry.Quantity, direction: entry.Direction}
	now := d.now()

	d.mu.Lock()
	if rec, ok := d.lastLocal[key]; ok && now.Sub(rec.at) < d.localWindow {
		d.mu.Unlock()
		log.Printf("ledger: suppressed local duplicate %s %d %s (prior %s)",
			entry.ItemName, entry.Quantity, entry.Direction, rec.entry.ID)
		return rec.entry, true, nil
	}
	d.mu.Unlock()

	for _, prior := range loaded {
		if prior.SameMovement(entry) && now.Sub(prior.CreatedAt) < d.remoteWindow {
			log.Printf("ledger: suppressed remote duplicate %s %d %s (prior %s)",
				entry.ItemName, entry.Quantity, entry.Direction, prior.ID)
			return prior, true, nil
		}
	}

	if err := d.ledger.AppendEntry(ctx, entry); err != nil {
		return domain.LedgerEntry{}, false, fmt.Errorf("append ledger entry: %w", err)
	}

	d.mu.Lock()
	d.lastLocal[key] = localRecord{at: now, entry: entry}
	d.pruneLocked(now)
	d.mu.Unlock()

	return entry, false, nil
}

func (d *LedgerDeduplicator) pruneLocked(now time.Time) {
	for k, rec := range d.lastLocal {
		if now.Sub(rec.at) >= d.localWindow {
			delete(d.lastLocal, k)
		}
	}
}
