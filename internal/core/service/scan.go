package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"estoque/internal/core/domain"
)

// ProcessScan runs one scan session: decode the token, resolve the
// item, apply exactly one unit decrement under the mutation guard,
// append the audit entry, and register the token as consumed. Camera
// decode callbacks and manual entry both land here; location is the
// scanning device's owning location.
//
// The result is always structured; no error crosses this boundary.
func (c *Coordinator) ProcessScan(ctx context.Context, raw, location string) domain.ScanResult {
	token, err := domain.ParseScanToken(raw)
	if err != nil {
		// No side effects for undecodable labels.
		return failure(domain.FailureMalformedToken)
	}

	item, res := c.resolveItem(ctx, token, location)
	if res != nil {
		return *res
	}

	// Consumed check must precede any mutation attempt. The token only
	// enters the registry after a successful decrement, so a failed
	// attempt stays retryable with the same physical label.
	consumed, err := c.tokens.IsConsumed(ctx, token.Raw)
	if err != nil {
		return c.classifiedFailure("token lookup", token.Raw, err)
	}
	if consumed {
		return failure(domain.FailureAlreadyUsed)
	}

	var result domain.ScanResult
	err = c.guard.WithLock(token.Category, func() error {
		remaining, ok, err := c.items.DecrementIfAvailable(ctx, item.ID, 1)
		if err != nil {
			return fmt.Errorf("decrement %s: %w", item.ID, err)
		}
		if !ok {
			// Raced to zero between resolution and write.
			return ErrOutOfStock
		}

		c.recordMovement(ctx, domain.LedgerEntry{
			ID:        uuid.NewString(),
			ItemName:  item.Name,
			Quantity:  1,
			Direction: domain.DirectionOutbound,
			Note:      "scan " + token.Raw,
			Location:  item.Location,
			CreatedAt: c.now(),
		})

		// Consume even when the ledger write failed above: the
		// decrement landed, and an unconsumed token would let the same
		// label decrement twice on re-scan.
		if marked, err := c.tokens.MarkConsumed(ctx, token.Raw); err != nil {
			log.Printf("scan: failed to mark %s consumed, label stays retryable: %v", token.Raw, err)
		} else if !marked {
			log.Printf("scan: token %s was consumed concurrently by another device", token.Raw)
		}

		result = domain.ScanResult{
			Success:         true,
			ItemName:        item.Name,
			QuantityRemoved: 1,
			Remaining:       remaining,
		}

		c.enqueueEvent(domain.StockEvent{
			ID:        uuid.NewString(),
			Type:      domain.EventStockDecremented,
			ItemID:    item.ID,
			ItemName:  item.Name,
			Category:  token.Category,
			Location:  item.Location,
			Delta:     -1,
			Remaining: remaining,
			Timestamp: c.now(),
		})
		return nil
	})
	if err != nil {
		return c.classifiedFailure("scan mutation", token.Raw, err)
	}

	c.refreshAfterWrite(item.Location, token.Category)
	return result
}

// resolveItem finds the item a token refers to within the collection
// implied by its prefix. Returns a rejection result instead of an item
// when resolution fails.
func (c *Coordinator) resolveItem(ctx context.Context, token domain.ScanToken, location string) (domain.InventoryItem, *domain.ScanResult) {
	items, err := c.Items(ctx, token.Category, location)
	if errors.Is(err, ErrPending) {
		// Resolution cannot wait for the throttle window; go straight
		// to the repository.
		items, err = c.items.ListByClass(ctx, token.Category, location)
	}
	if err != nil {
		r := c.classifiedFailure("resolve items", token.Raw, err)
		return domain.InventoryItem{}, &r
	}

	var matches []domain.InventoryItem
	for _, it := range items {
		if strings.EqualFold(it.ID, token.Reference) ||
			strings.Contains(strings.ToLower(it.Name), strings.ToLower(token.Reference)) {
			matches = append(matches, it)
		}
	}

	if len(matches) == 0 {
		r := failure(domain.FailureNotFound)
		return domain.InventoryItem{}, &r
	}
	if len(matches) > 1 {
		// Deterministic pick: first in the collection's natural order.
		// Logged because the reference is ambiguous on this label run.
		log.Printf("scan: token %s matched %d items in %s, picked %q",
			token.Raw, len(matches), token.Category, matches[0].Name)
	}

	item := matches[0]
	if item.Quantity <= 0 {
		r := failure(domain.FailureOutOfStock)
		return domain.InventoryItem{}, &r
	}
	return item, nil
}

func failure(kind domain.FailureKind) domain.ScanResult {
	return domain.ScanResult{Kind: kind, Message: messageFor(kind)}
}

// classifiedFailure maps an internal error to a structured result.
// Unexpected kinds get logged with full context for diagnosis;
// expected ones are routine and stay quiet.
func (c *Coordinator) classifiedFailure(op, token string, err error) domain.ScanResult {
	outcome := Classify(err)
	switch outcome.Kind {
	case domain.FailureConflict, domain.FailureUnknown:
		log.Printf("scan: %s failed for %s: %v", op, token, err)
	}
	return failure(outcome.Kind)
}
