package service

import (
	"errors"
	"sync"

	"estoque/internal/core/domain"
)

// ErrBusy is returned when a mutation for the same resource class is
// already in flight. Callers surface it as "operation already in
// progress"; they do not queue.
var ErrBusy = errors.New("mutation already in progress for resource class")

// MutationGuard serializes quantity mutations and their paired ledger
// writes per resource class. At most one mutation per class is in
// flight at a time in this process; a second caller is rejected
// immediately rather than queued, so a double-tapped confirm can never
// compute two deltas from the same pre-mutation snapshot.
type MutationGuard struct {
	mu   sync.Mutex
	held map[domain.Category]bool
}

func NewMutationGuard() *MutationGuard {
	return &MutationGuard{held: make(map[domain.Category]bool)}
}

// WithLock runs fn while holding the class lock. The lock is released
// on every path, so a failed mutation never leaves the class stuck.
func (g *MutationGuard) WithLock(class domain.Category, fn func() error) error {
	g.mu.Lock()
	if g.held[class] {
		g.mu.Unlock()
		return ErrBusy
	}
	g.held[class] = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.held, class)
		g.mu.Unlock()
	}()

	return fn()
}
