// ABOUTME: Per-identity delivery deduplication on top of bounded ledgers.
// ABOUTME: ShouldDeliver answers true once per (identity, event id) until Reset.

package dedupe

import (
	"sync"

	"github.com/2389/pause-notify/internal/identity"
)

// Deduplicator keeps one Ledger per identity.
type Deduplicator struct {
	mu       sync.Mutex
	ledgers  map[identity.ID]*Ledger
	capacity int
}

// NewDeduplicator creates a deduplicator whose ledgers hold capacity ids each.
func NewDeduplicator(capacity int) *Deduplicator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Deduplicator{
		ledgers:  make(map[identity.ID]*Ledger),
		capacity: capacity,
	}
}

// ShouldDeliver returns true the first time eventID is seen for userID and
// false on every later call, until Reset(userID).
func (d *Deduplicator) ShouldDeliver(userID identity.ID, eventID string) bool {
	return !d.ledger(userID).CheckAndMark(eventID)
}

// Reset drops the ledger for userID. Resetting an unknown identity is a no-op.
func (d *Deduplicator) Reset(userID identity.ID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.ledgers, userID)
}

// Len returns how many event ids are remembered for userID.
func (d *Deduplicator) Len(userID identity.ID) int {
	d.mu.Lock()
	l, ok := d.ledgers[userID]
	d.mu.Unlock()
	if !ok {
		return 0
	}
	return l.Len()
}

func (d *Deduplicator) ledger(userID identity.ID) *Ledger {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.ledgers[userID]
	if !ok {
		l = NewLedger(d.capacity)
		d.ledgers[userID] = l
	}
	return l
}
