// ABOUTME: Bounded, thread-safe set of seen event ids for a single identity.
// ABOUTME: Evicts in insertion order once capacity is reached.

package dedupe

import (
	"container/list"
	"sync"
)

// DefaultCapacity is the number of event ids a ledger remembers.
const DefaultCapacity = 4096

// Ledger is a size-limited set of seen keys. A doubly-linked list keeps
// insertion order so the oldest key is evicted in O(1).
type Ledger struct {
	mu       sync.Mutex
	seen     map[string]*list.Element
	order    *list.List // oldest at front
	capacity int
}

// NewLedger creates a ledger holding at most capacity keys.
// A non-positive capacity falls back to DefaultCapacity.
func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		seen:     make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
	}
}

// contains reports whether key is currently remembered.
func (l *Ledger) contains(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.seen[key]
	return ok
}

// CheckAndMark atomically checks for key and records it if absent.
// Returns true if the key was already present (duplicate), false if it is
// new and now marked. A duplicate does not refresh the key's position.
func (l *Ledger) CheckAndMark(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[key]; ok {
		return true
	}

	if len(l.seen) >= l.capacity {
		l.evictOldest()
	}
	l.seen[key] = l.order.PushBack(key)
	return false
}

// Len returns the number of remembered keys.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

// Clear forgets every key.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seen = make(map[string]*list.Element)
	l.order.Init()
}

// evictOldest removes the front of the order list. Must be called with mu held.
func (l *Ledger) evictOldest() {
	front := l.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	l.order.Remove(front)
	delete(l.seen, key)
}
