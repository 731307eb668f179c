// ABOUTME: Tests for the bounded ledger used to suppress duplicate notifications.
// ABOUTME: Validates marking, FIFO eviction, clearing, and concurrency safety.

package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedger_Contains_NotSeen(t *testing.T) {
	l := NewLedger(100)

	assert.False(t, l.contains("never-seen-key"))
}

func TestLedger_CheckAndMark_NewKey(t *testing.T) {
	l := NewLedger(100)

	assert.False(t, l.CheckAndMark("c1"), "first CheckAndMark should report a new key")
	assert.True(t, l.contains("c1"), "key should be marked after CheckAndMark")
	assert.True(t, l.CheckAndMark("c1"), "second CheckAndMark should report a duplicate")
}

func TestLedger_EvictionOrder(t *testing.T) {
	l := NewLedger(3)

	l.CheckAndMark("first")
	l.CheckAndMark("second")
	l.CheckAndMark("third")

	// Add fourth - should evict "first" (oldest)
	l.CheckAndMark("fourth")

	assert.False(t, l.contains("first"), "first should be evicted")
	assert.True(t, l.contains("second"))
	assert.True(t, l.contains("third"))
	assert.True(t, l.contains("fourth"))
	assert.Equal(t, 3, l.Len())
}

func TestLedger_DuplicateDoesNotRefreshPosition(t *testing.T) {
	l := NewLedger(2)

	l.CheckAndMark("a")
	l.CheckAndMark("b")
	assert.True(t, l.CheckAndMark("a"))

	// FIFO by insertion: "a" is still the oldest
	l.CheckAndMark("c")

	assert.False(t, l.contains("a"))
	assert.True(t, l.contains("b"))
	assert.True(t, l.contains("c"))
}

func TestLedger_Clear(t *testing.T) {
	l := NewLedger(10)
	l.CheckAndMark("a")
	l.CheckAndMark("b")

	l.Clear()
	l.Clear()

	assert.Equal(t, 0, l.Len())
	assert.False(t, l.CheckAndMark("a"), "cleared key should be new again")
}

func TestLedger_DefaultCapacity(t *testing.T) {
	l := NewLedger(0)

	for i := range DefaultCapacity + 1 {
		l.CheckAndMark(fmt.Sprintf("evt-%d", i))
	}

	assert.Equal(t, DefaultCapacity, l.Len())
	assert.False(t, l.contains("evt-0"))
}

func TestLedger_CheckAndMark_Atomic(t *testing.T) {
	l := NewLedger(100)

	const numGoroutines = 100
	var winners atomic.Int32
	var wg sync.WaitGroup

	// All goroutines try to CheckAndMark the same key simultaneously
	for range numGoroutines {
		wg.Go(func() {
			if !l.CheckAndMark("contested-key") {
				winners.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load(),
		"exactly one goroutine should win the race for CheckAndMark")
}
