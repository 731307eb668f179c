// Package dedupe tracks which comment events already produced a notification,
// so replays after a reconnect or re-subscription are suppressed.
//
// Each signed-in identity gets its own Ledger, a bounded FIFO set of event
// ids. The Deduplicator owns the ledgers and drops one when the identity's
// subscription closes.
//
// The bound is best effort: once a ledger holds Capacity ids the oldest is
// evicted, and an evicted id would be delivered again if it were replayed.
// DefaultCapacity is far above any realistic in-session comment burst.
package dedupe
