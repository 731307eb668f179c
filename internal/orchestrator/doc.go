// Package orchestrator turns a signed-in identity into comment notifications.
//
// The Orchestrator is a small state machine driven by identity changes:
//
//	Idle --identity--> Initializing --granted--> Subscribing --open--> Active
//	                        |                         |                  |
//	                     denied                     failed         handle failed
//	                        v                         v                  v
//	                     Disabled <-------------------+------------------+
//
// Identity changes are applied one at a time. A new change cancels whatever
// transition is still running (a pending permission prompt, a subscription
// attempt in backoff) and waits for it to settle before starting, so a late
// permission answer or a late connection for a previous identity is
// discarded rather than acted on.
//
// While Active, the transport callback only enqueues events. A per-session
// pump goroutine checks each event against the deduplicator and hands new
// ones to the notifier. Notification failures are logged and dropped.
//
// Leaving a session (identity change, sign-out, Teardown) closes the
// subscription, stops the pump, and resets the deduplication ledger of the
// identity being left.
package orchestrator
