// Package subscription keeps a single live comment subscription open for the
// signed-in identity.
//
// # Handles
//
// Open returns a Handle scoped to one identity. Opening for any identity
// first closes the handle that is already open, so at most one handle is
// live per Manager. Close is idempotent and, once it returns, the sink
// passed to Open is never called again for that handle.
//
// # Backoff
//
// Establishing a connection is retried with bounded exponential backoff
// (cenkalti/backoff). When every attempt fails, Open returns an error
// wrapping ErrSubscriptionFailed and no handle is kept.
//
// # Reconnects
//
// A connection that drops on its own is re-established in the background
// with the same backoff budget. Callers never see the gap. If the budget is
// exhausted the handle's Failed channel closes and Err reports
// ErrSubscriptionFailed.
//
// Events from one connection reach the sink in arrival order. Nothing is
// promised about ordering across a reconnect.
package subscription
