// ABOUTME: Contracts for the realtime transport that delivers comment events.
// ABOUTME: A Connection reports drops through Done/Err and is released by Close.

package subscription

import (
	"context"

	"github.com/2389/pause-notify/internal/event"
	"github.com/2389/pause-notify/internal/identity"
)

// Sink receives comment events. It runs on the transport's goroutine and must
// not block or call back into the Manager.
type Sink func(event.Comment)

// Connection is one established transport subscription.
type Connection interface {
	// Done is closed when the connection ends, whether dropped or closed.
	Done() <-chan struct{}
	// Err explains why Done closed; nil while the connection is live.
	Err() error
	// Close unsubscribes. It is safe to call more than once.
	Close() error
}

// Transport opens comment subscriptions for one identity.
type Transport interface {
	Subscribe(ctx context.Context, userID identity.ID, sink Sink) (Connection, error)
}
