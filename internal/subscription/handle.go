// ABOUTME: Handle for one live subscription scoped to a single identity.
// ABOUTME: Guards the sink so nothing is delivered after the handle closes.

package subscription

import (
	"context"
	"sync"

	"github.com/2389/pause-notify/internal/event"
	"github.com/2389/pause-notify/internal/identity"
)

// Handle is an open subscription. It is only ever returned fully connected.
type Handle struct {
	id       string
	identity identity.ID
	sink     Sink

	ctx    context.Context
	cancel context.CancelFunc

	// done is closed once the reconnect supervisor has exited
	done chan struct{}

	failOnce sync.Once
	failed   chan struct{}
	failErr  error

	mu     sync.RWMutex
	conn   Connection
	closed bool
}

func newHandle(id string, userID identity.ID, sink Sink) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handle{
		id:       id,
		identity: userID,
		sink:     sink,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		failed:   make(chan struct{}),
	}
}

// ID uniquely identifies the handle.
func (h *Handle) ID() string {
	return h.id
}

// Identity is the user this subscription is scoped to.
func (h *Handle) Identity() identity.ID {
	return h.identity
}

// Failed is closed when the subscription could not be re-established after a
// drop.
func (h *Handle) Failed() <-chan struct{} {
	return h.failed
}

// Err returns the failure, wrapping ErrSubscriptionFailed, or nil.
func (h *Handle) Err() error {
	select {
	case <-h.failed:
		return h.failErr
	default:
		return nil
	}
}

// Closed reports whether the handle has been released.
func (h *Handle) Closed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

// deliver forwards an event unless the handle is closed. The read lock is
// held across the sink call so release waits for in-flight deliveries.
func (h *Handle) deliver(ev event.Comment) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	h.sink(ev)
}

func (h *Handle) connection() Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conn
}

// attach installs conn, reporting false if the handle closed meanwhile.
func (h *Handle) attach(conn Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conn = conn
	return true
}

// detach marks the handle closed and hands back its connection.
// Returns nil, false if it was already closed.
func (h *Handle) detach() (Connection, bool) {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	h.closed = true
	conn := h.conn
	h.conn = nil
	return conn, true
}

func (h *Handle) fail(err error) {
	h.failOnce.Do(func() {
		h.failErr = err
		close(h.failed)
	})
}
