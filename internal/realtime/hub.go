// ABOUTME: In-memory per-recipient fan-out of comment events.
// ABOUTME: Implements the subscription transport contract for in-process use and the relay.

package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/pause-notify/internal/event"
	"github.com/2389/pause-notify/internal/identity"
	"github.com/2389/pause-notify/internal/subscription"
)

const (
	// connBufferSize is the per-connection event queue.
	connBufferSize = 256
)

var (
	// ErrHubClosed is returned by Subscribe after Close.
	ErrHubClosed = errors.New("hub closed")
	// ErrDropped is reported by connections cut with Drop.
	ErrDropped = errors.New("connection dropped")
)

// Hub provides in-memory pub/sub of comments keyed by recipient.
type Hub struct {
	mu     sync.RWMutex
	conns  map[identity.ID]map[string]*hubConn // recipient -> connID -> conn
	closed bool
	logger *slog.Logger
}

// NewHub creates a hub. Pass nil logger for default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:  make(map[identity.ID]map[string]*hubConn),
		logger: logger.With("component", "hub"),
	}
}

// Subscribe registers sink for comments addressed to userID. The connection
// ends when ctx is cancelled, Close is called, or the hub drops it.
func (h *Hub) Subscribe(ctx context.Context, userID identity.ID, sink subscription.Sink) (subscription.Connection, error) {
	c := &hubConn{
		id:     uuid.New().String(),
		userID: userID,
		hub:    h,
		sink:   sink,
		queue:  make(chan event.Comment, connBufferSize),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	if _, ok := h.conns[userID]; !ok {
		h.conns[userID] = make(map[string]*hubConn)
	}
	h.conns[userID][c.id] = c
	count := len(h.conns[userID])
	h.mu.Unlock()

	h.logger.Debug("subscriber added", "user_id", userID.String(), "conn_id", c.id, "subs", count)

	go c.pump()
	go func() {
		select {
		case <-ctx.Done():
			c.end(ctx.Err())
		case <-c.done:
		}
	}()

	return c, nil
}

// Publish queues a comment for every connection of its recipient.
// Non-blocking: a connection with a full queue misses the event.
func (h *Hub) Publish(c event.Comment) {
	recipient := identity.ID(c.RecipientID)

	h.mu.RLock()
	subs := h.conns[recipient]
	targets := make([]*hubConn, 0, len(subs))
	for _, conn := range subs {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		select {
		case conn.queue <- c:
		default:
			h.logger.Warn("dropped event for slow subscriber",
				"user_id", recipient.String(),
				"conn_id", conn.id,
				"event_id", c.ID)
		}
	}
}

// Drop ends every connection of userID as if the network failed.
func (h *Hub) Drop(userID identity.ID) {
	h.mu.RLock()
	targets := make([]*hubConn, 0, len(h.conns[userID]))
	for _, conn := range h.conns[userID] {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		conn.end(ErrDropped)
	}
}

// Subscribers returns the number of live connections for userID.
func (h *Hub) Subscribers(userID identity.ID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// Close ends all connections and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*hubConn
	for _, subs := range h.conns {
		for _, conn := range subs {
			all = append(all, conn)
		}
	}
	h.mu.Unlock()

	for _, conn := range all {
		conn.end(ErrHubClosed)
	}
	h.logger.Debug("hub closed")
}

func (h *Hub) remove(c *hubConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.conns[c.userID]
	if !ok {
		return
	}
	delete(subs, c.id)
	if len(subs) == 0 {
		delete(h.conns, c.userID)
	}
}

// hubConn is one subscriber connection.
type hubConn struct {
	id     string
	userID identity.ID
	hub    *Hub
	sink   subscription.Sink
	queue  chan event.Comment

	once sync.Once
	done chan struct{}
	mu   sync.Mutex
	err  error
}

func (c *hubConn) Done() <-chan struct{} {
	return c.done
}

func (c *hubConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *hubConn) Close() error {
	c.end(nil)
	return nil
}

func (c *hubConn) end(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		c.hub.remove(c)
		close(c.done)
		c.hub.logger.Debug("subscriber removed", "user_id", c.userID.String(), "conn_id", c.id, "error", err)
	})
}

// pump hands queued events to the sink one at a time, preserving order.
func (c *hubConn) pump() {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.queue:
			select {
			case <-c.done:
				return
			default:
			}
			c.sink(ev)
		}
	}
}
