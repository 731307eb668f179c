// ABOUTME: Subscription manager enforcing one live comment subscription at a time.
// ABOUTME: Opens with bounded exponential backoff and reconnects after transient drops.

package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/2389/pause-notify/internal/identity"
)

// ErrSubscriptionFailed is returned once the backoff budget is exhausted.
var ErrSubscriptionFailed = errors.New("subscription failed")

// ErrNoIdentity is returned when Open is called without a signed-in user.
var ErrNoIdentity = errors.New("no identity to subscribe for")

const (
	defaultMaxAttempts     = 3
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 10 * time.Second
)

// Options tunes connection retries. Zero values take the defaults.
type Options struct {
	// MaxAttempts bounds each connect or reconnect cycle.
	MaxAttempts int
	// InitialInterval is the wait after the first failed attempt.
	InitialInterval time.Duration
	// MaxInterval caps the wait between attempts.
	MaxInterval time.Duration
	Logger      *slog.Logger
}

// Manager owns at most one open Handle.
type Manager struct {
	transport Transport
	opts      Options
	logger    *slog.Logger

	// openMu serializes Open so two opens can never race each other
	openMu sync.Mutex

	mu      sync.Mutex
	current *Handle
}

// NewManager creates a manager over transport.
func NewManager(transport Transport, opts Options) *Manager {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = defaultInitialInterval
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = defaultMaxInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		transport: transport,
		opts:      opts,
		logger:    logger.With("component", "subscription"),
	}
}

// Current returns the open handle, or nil.
func (m *Manager) Current() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Open closes any open handle, then subscribes userID with events going to
// sink. ctx bounds only the connection attempt, including backoff waits.
func (m *Manager) Open(ctx context.Context, userID identity.ID, sink Sink) (*Handle, error) {
	if userID.IsZero() {
		return nil, ErrNoIdentity
	}

	m.openMu.Lock()
	defer m.openMu.Unlock()

	m.Close(m.Current())

	h := newHandle(uuid.New().String(), userID, sink)
	m.mu.Lock()
	m.current = h
	m.mu.Unlock()

	logger := m.logger.With("user_id", userID.String(), "sub_id", h.id)

	stop := context.AfterFunc(ctx, h.cancel)
	conn, err := m.connect(h, logger)
	stop()
	// read before release, which cancels h.ctx
	closedWhileOpening := h.ctx.Err() != nil
	if err == nil && closedWhileOpening {
		// cancelled just as the connection came up
		_ = conn.Close()
		err = h.ctx.Err()
	}

	if err != nil {
		close(h.done)
		m.release(h)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if closedWhileOpening {
			return nil, fmt.Errorf("subscription closed while opening: %w", context.Canceled)
		}
		logger.Warn("subscription failed", "attempts", m.opts.MaxAttempts, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSubscriptionFailed, err)
	}

	if !h.attach(conn) {
		_ = conn.Close()
		close(h.done)
		return nil, fmt.Errorf("subscription closed while opening: %w", context.Canceled)
	}

	go m.supervise(h, logger)

	logger.Info("subscription open")
	return h, nil
}

// Close releases h. Nil, unknown, and already-closed handles are no-ops.
// After Close returns the handle's sink is not called again.
func (m *Manager) Close(h *Handle) {
	if h == nil {
		return
	}
	m.release(h)
	<-h.done
}

// release detaches h and closes its connection without waiting for the
// supervisor, so the supervisor itself may call it.
func (m *Manager) release(h *Handle) {
	conn, first := h.detach()

	m.mu.Lock()
	if m.current == h {
		m.current = nil
	}
	m.mu.Unlock()

	if !first {
		return
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			m.logger.Debug("closing connection", "sub_id", h.id, "error", err)
		}
	}
	m.logger.Info("subscription closed", "user_id", h.identity.String(), "sub_id", h.id)
}

// connect subscribes with bounded exponential backoff. It stops early when
// the handle's context ends.
func (m *Manager) connect(h *Handle, logger *slog.Logger) (Connection, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.opts.InitialInterval
	b.MaxInterval = m.opts.MaxInterval

	attempt := 0
	return backoff.Retry(h.ctx, func() (Connection, error) {
		attempt++
		conn, err := m.transport.Subscribe(h.ctx, h.identity, h.deliver)
		if err != nil {
			if h.ctx.Err() != nil {
				return nil, backoff.Permanent(h.ctx.Err())
			}
			logger.Debug("subscribe attempt failed", "attempt", attempt, "error", err)
			return nil, err
		}
		return conn, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(m.opts.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Warn("subscribe failed, backing off", "attempt", attempt, "wait", wait, "error", err)
		}),
	)
}

// supervise waits for the connection to drop and re-establishes it.
func (m *Manager) supervise(h *Handle, logger *slog.Logger) {
	defer close(h.done)

	for {
		conn := h.connection()
		if conn == nil {
			return
		}

		select {
		case <-h.ctx.Done():
			return
		case <-conn.Done():
		}
		if h.ctx.Err() != nil {
			return
		}

		logger.Warn("transport dropped, reconnecting", "error", conn.Err())
		_ = conn.Close()

		next, err := m.connect(h, logger)
		if err != nil {
			if h.ctx.Err() != nil {
				return
			}
			logger.Error("reconnect failed", "attempts", m.opts.MaxAttempts, "error", err)
			h.fail(fmt.Errorf("%w: %w", ErrSubscriptionFailed, err))
			m.release(h)
			return
		}
		if !h.attach(next) {
			_ = next.Close()
			return
		}
		logger.Info("subscription re-established")
	}
}
