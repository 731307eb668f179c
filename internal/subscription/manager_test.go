// ABOUTME: Tests for the subscription manager.
// ABOUTME: Single live handle, idempotent close, bounded backoff, reconnect, and cancellation.

package subscription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/pause-notify/internal/event"
	"github.com/2389/pause-notify/internal/identity"
)

var errUnavailable = errors.New("transport unavailable")

type fakeConn struct {
	userID identity.ID
	sink   Sink

	once   sync.Once
	done   chan struct{}
	mu     sync.Mutex
	err    error
	closed bool
}

func (c *fakeConn) Done() <-chan struct{} { return c.done }

func (c *fakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.end(nil)
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// drop simulates the network going away underneath the subscription.
func (c *fakeConn) drop() {
	c.end(errors.New("connection reset"))
}

func (c *fakeConn) end(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	})
}

type fakeTransport struct {
	mu         sync.Mutex
	failNext   int
	failAll    bool
	subscribes int
	conns      []*fakeConn
}

func (f *fakeTransport) Subscribe(_ context.Context, userID identity.ID, sink Sink) (Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.subscribes++
	if f.failAll || f.failNext > 0 {
		if f.failNext > 0 {
			f.failNext--
		}
		return nil, errUnavailable
	}
	c := &fakeConn{userID: userID, sink: sink, done: make(chan struct{})}
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeTransport) setFailAll(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = v
}

func (f *fakeTransport) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes
}

func (f *fakeTransport) live() []*fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*fakeConn
	for _, c := range f.conns {
		select {
		case <-c.done:
		default:
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeTransport) last() *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		return nil
	}
	return f.conns[len(f.conns)-1]
}

func testOptions() Options {
	return Options{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// recorder collects events delivered to a sink.
type recorder struct {
	mu     sync.Mutex
	events []event.Comment
}

func (r *recorder) sink(ev event.Comment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(r.events))
	for i, ev := range r.events {
		ids[i] = ev.ID
	}
	return ids
}

func TestManager_OpenDeliversInArrivalOrder(t *testing.T) {
	tr := &fakeTransport{}
	m := NewManager(tr, testOptions())
	rec := &recorder{}

	h, err := m.Open(t.Context(), "alice", rec.sink)
	require.NoError(t, err)
	defer m.Close(h)

	assert.Equal(t, identity.ID("alice"), h.Identity())
	assert.Same(t, h, m.Current())

	conn := tr.last()
	for i := range 5 {
		conn.sink(event.Comment{ID: fmt.Sprintf("c%d", i)})
	}

	assert.Equal(t, []string{"c0", "c1", "c2", "c3", "c4"}, rec.ids())
}

func TestManager_OpenRequiresIdentity(t *testing.T) {
	m := NewManager(&fakeTransport{}, testOptions())

	h, err := m.Open(t.Context(), identity.None, func(event.Comment) {})

	assert.ErrorIs(t, err, ErrNoIdentity)
	assert.Nil(t, h)
}

func TestManager_OpenClosesPreviousHandleFirst(t *testing.T) {
	tr := &fakeTransport{}
	m := NewManager(tr, testOptions())

	first, err := m.Open(t.Context(), "alice", func(event.Comment) {})
	require.NoError(t, err)
	firstConn := tr.last()

	second, err := m.Open(t.Context(), "bob", func(event.Comment) {})
	require.NoError(t, err)
	defer m.Close(second)

	assert.True(t, first.Closed())
	assert.True(t, firstConn.isClosed())
	assert.Same(t, second, m.Current())
	assert.Len(t, tr.live(), 1)
	assert.Equal(t, identity.ID("bob"), tr.live()[0].userID)
}

func TestManager_SingleLiveSubscriptionUnderConcurrentOpens(t *testing.T) {
	tr := &fakeTransport{}
	m := NewManager(tr, testOptions())

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Go(func() {
			_, _ = m.Open(context.Background(), identity.ID(fmt.Sprintf("user-%d", i%4)), func(event.Comment) {})
			assert.LessOrEqual(t, len(tr.live()), 1)
		})
	}
	wg.Wait()

	assert.Len(t, tr.live(), 1)
	m.Close(m.Current())
	assert.Empty(t, tr.live())
}

func TestManager_CloseIsIdempotent(t *testing.T) {
	tr := &fakeTransport{}
	m := NewManager(tr, testOptions())
	rec := &recorder{}

	h, err := m.Open(t.Context(), "alice", rec.sink)
	require.NoError(t, err)
	conn := tr.last()

	m.Close(h)
	m.Close(h)
	m.Close(nil)
	unknown := newHandle("unknown", "carol", nil)
	close(unknown.done)
	m.Close(unknown)

	assert.True(t, h.Closed())
	assert.True(t, conn.isClosed())
	assert.Nil(t, m.Current())

	// a straggling event from the transport is not delivered
	conn.sink(event.Comment{ID: "late"})
	assert.Empty(t, rec.ids())
}

func TestManager_RetriesThenSucceeds(t *testing.T) {
	tr := &fakeTransport{failNext: 2}
	m := NewManager(tr, testOptions())

	h, err := m.Open(t.Context(), "alice", func(event.Comment) {})
	require.NoError(t, err)
	defer m.Close(h)

	assert.Equal(t, 3, tr.subscribeCount())
}

func TestManager_FailsAfterBoundedAttempts(t *testing.T) {
	tr := &fakeTransport{failAll: true}
	m := NewManager(tr, testOptions())

	h, err := m.Open(t.Context(), "alice", func(event.Comment) {})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubscriptionFailed)
	assert.ErrorIs(t, err, errUnavailable)
	assert.Nil(t, h, "no partial handle is returned")
	assert.Nil(t, m.Current(), "no partial handle is held")
	assert.Equal(t, 3, tr.subscribeCount())
}

func TestManager_CancelAbortsBackoff(t *testing.T) {
	tr := &fakeTransport{failAll: true}
	opts := testOptions()
	opts.MaxAttempts = 10
	opts.InitialInterval = time.Minute
	opts.MaxInterval = time.Minute
	m := NewManager(tr, opts)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := m.Open(ctx, "alice", func(event.Comment) {})
		errCh <- err
	}()

	require.Eventually(t, func() bool { return tr.subscribeCount() == 1 },
		time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrSubscriptionFailed)
	case <-time.After(time.Second):
		t.Fatal("Open did not return after cancel")
	}
	assert.Nil(t, m.Current())
	assert.Equal(t, 1, tr.subscribeCount())
}

func TestManager_CloseWhileOpeningIsNotFailure(t *testing.T) {
	tr := &fakeTransport{failAll: true}
	opts := testOptions()
	opts.MaxAttempts = 10
	opts.InitialInterval = time.Minute
	opts.MaxInterval = time.Minute
	m := NewManager(tr, opts)

	errCh := make(chan error, 1)
	go func() {
		_, err := m.Open(t.Context(), "alice", func(event.Comment) {})
		errCh <- err
	}()

	require.Eventually(t, func() bool { return tr.subscribeCount() == 1 && m.Current() != nil },
		time.Second, time.Millisecond)
	m.Close(m.Current())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrSubscriptionFailed)
	case <-time.After(time.Second):
		t.Fatal("Open did not return after Close")
	}
	assert.Nil(t, m.Current())
}

func TestManager_ReconnectsAfterDrop(t *testing.T) {
	tr := &fakeTransport{}
	m := NewManager(tr, testOptions())
	rec := &recorder{}

	h, err := m.Open(t.Context(), "alice", rec.sink)
	require.NoError(t, err)
	defer m.Close(h)

	first := tr.last()
	first.sink(event.Comment{ID: "before"})
	first.drop()

	require.Eventually(t, func() bool {
		live := tr.live()
		return len(live) == 1 && live[0] != first
	}, time.Second, time.Millisecond)

	tr.last().sink(event.Comment{ID: "after"})

	assert.Equal(t, []string{"before", "after"}, rec.ids())
	assert.NoError(t, h.Err())
	assert.False(t, h.Closed())
	assert.Same(t, h, m.Current())
}

func TestManager_ReconnectExhaustionFailsHandle(t *testing.T) {
	tr := &fakeTransport{}
	m := NewManager(tr, testOptions())

	h, err := m.Open(t.Context(), "alice", func(event.Comment) {})
	require.NoError(t, err)

	tr.setFailAll(true)
	tr.last().drop()

	select {
	case <-h.Failed():
	case <-time.After(time.Second):
		t.Fatal("handle did not report failure")
	}

	assert.ErrorIs(t, h.Err(), ErrSubscriptionFailed)
	assert.True(t, h.Closed())
	assert.Nil(t, m.Current())
	assert.Equal(t, 4, tr.subscribeCount(), "one open plus three reconnect attempts")

	// closing a failed handle is still a no-op
	m.Close(h)
}
