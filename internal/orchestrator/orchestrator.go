// ABOUTME: Notification orchestrator coordinating permission, subscription, and delivery.
// ABOUTME: Serializes identity transitions and pumps deduplicated events to the notifier.

package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/2389/pause-notify/internal/event"
	"github.com/2389/pause-notify/internal/identity"
	"github.com/2389/pause-notify/internal/notify"
	"github.com/2389/pause-notify/internal/permission"
	"github.com/2389/pause-notify/internal/subscription"
)

const defaultQueueSize = 256

// PermissionGate decides whether notifications may be shown.
type PermissionGate interface {
	Ensure(ctx context.Context) (permission.State, error)
}

// Subscriptions opens and closes the comment subscription.
type Subscriptions interface {
	Open(ctx context.Context, userID identity.ID, sink subscription.Sink) (*subscription.Handle, error)
	Close(h *subscription.Handle)
}

// Deduplicator suppresses events already delivered to an identity.
type Deduplicator interface {
	ShouldDeliver(userID identity.ID, eventID string) bool
	Reset(userID identity.ID)
}

// Config wires an Orchestrator.
type Config struct {
	Gate          PermissionGate
	Subscriptions Subscriptions
	Dedupe        Deduplicator
	Notifier      notify.Notifier

	// QueueSize bounds events waiting for the notifier per session.
	QueueSize int
	// OnStatus is called after every status change, in order. It must not
	// call Teardown.
	OnStatus func(Status)
	Logger   *slog.Logger
}

// Orchestrator owns the notification pipeline for one process.
type Orchestrator struct {
	gate      PermissionGate
	subs      Subscriptions
	dedup     Deduplicator
	notifier  notify.Notifier
	queueSize int
	onStatus  func(Status)
	logger    *slog.Logger

	// transitionMu is held for the whole of a transition or teardown
	transitionMu sync.Mutex

	// listenerMu keeps OnStatus calls in status order
	listenerMu sync.Mutex

	mu       sync.Mutex
	status   Status
	target   identity.ID
	gen      uint64
	cancel   context.CancelFunc
	session  *session
	inflight int
	idle     chan struct{}
	closed   bool
}

// New creates an idle orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Gate == nil || cfg.Subscriptions == nil || cfg.Dedupe == nil || cfg.Notifier == nil {
		return nil, errors.New("orchestrator: gate, subscriptions, dedupe and notifier are required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	idle := make(chan struct{})
	close(idle)

	return &Orchestrator{
		gate:      cfg.Gate,
		subs:      cfg.Subscriptions,
		dedup:     cfg.Dedupe,
		notifier:  cfg.Notifier,
		queueSize: cfg.QueueSize,
		onStatus:  cfg.OnStatus,
		logger:    logger.With("component", "orchestrator"),
		idle:      idle,
	}, nil
}

// Status returns the current status.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// SetIdentity moves the orchestrator to id, or to Idle for identity.None.
// It returns immediately; the transition runs in the background. Setting
// the identity that is already active or being set up does nothing, while
// setting a Disabled identity again retries it from the start.
func (o *Orchestrator) SetIdentity(id identity.ID) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		o.logger.Debug("ignoring identity change after teardown", "user_id", id.String())
		return
	}
	if id == o.target && (o.inflight > 0 || o.status.State != Disabled) {
		o.mu.Unlock()
		return
	}

	o.target = id
	o.gen++
	gen := o.gen
	if o.cancel != nil {
		o.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	if o.inflight == 0 {
		o.idle = make(chan struct{})
	}
	o.inflight++
	o.mu.Unlock()

	go func() {
		defer o.transitionDone()
		defer cancel()
		o.transition(ctx, gen, id)
	}()
}

// Bind follows p: the current identity is applied now and every later
// change as it happens. The returned func stops following.
func (o *Orchestrator) Bind(p *identity.Provider) func() {
	stop := p.Watch(o.SetIdentity)
	id, _ := p.Current()
	o.SetIdentity(id)
	return stop
}

// Wait blocks until no transition is pending or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	idle := o.idle
	o.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Teardown cancels any transition in progress, closes the subscription, and
// clears delivery state. It blocks until done and may be called repeatedly;
// identity changes after Teardown are ignored.
func (o *Orchestrator) Teardown() {
	o.mu.Lock()
	first := !o.closed
	o.closed = true
	o.gen++
	o.target = identity.None
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.mu.Unlock()

	o.transitionMu.Lock()
	defer o.transitionMu.Unlock()

	last := o.Status().Identity
	o.stopSession()
	if !last.IsZero() {
		o.dedup.Reset(last)
	}
	o.update(nil, Status{State: Idle})

	if first {
		o.logger.Info("torn down")
	}
}

func (o *Orchestrator) transitionDone() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inflight--
	if o.inflight == 0 {
		close(o.idle)
	}
}

// transition runs with transitionMu held. gen identifies the request; any
// newer request makes this one stale.
func (o *Orchestrator) transition(ctx context.Context, gen uint64, id identity.ID) {
	o.transitionMu.Lock()
	defer o.transitionMu.Unlock()

	if !o.current(gen) {
		return
	}

	o.stopSession()

	if id.IsZero() {
		o.publish(gen, Status{State: Idle})
		return
	}

	logger := o.logger.With("user_id", id.String())

	o.publish(gen, Status{State: Initializing, Identity: id})
	perm, err := o.gate.Ensure(ctx)
	if ctx.Err() != nil {
		logger.Debug("discarding permission result for cancelled session", "state", perm.String())
		return
	}
	if err != nil || perm != permission.Granted {
		logger.Info("notifications disabled", "permission", perm.String())
		o.publish(gen, Status{State: Disabled, Identity: id, Err: permission.ErrPermissionDenied})
		return
	}

	o.publish(gen, Status{State: Subscribing, Identity: id})
	s := o.newSession(id)
	h, err := o.subs.Open(ctx, id, s.enqueue)
	if err != nil {
		s.halt()
		if ctx.Err() != nil {
			logger.Debug("subscription abandoned for cancelled session")
			return
		}
		logger.Warn("notifications disabled", "error", err)
		o.publish(gen, Status{State: Disabled, Identity: id, Err: err})
		return
	}
	s.handle = h

	o.mu.Lock()
	o.session = s
	o.mu.Unlock()

	// a session superseded from here on is stopped by the next transition
	s.start()
	go o.watchFailure(s)

	o.publish(gen, Status{State: Active, Identity: id})
}

// stopSession closes the live session, if any. Caller holds transitionMu.
func (o *Orchestrator) stopSession() {
	o.mu.Lock()
	s := o.session
	o.session = nil
	o.mu.Unlock()

	if s == nil {
		return
	}
	o.subs.Close(s.handle)
	s.halt()
	o.dedup.Reset(s.identity)
	o.logger.Debug("session stopped", "user_id", s.identity.String())
}

// watchFailure disables the orchestrator if s's subscription gives up.
func (o *Orchestrator) watchFailure(s *session) {
	select {
	case <-s.stop:
		return
	case <-s.handle.Failed():
	}

	err := s.handle.Err()
	moved := o.update(func() bool {
		return o.session == s && o.status.State == Active
	}, Status{State: Disabled, Identity: s.identity, Err: err})
	if moved {
		o.logger.Warn("subscription lost, notifications disabled", "user_id", s.identity.String(), "error", err)
	}
}

func (o *Orchestrator) current(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return gen == o.gen
}

// publish records st if gen is still the latest request.
func (o *Orchestrator) publish(gen uint64, st Status) bool {
	return o.update(func() bool { return gen == o.gen }, st)
}

// update records st if cond (evaluated under mu) holds, then tells the
// listener. A nil cond always applies.
func (o *Orchestrator) update(cond func() bool, st Status) bool {
	o.listenerMu.Lock()
	defer o.listenerMu.Unlock()

	o.mu.Lock()
	if cond != nil && !cond() {
		o.mu.Unlock()
		return false
	}
	prev := o.status
	o.status = st
	o.mu.Unlock()

	if prev.State == st.State && prev.Identity == st.Identity && prev.Err == nil && st.Err == nil {
		return true
	}
	o.logger.Debug("status changed", "from", prev.String(), "to", st.String(), "error", st.Err)
	if o.onStatus != nil {
		o.onStatus(st)
	}
	return true
}

// session is the delivery pipeline for one subscribed identity.
type session struct {
	o        *Orchestrator
	identity identity.ID
	handle   *subscription.Handle
	queue    chan event.Comment

	ctx      context.Context
	cancel   context.CancelFunc
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	started  bool
}

func (o *Orchestrator) newSession(id identity.ID) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		o:        o,
		identity: id,
		queue:    make(chan event.Comment, o.queueSize),
		ctx:      ctx,
		cancel:   cancel,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// enqueue is the subscription sink. It never blocks the transport.
func (s *session) enqueue(c event.Comment) {
	select {
	case s.queue <- c:
	default:
		s.o.logger.Warn("notification queue full, dropping event",
			"user_id", s.identity.String(), "event_id", c.ID)
	}
}

// start launches the pump. Caller holds transitionMu.
func (s *session) start() {
	s.started = true
	go s.pump()
}

func (s *session) pump() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case c := <-s.queue:
			select {
			case <-s.stop:
				return
			default:
			}
			s.deliver(c)
		}
	}
}

func (s *session) deliver(c event.Comment) {
	logger := s.o.logger
	if !s.o.dedup.ShouldDeliver(s.identity, c.ID) {
		logger.Debug("suppressed duplicate event", "user_id", s.identity.String(), "event_id", c.ID)
		return
	}
	if err := s.o.notifier.Notify(s.ctx, notify.FromComment(s.identity, c)); err != nil {
		logger.Warn("notification failed", "user_id", s.identity.String(), "event_id", c.ID, "error", err)
	}
}

// halt stops the pump and waits for it to exit. Safe before pump starts.
func (s *session) halt() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.cancel()
	})
	if s.started {
		<-s.done
	}
}
