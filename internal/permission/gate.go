// ABOUTME: Notification permission gate that prompts at most once per process.
// ABOUTME: Coalesces concurrent callers onto a single in-flight prompt.

package permission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// ErrPermissionDenied is surfaced when notifications are not allowed.
var ErrPermissionDenied = errors.New("notification permission denied")

// State is the recorded notification permission.
type State int

const (
	Unknown State = iota
	Granted
	Denied
)

func (s State) String() string {
	switch s {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// ParseState converts "granted", "denied" or "unknown" into a State. "prompt"
// is accepted as Unknown.
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "granted":
		return Granted, nil
	case "denied":
		return Denied, nil
	case "unknown", "prompt", "":
		return Unknown, nil
	default:
		return Unknown, fmt.Errorf("invalid permission state %q", s)
	}
}

// promptKey is the single singleflight key; there is only ever one prompt.
const promptKey = "notifications"

// Gate records the process-wide permission decision.
type Gate struct {
	platform Platform
	logger   *slog.Logger

	mu    sync.Mutex
	state State

	group   singleflight.Group
	prompts atomic.Int64
}

// NewGate creates a gate backed by platform. Pass nil logger for default.
func NewGate(platform Platform, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		platform: platform,
		logger:   logger.With("component", "permission"),
	}
}

// State returns the recorded state without prompting.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Prompts returns how many times the platform has been asked.
func (g *Gate) Prompts() int64 {
	return g.prompts.Load()
}

// Ensure returns the recorded state, prompting the platform if none is
// recorded yet. If ctx ends first, Ensure returns ctx.Err(); the prompt keeps
// going and its answer is still recorded.
func (g *Gate) Ensure(ctx context.Context) (State, error) {
	if s := g.State(); s != Unknown {
		return s, nil
	}

	promptCtx := context.WithoutCancel(ctx)
	ch := g.group.DoChan(promptKey, func() (any, error) {
		return g.prompt(promptCtx), nil
	})

	select {
	case <-ctx.Done():
		return Unknown, ctx.Err()
	case res := <-ch:
		s, _ := res.Val.(State)
		return s, nil
	}
}

// Observe records a change reported by the platform itself, such as the user
// revoking permission in system settings.
func (g *Gate) Observe(s State) {
	g.mu.Lock()
	prev := g.state
	g.state = s
	g.mu.Unlock()

	if prev != s {
		g.logger.Info("permission changed by platform", "from", prev.String(), "to", s.String())
	}
}

// prompt asks the platform unless a decision landed since the caller checked.
func (g *Gate) prompt(ctx context.Context) State {
	if s := g.State(); s != Unknown {
		return s
	}

	g.prompts.Add(1)
	s, err := g.platform.RequestPermission(ctx)
	if err != nil {
		g.logger.Warn("permission request failed, treating as denied", "error", err)
		s = Denied
	}
	if s == Unknown {
		// a dismissed prompt counts as a refusal for this process
		s = Denied
	}

	g.mu.Lock()
	if g.state == Unknown {
		g.state = s
	}
	s = g.state
	g.mu.Unlock()

	g.logger.Info("notification permission decided", "state", s.String())
	return s
}
