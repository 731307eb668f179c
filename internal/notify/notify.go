// ABOUTME: Notification model, Notifier interface, and fan-out combinator.
// ABOUTME: Builds notifications from comment events with plain-text summaries.

package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2389/pause-notify/internal/event"
	"github.com/2389/pause-notify/internal/identity"
)

// Notification is what the user is told about a new comment.
type Notification struct {
	EventID   string
	UserID    identity.ID
	ThreadID  string
	AuthorID  string
	Summary   string
	CreatedAt time.Time
}

// FromComment builds the notification for c as seen by user.
func FromComment(user identity.ID, c event.Comment) Notification {
	return Notification{
		EventID:   c.ID,
		UserID:    user,
		ThreadID:  c.ThreadID,
		AuthorID:  c.AuthorID,
		Summary:   event.Summarize(c.Body),
		CreatedAt: c.CreatedAt,
	}
}

// Title is the one-line headline for n.
func (n Notification) Title() string {
	if n.AuthorID == "" {
		return "New comment"
	}
	return fmt.Sprintf("New comment from %s", n.AuthorID)
}

// Notifier shows a notification to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Fanout delivers to every notifier in order.
type Fanout []Notifier

// Notify calls each notifier even if an earlier one fails and returns the
// joined errors.
func (f Fanout) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, target := range f {
		if err := target.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
