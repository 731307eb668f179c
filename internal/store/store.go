// ABOUTME: Inbox data model and Store interface for delivered notifications
// ABOUTME: Defines notification records, list options, and sentinel errors

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateNotification is returned when a user already has a
// notification for the same event.
var ErrDuplicateNotification = errors.New("notification already stored")

// Notification is one comment notification shown to one user.
type Notification struct {
	ID        string
	UserID    string
	EventID   string
	ThreadID  string
	AuthorID  string
	Summary   string
	CreatedAt time.Time
	ReadAt    *time.Time
}

// Unread reports whether the notification has not been marked read.
func (n *Notification) Unread() bool {
	return n.ReadAt == nil
}

// ListOptions filters ListNotifications.
type ListOptions struct {
	UnreadOnly bool
	// Limit caps the result; zero means no limit.
	Limit int
}

// Store is the notification inbox.
type Store interface {
	SaveNotification(ctx context.Context, n *Notification) error
	GetNotification(ctx context.Context, id string) (*Notification, error)
	// ListNotifications returns the user's notifications, newest first.
	ListNotifications(ctx context.Context, userID string, opts ListOptions) ([]*Notification, error)
	// MarkAllRead marks every unread notification of userID read and returns
	// how many changed.
	MarkAllRead(ctx context.Context, userID string) (int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	Close() error
}
