// ABOUTME: Notifier that persists notifications to the SQLite inbox.

package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/2389/pause-notify/internal/store"
)

// InboxNotifier saves each notification to the inbox store.
type InboxNotifier struct {
	store store.Store
	now   func() time.Time
}

// NewInboxNotifier wraps s.
func NewInboxNotifier(s store.Store) *InboxNotifier {
	return &InboxNotifier{store: s, now: time.Now}
}

// Notify stores n. A notification already in the inbox is not an error.
func (i *InboxNotifier) Notify(ctx context.Context, n Notification) error {
	created := n.CreatedAt
	if created.IsZero() {
		created = i.now()
	}

	err := i.store.SaveNotification(ctx, &store.Notification{
		ID:        uuid.New().String(),
		UserID:    n.UserID.String(),
		EventID:   n.EventID,
		ThreadID:  n.ThreadID,
		AuthorID:  n.AuthorID,
		Summary:   n.Summary,
		CreatedAt: created,
	})
	if errors.Is(err, store.ErrDuplicateNotification) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("saving to inbox: %w", err)
	}
	return nil
}
