// ABOUTME: Notifier that posts comment notifications to a Matrix room.
// ABOUTME: Uses mautrix with a bot access token; no end-to-end encryption.

package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

// MatrixConfig identifies the bot account and target room.
type MatrixConfig struct {
	Homeserver  string
	UserID      string
	AccessToken string
	RoomID      string
}

// MatrixNotifier sends each notification as a text message.
type MatrixNotifier struct {
	client *mautrix.Client
	room   id.RoomID
}

// NewMatrixNotifier creates a client for cfg. It does not contact the
// homeserver until the first notification.
func NewMatrixNotifier(cfg MatrixConfig) (*MatrixNotifier, error) {
	if cfg.Homeserver == "" || cfg.AccessToken == "" || cfg.RoomID == "" {
		return nil, errors.New("matrix notifier requires homeserver, access_token and room_id")
	}

	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}

	return &MatrixNotifier{client: client, room: id.RoomID(cfg.RoomID)}, nil
}

func (m *MatrixNotifier) Notify(ctx context.Context, n Notification) error {
	if _, err := m.client.SendText(ctx, m.room, formatMatrixText(n)); err != nil {
		return fmt.Errorf("sending to matrix room %s: %w", m.room, err)
	}
	return nil
}

func formatMatrixText(n Notification) string {
	var b strings.Builder
	b.WriteString(n.Title())
	if n.ThreadID != "" {
		fmt.Fprintf(&b, " on %s", n.ThreadID)
	}
	if n.Summary != "" {
		b.WriteString(": ")
		b.WriteString(n.Summary)
	}
	return b.String()
}
