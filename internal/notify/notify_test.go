// ABOUTME: Tests for notification building and the notifier targets
// ABOUTME: Covers fan-out error joining, terminal output, inbox persistence, and Matrix delivery

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/pause-notify/internal/event"
	"github.com/2389/pause-notify/internal/store"
)

func testNotification() Notification {
	return Notification{
		EventID:   "evt-1",
		UserID:    "alice",
		ThreadID:  "thread-9",
		AuthorID:  "bob",
		Summary:   "looks good to me",
		CreatedAt: time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
	}
}

func TestFromComment(t *testing.T) {
	c := event.Comment{
		ID:          "evt-1",
		ThreadID:    "thread-9",
		AuthorID:    "bob",
		RecipientID: "alice",
		CreatedAt:   time.Now(),
		Body:        "Looks **good**, ship it",
	}

	n := FromComment("alice", c)
	assert.Equal(t, "evt-1", n.EventID)
	assert.Equal(t, "alice", n.UserID.String())
	assert.Equal(t, "thread-9", n.ThreadID)
	assert.Equal(t, "bob", n.AuthorID)
	assert.Equal(t, "Looks good, ship it", n.Summary)
	assert.Equal(t, "New comment from bob", n.Title())

	n.AuthorID = ""
	assert.Equal(t, "New comment", n.Title())
}

func TestFanout_CallsEveryTargetAndJoinsErrors(t *testing.T) {
	errA := errors.New("a failed")
	errC := errors.New("c failed")

	var calls []string
	target := func(name string, err error) Notifier {
		return NotifierFunc(func(context.Context, Notification) error {
			calls = append(calls, name)
			return err
		})
	}

	f := Fanout{target("a", errA), target("b", nil), target("c", errC)}
	err := f.Notify(t.Context(), testNotification())

	assert.Equal(t, []string{"a", "b", "c"}, calls)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errC)

	assert.NoError(t, Fanout{target("ok", nil)}.Notify(t.Context(), testNotification()))
	assert.NoError(t, Fanout{}.Notify(t.Context(), testNotification()))
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, n.Notify(t.Context(), testNotification()))
	out := buf.String()
	assert.Contains(t, out, "comment notification")
	assert.Contains(t, out, "event_id=evt-1")
	assert.Contains(t, out, "author_id=bob")
}

func TestTerminalNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewTerminalNotifier(&buf, true)

	require.NoError(t, n.Notify(t.Context(), testNotification()))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\a"))
	assert.Contains(t, out, "New comment from bob")
	assert.Contains(t, out, "thread-9")
	assert.Contains(t, out, "looks good to me")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestTerminalNotifier_WriteError(t *testing.T) {
	err := NewTerminalNotifier(failingWriter{}, false).Notify(t.Context(), testNotification())
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestInboxNotifier(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "inbox.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := t.Context()
	n := NewInboxNotifier(s)

	require.NoError(t, n.Notify(ctx, testNotification()))
	// the same event again is already in the inbox
	require.NoError(t, n.Notify(ctx, testNotification()))

	list, err := s.ListNotifications(ctx, "alice", store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "evt-1", list[0].EventID)
	assert.Equal(t, "looks good to me", list[0].Summary)
	assert.True(t, list[0].Unread())
}

func TestInboxNotifier_DefaultsTimestamp(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "inbox.db"))
	require.NoError(t, err)
	defer s.Close()

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	n := NewInboxNotifier(s)
	n.now = func() time.Time { return fixed }

	in := testNotification()
	in.CreatedAt = time.Time{}
	require.NoError(t, n.Notify(t.Context(), in))

	list, err := s.ListNotifications(t.Context(), "alice", store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, fixed.Equal(list[0].CreatedAt))
}

func TestNewMatrixNotifier_RequiresConfig(t *testing.T) {
	_, err := NewMatrixNotifier(MatrixConfig{Homeserver: "https://matrix.example.org"})
	assert.Error(t, err)
}

func TestMatrixNotifier_SendsText(t *testing.T) {
	var mu sync.Mutex
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"event_id":"$evt1"}`))
	}))
	defer srv.Close()

	n, err := NewMatrixNotifier(MatrixConfig{
		Homeserver:  srv.URL,
		UserID:      "@notify:example.org",
		AccessToken: "secret-token",
		RoomID:      "!room:example.org",
	})
	require.NoError(t, err)

	require.NoError(t, n.Notify(t.Context(), testNotification()))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, gotPath, "/rooms/!room:example.org/send/m.room.message/")
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "m.text", gotBody["msgtype"])
	assert.Equal(t, "New comment from bob on thread-9: looks good to me", gotBody["body"])
}

func TestMatrixNotifier_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errcode":"M_FORBIDDEN","error":"not in room"}`))
	}))
	defer srv.Close()

	n, err := NewMatrixNotifier(MatrixConfig{Homeserver: srv.URL, AccessToken: "t", RoomID: "!room:example.org"})
	require.NoError(t, err)

	err = n.Notify(t.Context(), testNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "!room:example.org")
}
