// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers notification persistence, per-user uniqueness, ordering, and read state

package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func makeNotification(id, user, eventID string, created time.Time) *Notification {
	return &Notification{
		ID:        id,
		UserID:    user,
		EventID:   eventID,
		ThreadID:  "thread-1",
		AuthorID:  "bob",
		Summary:   "summary of " + eventID,
		CreatedAt: created,
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestNewSQLiteStore_InMemory(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := t.Context()
	require.NoError(t, store.SaveNotification(ctx, makeNotification("n-1", "alice", "evt-1", time.Now())))
	count, err := store.CountUnread(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSaveAndGetNotification(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	created := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	require.NoError(t, store.SaveNotification(ctx, makeNotification("n-1", "alice", "evt-1", created)))

	got, err := store.GetNotification(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, "evt-1", got.EventID)
	assert.Equal(t, "thread-1", got.ThreadID)
	assert.Equal(t, "bob", got.AuthorID)
	assert.Equal(t, "summary of evt-1", got.Summary)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.True(t, got.Unread())
}

func TestGetNotification_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetNotification(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveNotification_RequiresKeys(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveNotification(t.Context(), &Notification{ID: "n-1", UserID: "alice"})
	assert.Error(t, err)
}

func TestSaveNotification_DuplicateEventPerUser(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	require.NoError(t, store.SaveNotification(ctx, makeNotification("n-1", "alice", "evt-1", time.Now())))

	err := store.SaveNotification(ctx, makeNotification("n-2", "alice", "evt-1", time.Now()))
	assert.ErrorIs(t, err, ErrDuplicateNotification)

	// same event for another user is a separate notification
	require.NoError(t, store.SaveNotification(ctx, makeNotification("n-3", "carol", "evt-1", time.Now())))

	list, err := store.ListNotifications(ctx, "alice", ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "n-1", list[0].ID)
}

func TestListNotifications_NewestFirstWithLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 5 {
		// sub-second offsets exercise timestamp sorting
		created := base.Add(time.Duration(i) * 100 * time.Millisecond)
		n := makeNotification(fmt.Sprintf("n-%d", i), "alice", fmt.Sprintf("evt-%d", i), created)
		require.NoError(t, store.SaveNotification(ctx, n))
	}

	list, err := store.ListNotifications(ctx, "alice", ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 5)
	assert.Equal(t, "n-4", list[0].ID)
	assert.Equal(t, "n-0", list[4].ID)

	list, err = store.ListNotifications(ctx, "alice", ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n-4", list[0].ID)
	assert.Equal(t, "n-3", list[1].ID)

	list, err = store.ListNotifications(ctx, "nobody", ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMarkAllRead(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	for i := range 3 {
		n := makeNotification(fmt.Sprintf("n-%d", i), "alice", fmt.Sprintf("evt-%d", i), time.Now())
		require.NoError(t, store.SaveNotification(ctx, n))
	}
	require.NoError(t, store.SaveNotification(ctx, makeNotification("c-1", "carol", "evt-0", time.Now())))

	count, err := store.CountUnread(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	changed, err := store.MarkAllRead(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, changed)

	changed, err = store.MarkAllRead(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, changed)

	unread, err := store.ListNotifications(ctx, "alice", ListOptions{UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread)

	all, err := store.ListNotifications(ctx, "alice", ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.NotNil(t, all[0].ReadAt)

	count, err = store.CountUnread(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSaveNotification_Concurrent(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := range 20 {
		wg.Go(func() {
			// half the writers race on the same event
			eventID := fmt.Sprintf("evt-%d", i%10)
			errs <- store.SaveNotification(ctx, makeNotification(fmt.Sprintf("n-%d", i), "alice", eventID, time.Now()))
		})
	}
	wg.Wait()
	close(errs)

	var saved, dupes int
	for err := range errs {
		switch err {
		case nil:
			saved++
		case ErrDuplicateNotification:
			dupes++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 10, saved)
	assert.Equal(t, 10, dupes)
}
