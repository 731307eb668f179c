// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides notification inbox persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// pragmas in the DSN apply to every pooled connection
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// each pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS notifications (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			event_id   TEXT NOT NULL,
			thread_id  TEXT NOT NULL DEFAULT '',
			author_id  TEXT NOT NULL DEFAULT '',
			summary    TEXT NOT NULL,
			created_at TEXT NOT NULL,
			read_at    TEXT,

			UNIQUE (user_id, event_id)
		);

		CREATE INDEX IF NOT EXISTS idx_notifications_user_created
			ON notifications(user_id, created_at);

		CREATE INDEX IF NOT EXISTS idx_notifications_user_unread
			ON notifications(user_id) WHERE read_at IS NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// SaveNotification inserts n. If the user already has a notification for
// n.EventID it returns ErrDuplicateNotification.
func (s *SQLiteStore) SaveNotification(ctx context.Context, n *Notification) error {
	if n.ID == "" || n.UserID == "" || n.EventID == "" {
		return errors.New("notification requires id, user_id and event_id")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO notifications (id, user_id, event_id, thread_id, author_id, summary, created_at, read_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		n.ID,
		n.UserID,
		n.EventID,
		n.ThreadID,
		n.AuthorID,
		n.Summary,
		n.CreatedAt.UTC().Format(timeLayout),
		formatNullableTime(n.ReadAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateNotification
		}
		return fmt.Errorf("inserting notification: %w", err)
	}

	s.logger.Debug("saved notification", "id", n.ID, "user_id", n.UserID, "event_id", n.EventID)
	return nil
}

// GetNotification retrieves a notification by ID.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetNotification(ctx context.Context, id string) (*Notification, error) {
	query := `
		SELECT id, user_id, event_id, thread_id, author_id, summary, created_at, read_at
		FROM notifications
		WHERE id = ?
	`

	n, err := scanNotification(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns the user's notifications, newest first.
func (s *SQLiteStore) ListNotifications(ctx context.Context, userID string, opts ListOptions) ([]*Notification, error) {
	query := `
		SELECT id, user_id, event_id, thread_id, author_id, summary, created_at, read_at
		FROM notifications
		WHERE user_id = ?
	`
	args := []any{userID}
	if opts.UnreadOnly {
		query += " AND read_at IS NULL"
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notifications: %w", err)
	}
	return out, nil
}

// MarkAllRead marks the user's unread notifications read.
func (s *SQLiteStore) MarkAllRead(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read_at = ? WHERE user_id = ? AND read_at IS NULL`,
		time.Now().UTC().Format(timeLayout), userID)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting updated notifications: %w", err)
	}
	return int(n), nil
}

// CountUnread returns how many notifications of userID are unread.
func (s *SQLiteStore) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read_at IS NULL`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*Notification, error) {
	var n Notification
	var createdAtStr string
	var readAtStr sql.NullString

	if err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.EventID,
		&n.ThreadID,
		&n.AuthorID,
		&n.Summary,
		&createdAtStr,
		&readAtStr,
	); err != nil {
		return nil, err
	}

	var err error
	n.CreatedAt, err = time.Parse(timeLayout, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if readAtStr.Valid {
		readAt, err := time.Parse(timeLayout, readAtStr.String)
		if err != nil {
			return nil, fmt.Errorf("parsing read_at: %w", err)
		}
		n.ReadAt = &readAt
	}
	return &n, nil
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}
