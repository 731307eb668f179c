// Package store persists delivered notifications in SQLite.
//
// The inbox is a history of what was shown to each user, so a notification
// missed on screen can be reviewed later with the inbox command. Rows are
// keyed by (user_id, event_id): saving the same comment twice for one user
// returns ErrDuplicateNotification and leaves the first row untouched.
//
// SQLiteStore uses modernc.org/sqlite (pure Go, no cgo) with WAL enabled.
// The schema is created on open.
package store
