// Package notify delivers comment notifications to the user.
//
// A Notifier receives one Notification per comment that passed
// deduplication. The orchestrator logs a failed delivery and moves on; it
// never retries, so notifiers should do their own bounded retrying if the
// target needs it.
//
// Targets:
//
//   - TerminalNotifier prints a coloured line (optionally ringing the bell).
//   - InboxNotifier records the notification in the SQLite inbox.
//   - MatrixNotifier posts to a Matrix room.
//   - LogNotifier writes a structured log record.
//
// Fanout combines several targets; every target is attempted and the errors
// are joined.
package notify
