// ABOUTME: Notifier that records notifications as structured log lines.

package notify

import (
	"context"
	"log/slog"
)

// LogNotifier logs each notification at info level.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. Pass nil logger for default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notify")}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	l.logger.InfoContext(ctx, "comment notification",
		"user_id", n.UserID.String(),
		"event_id", n.EventID,
		"thread_id", n.ThreadID,
		"author_id", n.AuthorID,
		"summary", n.Summary)
	return nil
}
