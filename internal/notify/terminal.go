// ABOUTME: Notifier that prints coloured notification lines to a terminal.

package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// TerminalNotifier writes one line per notification.
type TerminalNotifier struct {
	mu   sync.Mutex
	out  io.Writer
	bell bool

	stamp  *color.Color
	title  *color.Color
	thread *color.Color
}

// NewTerminalNotifier writes to out; bell rings the terminal bell first.
func NewTerminalNotifier(out io.Writer, bell bool) *TerminalNotifier {
	return &TerminalNotifier{
		out:    out,
		bell:   bell,
		stamp:  color.New(color.Faint),
		title:  color.New(color.FgCyan, color.Bold),
		thread: color.New(color.FgYellow),
	}
}

func (t *TerminalNotifier) Notify(_ context.Context, n Notification) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bell {
		if _, err := io.WriteString(t.out, "\a"); err != nil {
			return fmt.Errorf("writing to terminal: %w", err)
		}
	}

	at := n.CreatedAt
	stamp := "--:--"
	if !at.IsZero() {
		stamp = at.Local().Format("15:04")
	}

	line := fmt.Sprintf("%s %s", t.stamp.Sprint(stamp), t.title.Sprint(n.Title()))
	if n.ThreadID != "" {
		line += " " + t.thread.Sprintf("[%s]", n.ThreadID)
	}
	if n.Summary != "" {
		line += ": " + n.Summary
	}

	if _, err := fmt.Fprintln(t.out, line); err != nil {
		return fmt.Errorf("writing to terminal: %w", err)
	}
	return nil
}
