// ABOUTME: Permission platform collaborators: static answers and an interactive terminal prompt.
// ABOUTME: The Platform interface is what the Gate calls to ask the user.

package permission

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Platform asks the user (or the OS) for notification permission.
// Calls may block for as long as the user takes to answer.
type Platform interface {
	RequestPermission(ctx context.Context) (State, error)
}

// PlatformFunc adapts a function to Platform.
type PlatformFunc func(ctx context.Context) (State, error)

// RequestPermission calls f.
func (f PlatformFunc) RequestPermission(ctx context.Context) (State, error) {
	return f(ctx)
}

// Static returns a platform that always answers s.
func Static(s State) Platform {
	return PlatformFunc(func(context.Context) (State, error) {
		return s, nil
	})
}

// Terminal prompts on Out and reads a y/n answer from In.
type Terminal struct {
	In       io.Reader
	Out      io.Writer
	Question string
}

// RequestPermission writes the question and waits for a line of input.
// Anything other than y/yes is a denial; end of input is an error.
func (t *Terminal) RequestPermission(ctx context.Context) (State, error) {
	question := t.Question
	if question == "" {
		question = "Show notifications when partners comment on your paused items?"
	}
	fmt.Fprintf(t.Out, "%s [y/N] ", question)

	lineCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(t.In).ReadString('\n')
		if err != nil && line == "" {
			errCh <- fmt.Errorf("reading answer: %w", err)
			return
		}
		lineCh <- line
	}()

	select {
	case <-ctx.Done():
		return Unknown, ctx.Err()
	case err := <-errCh:
		return Unknown, err
	case line := <-lineCh:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return Granted, nil
		default:
			return Denied, nil
		}
	}
}
