// ABOUTME: SSE client transport that subscribes to a relay's comment stream.
// ABOUTME: Satisfies the subscription transport contract over HTTP.

package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/2389/pause-notify/internal/event"
	"github.com/2389/pause-notify/internal/identity"
	"github.com/2389/pause-notify/internal/subscription"
)

// ErrStreamEnded is reported when the relay closes a stream.
var ErrStreamEnded = errors.New("stream ended by relay")

// TokenSource returns the bearer token to use for userID.
type TokenSource func(userID identity.ID) (string, error)

// StaticToken always returns token.
func StaticToken(token string) TokenSource {
	return func(identity.ID) (string, error) { return token, nil }
}

// SSETransport subscribes to a relay over Server-Sent Events.
type SSETransport struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
	logger  *slog.Logger
}

// NewSSETransport creates a transport for the relay at baseURL. A nil
// client uses a default one without a timeout, since streams are long-lived.
func NewSSETransport(baseURL string, tokens TokenSource, client *http.Client, logger *slog.Logger) *SSETransport {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SSETransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		client:  client,
		logger:  logger.With("component", "sse"),
	}
}

// Subscribe opens the stream for userID. It returns once the relay accepts
// the request; events then flow to sink from a reader goroutine.
func (t *SSETransport) Subscribe(ctx context.Context, userID identity.ID, sink subscription.Sink) (subscription.Connection, error) {
	token, err := t.tokens(userID)
	if err != nil {
		return nil, fmt.Errorf("getting token: %w", err)
	}

	streamURL := fmt.Sprintf("%s/api/users/%s/comments/stream", t.baseURL, url.PathEscape(userID.String()))
	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, streamURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connecting to relay: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("relay returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	c := &sseConn{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go c.read(streamCtx, resp.Body, sink, t.logger.With("user_id", userID.String()))
	return c, nil
}

type sseConn struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func (c *sseConn) Done() <-chan struct{} {
	return c.done
}

func (c *sseConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close stops the stream and waits for the reader to exit.
func (c *sseConn) Close() error {
	c.cancel()
	<-c.done
	return nil
}

func (c *sseConn) read(ctx context.Context, body io.ReadCloser, sink subscription.Sink, logger *slog.Logger) {
	defer close(c.done)
	defer body.Close()

	err := readSSE(ctx, body, func(eventType, data string) {
		switch eventType {
		case "comment":
			var comment event.Comment
			if err := json.Unmarshal([]byte(data), &comment); err != nil {
				logger.Warn("discarding malformed comment event", "error", err)
				return
			}
			sink(comment)
		case "ping":
		default:
			logger.Debug("ignoring unknown event", "event", eventType)
		}
	})
	if err == nil {
		err = ErrStreamEnded
	}
	if ctx.Err() != nil {
		err = ctx.Err()
	}

	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

// readSSE parses an event stream, calling handle for each complete event.
// It returns nil at end of stream.
func readSSE(ctx context.Context, body io.Reader, handle func(eventType, data string)) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventType string
	var dataLines []string

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := scanner.Text()

		// Empty line signals end of event
		if line == "" {
			if eventType != "" && len(dataLines) > 0 {
				handle(eventType, strings.Join(dataLines, "\n"))
			}
			eventType = ""
			dataLines = nil
			continue
		}

		if strings.HasPrefix(line, "event:") {
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			continue
		}
	}

	return scanner.Err()
}
