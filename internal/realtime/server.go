// ABOUTME: HTTP relay exposing the hub as per-user SSE comment streams.
// ABOUTME: Authenticates with bearer JWTs and accepts new comments over POST.

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/pause-notify/internal/auth"
	"github.com/2389/pause-notify/internal/event"
	"github.com/2389/pause-notify/internal/identity"
)

const (
	defaultPingInterval = 25 * time.Second
	maxCommentBytes     = 64 << 10
	streamBufferSize    = 64
)

// ServerConfig configures a relay Server.
type ServerConfig struct {
	Addr         string
	Hub          *Hub
	Verifier     auth.TokenVerifier
	PingInterval time.Duration
	Logger       *slog.Logger
}

// Server is the relay's HTTP front end.
type Server struct {
	hub          *Hub
	verifier     auth.TokenVerifier
	pingInterval time.Duration
	logger       *slog.Logger
	httpServer   *http.Server
}

// PostCommentRequest is the JSON body for POST /api/comments. The author is
// the authenticated user.
type PostCommentRequest struct {
	EventID     string `json:"event_id,omitempty"`
	ThreadID    string `json:"thread_id"`
	RecipientID string `json:"recipient_id"`
	Body        string `json:"body"`
}

// NewServer creates a relay server. It does not start listening.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Hub == nil {
		return nil, errors.New("relay: hub is required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("relay: token verifier is required")
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		hub:          cfg.Hub,
		verifier:     cfg.Verifier,
		pingInterval: cfg.PingInterval,
		logger:       logger.With("component", "relay"),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the relay's routes.
func (s *Server) Handler() http.Handler {
	requireAuth := auth.Middleware(s.verifier)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /api/users/{id}/comments/stream", requireAuth(http.HandlerFunc(s.handleStream)))
	mux.Handle("POST /api/comments", requireAuth(http.HandlerFunc(s.handlePostComment)))
	return mux
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("relay listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	// streams only end once their subscriptions do
	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("shutting down relay: %w", err)
	}
	return serveErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStream handles GET /api/users/{id}/comments/stream.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	userID := identity.ID(r.PathValue("id"))
	caller, _ := auth.UserFromContext(r.Context())
	if userID.IsZero() || caller != userID {
		s.sendJSONError(w, http.StatusForbidden, "token does not match user")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		s.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx := r.Context()
	events := make(chan event.Comment, streamBufferSize)
	conn, err := s.hub.Subscribe(ctx, userID, func(c event.Comment) {
		select {
		case events <- c:
		case <-ctx.Done():
		}
	})
	if err != nil {
		s.sendJSONError(w, http.StatusServiceUnavailable, "relay shutting down")
		return
	}
	defer conn.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.logger.Info("stream opened", "user_id", userID.String())
	defer s.logger.Info("stream closed", "user_id", userID.String())

	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.Done():
			return
		case c := <-events:
			if err := s.writeSSEEvent(w, "comment", c); err != nil {
				return
			}
			flusher.Flush()
		case <-ping.C:
			if err := s.writeSSEEvent(w, "ping", map[string]int64{"ts": time.Now().Unix()}); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// handlePostComment handles POST /api/comments.
func (s *Server) handlePostComment(w http.ResponseWriter, r *http.Request) {
	author, _ := auth.UserFromContext(r.Context())

	var req PostCommentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommentBytes)).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.RecipientID = strings.TrimSpace(req.RecipientID)
	if req.RecipientID == "" {
		s.sendJSONError(w, http.StatusBadRequest, "recipient_id is required")
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		s.sendJSONError(w, http.StatusBadRequest, "body is required")
		return
	}
	if req.EventID == "" {
		req.EventID = uuid.New().String()
	}

	c := event.Comment{
		ID:          req.EventID,
		ThreadID:    req.ThreadID,
		AuthorID:    author.String(),
		RecipientID: req.RecipientID,
		CreatedAt:   time.Now().UTC(),
		Body:        req.Body,
	}
	s.hub.Publish(c)

	s.logger.Debug("comment published", "event_id", c.ID, "recipient_id", c.RecipientID, "author_id", c.AuthorID)
	s.sendJSON(w, http.StatusAccepted, c)
}

// writeSSEEvent writes a single SSE event to the response writer.
func (s *Server) writeSSEEvent(w http.ResponseWriter, event string, data any) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return nil
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, dataJSON); err != nil {
		return err
	}
	return nil
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"error": message})
}
