// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/signature"
	"github.com/jeranaias/streamchat/internal/transport"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is where the dev endpoint listens by default. It matches
	// the client's default endpoint URL.
	DefaultAddr = "127.0.0.1:3000"

	// MaxRequestBodySize caps the request body (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxMessageCount is the maximum number of messages in a request.
	MaxMessageCount = 200

	// DefaultMaxSkew is how far the request timestamp may drift from the
	// server clock when a site key is configured.
	DefaultMaxSkew = 5 * time.Minute

	// DefaultRate and DefaultBurst bound requests per client IP.
	DefaultRate  = rate.Limit(5)
	DefaultBurst = 10
)

// ============================================================================
// CONFIG
// ============================================================================

// Responder produces the full reply for a request. The server streams it
// in chunks.
type Responder func(messages []model.Message) string

// Config configures a Server. Zero values pick the defaults.
type Config struct {
	Addr string
	Path string

	// Pass, when set, must match the request's "pass" field.
	Pass string

	// SiteKey, when set, enables signature verification.
	SiteKey string

	// MaxSkew bounds timestamp drift when SiteKey is set.
	MaxSkew time.Duration

	// ChunkDelay is the pause between flushed chunks.
	ChunkDelay time.Duration

	// ChunkSize splits the reply every N bytes, ignoring rune boundaries.
	// Zero splits after each space instead.
	ChunkSize int

	RateLimit rate.Limit
	Burst     int

	Responder Responder
}

func (c *Config) fillDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Path == "" {
		c.Path = transport.DefaultPath
	}
	if c.MaxSkew == 0 {
		c.MaxSkew = DefaultMaxSkew
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRate
	}
	if c.Burst == 0 {
		c.Burst = DefaultBurst
	}
	if c.Responder == nil {
		c.Responder = EchoResponder
	}
}

// EchoResponder repeats the last user message, noting the directive if one
// was sent.
func EchoResponder(messages []model.Message) string {
	var directive, last string
	for _, m := range messages {
		switch m.Role {
		case model.RoleSystem:
			directive = m.Content
		case model.RoleUser:
			last = m.Content
		}
	}
	var b strings.Builder
	if directive != "" {
		fmt.Fprintf(&b, "[system: %s]\n", directive)
	}
	b.WriteString("You said: ")
	b.WriteString(last)
	b.WriteString("\n")
	return b.String()
}

// ============================================================================
// STATS
// ============================================================================

// Stats counts requests since start.
type Stats struct {
	Requests  int64     `json:"requests"`
	Rejected  int64     `json:"rejected"`
	Completed int64     `json:"completed"`
	Cancelled int64     `json:"cancelled"`
	Bytes     int64     `json:"bytes"`
	StartTime time.Time `json:"start_time"`
}

type counters struct {
	requests, rejected, completed, cancelled, bytes atomic.Int64
	start                                           time.Time
}

func (c *counters) snapshot() Stats {
	return Stats{
		Requests:  c.requests.Load(),
		Rejected:  c.rejected.Load(),
		Completed: c.completed.Load(),
		Cancelled: c.cancelled.Load(),
		Bytes:     c.bytes.Load(),
		StartTime: c.start,
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the dev generate endpoint.
type Server struct {
	cfg     Config
	handler http.Handler
	stats   *counters
	now     func() time.Time
}

// New creates a Server.
func New(cfg Config) *Server {
	cfg.fillDefaults()
	s := &Server{
		cfg:   cfg,
		stats: &counters{start: time.Now()},
		now:   time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, s.handleGenerate)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)

	s.handler = Chain(mux,
		Recover,
		LogRequests,
		NoStore,
		NewRateLimiter(cfg.RateLimit, cfg.Burst).Limit,
	)
	return s
}

// Handler returns the server's HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// Endpoint returns the full URL clients should post to.
func (s *Server) Endpoint() string {
	return "http://" + s.cfg.Addr + s.cfg.Path
}

// Stats returns a snapshot of the request counters.
func (s *Server) Stats() Stats {
	return s.stats.snapshot()
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: replies stream for as long as they need
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	log.Printf("[server] listening on %s", ln.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.Stats())
}

// handleGenerate validates the request and streams the reply. The stream
// stops as soon as the client goes away.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	s.stats.requests.Add(1)

	if r.Method != http.MethodPost {
		s.reject(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var req transport.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.reject(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validateMessages(req.Messages); err != nil {
		s.reject(w, http.StatusBadRequest, err.Error())
		return
	}
	if status, reason := s.authorize(r.Context(), &req); status != 0 {
		s.reject(w, status, reason)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.reject(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for i, chunk := range s.chunks(s.cfg.Responder(req.Messages)) {
		if i > 0 && s.cfg.ChunkDelay > 0 {
			select {
			case <-r.Context().Done():
				s.stats.cancelled.Add(1)
				return
			case <-time.After(s.cfg.ChunkDelay):
			}
		}
		n, err := w.Write([]byte(chunk))
		s.stats.bytes.Add(int64(n))
		if err != nil {
			s.stats.cancelled.Add(1)
			return
		}
		flusher.Flush()
	}
	s.stats.completed.Add(1)
}

func (s *Server) reject(w http.ResponseWriter, status int, reason string) {
	s.stats.rejected.Add(1)
	log.Printf("[server] rejected request: %d %s", status, reason)
	http.Error(w, reason, status)
}

// validateMessages enforces the request shape: a non-empty list of known
// roles ending with the user's turn.
func validateMessages(messages []model.Message) error {
	if len(messages) == 0 {
		return errors.New("messages must not be empty")
	}
	if len(messages) > MaxMessageCount {
		return fmt.Errorf("too many messages: %d (max %d)", len(messages), MaxMessageCount)
	}
	for i, m := range messages {
		if !m.Role.Valid() {
			return fmt.Errorf("invalid role '%s' at message %d", m.Role, i)
		}
	}
	if last := messages[len(messages)-1]; last.Role != model.RoleUser {
		return fmt.Errorf("last message must be from the user, got %s", last.Role)
	}
	return nil
}

// authorize checks pass, timestamp and signature. A zero status means the
// request may proceed.
func (s *Server) authorize(ctx context.Context, req *transport.GenerateRequest) (int, string) {
	if s.cfg.Pass != "" {
		// SECURITY: constant-time comparison
		if req.Pass == nil || subtle.ConstantTimeCompare([]byte(*req.Pass), []byte(s.cfg.Pass)) != 1 {
			return http.StatusUnauthorized, "invalid pass"
		}
	}

	if s.cfg.SiteKey == "" {
		return 0, ""
	}

	skew := s.now().Sub(time.UnixMilli(req.Time))
	if skew < 0 {
		skew = -skew
	}
	if skew > s.cfg.MaxSkew {
		return http.StatusUnauthorized, "request timestamp out of range"
	}

	content := req.Messages[len(req.Messages)-1].Content
	want, err := signature.NewSHA256Signer(s.cfg.SiteKey).Sign(ctx, req.Time, content)
	if err != nil {
		return http.StatusInternalServerError, "failed to verify signature"
	}
	if subtle.ConstantTimeCompare([]byte(req.Sign), []byte(want)) != 1 {
		return http.StatusUnauthorized, "invalid signature"
	}
	return 0, ""
}

// chunks splits a reply the way the server streams it.
func (s *Server) chunks(reply string) []string {
	if reply == "" {
		return nil
	}
	if s.cfg.ChunkSize <= 0 {
		return strings.SplitAfter(reply, " ")
	}
	out := make([]string, 0, len(reply)/s.cfg.ChunkSize+1)
	for len(reply) > s.cfg.ChunkSize {
		out = append(out, reply[:s.cfg.ChunkSize])
		reply = reply[s.cfg.ChunkSize:]
	}
	return append(out, reply)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[server] failed to encode response: %v", err)
	}
}
