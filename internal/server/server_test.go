// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/signature"
	"github.com/jeranaias/streamchat/internal/transport"
)

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func newClient(ts *httptest.Server, pass, siteKey string) *transport.Client {
	cfg := &transport.ClientConfig{BaseURL: ts.URL, Pass: pass}
	if siteKey != "" {
		cfg.Signer = signature.NewSHA256Signer(siteKey)
	}
	return transport.NewClientWithConfig(cfg)
}

func readAll(t *testing.T, stream transport.Stream) string {
	t.Helper()
	var b strings.Builder
	for {
		text, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return b.String()
		}
		require.NoError(t, err)
		b.WriteString(text)
	}
}

func userOnly(text string) []model.Message {
	return []model.Message{model.NewUserMessage(text)}
}

// =============================================================================
// END TO END
// =============================================================================

func TestServer_StreamsEchoOverTransport(t *testing.T) {
	// One byte per chunk splits multi-byte runes across writes
	srv, ts := newTestServer(t, Config{Pass: "pw", SiteKey: "k", ChunkSize: 1})
	client := newClient(ts, "pw", "k")

	stream, err := client.Send(context.Background(), userOnly("héllo ✓"), "Be brief", time.Now())
	require.NoError(t, err)

	require.Equal(t, "[system: Be brief]\nYou said: héllo ✓\n", readAll(t, stream))
	require.Eventually(t, func() bool { return srv.Stats().Completed == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestServer_AuthFailures(t *testing.T) {
	_, ts := newTestServer(t, Config{Pass: "pw", SiteKey: "k"})

	tests := []struct {
		name    string
		pass    string
		siteKey string
		ts      time.Time
	}{
		{"wrong pass", "nope", "k", time.Now()},
		{"missing pass", "", "k", time.Now()},
		{"wrong site key", "pw", "other", time.Now()},
		{"unsigned", "pw", "", time.Now()},
		{"stale timestamp", "pw", "k", time.Now().Add(-time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(ts, tt.pass, tt.siteKey)
			_, err := client.Send(context.Background(), userOnly("hi"), "", tt.ts)
			require.Error(t, err)
			require.True(t, transport.IsStatus(err))
			require.Equal(t, http.StatusUnauthorized, transport.StatusCode(err))
		})
	}
}

func TestServer_OpenWithoutCredentials(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	stream, err := newClient(ts, "", "").Send(context.Background(), userOnly("ping"), "", time.Now())
	require.NoError(t, err)
	require.Equal(t, "You said: ping\n", readAll(t, stream))
}

func TestServer_ClientCancelStopsStream(t *testing.T) {
	srv, ts := newTestServer(t, Config{
		ChunkDelay: 20 * time.Millisecond,
		Responder: func([]model.Message) string {
			return strings.Repeat("word ", 500)
		},
	})

	stream, err := newClient(ts, "", "").Send(context.Background(), userOnly("go"), "", time.Now())
	require.NoError(t, err)

	text, err := stream.Next()
	require.NoError(t, err)
	require.NotEmpty(t, text)

	stream.Cancel()
	require.Eventually(t, func() bool { return srv.Stats().Cancelled == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Zero(t, srv.Stats().Completed)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidateMessages(t *testing.T) {
	tests := []struct {
		name    string
		msgs    []model.Message
		wantErr string
	}{
		{"empty", nil, "must not be empty"},
		{"bad role", []model.Message{{Role: "tool", Content: "x"}}, "invalid role"},
		{"ends with reply", []model.Message{model.NewUserMessage("q"), model.NewAssistantMessage("a")}, "last message"},
		{"ok", []model.Message{model.NewSystemMessage("s"), model.NewUserMessage("q")}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateMessages(tt.msgs)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestServer_RejectsMalformedRequests(t *testing.T) {
	srv := New(Config{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, transport.DefaultPath, strings.NewReader("{not json")))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, transport.DefaultPath, nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	require.Equal(t, int64(2), srv.Stats().Rejected)
}

func TestServer_Chunks(t *testing.T) {
	s := New(Config{})
	require.Equal(t, []string{"a ", "b ", "c"}, s.chunks("a b c"))
	require.Nil(t, s.chunks(""))

	s = New(Config{ChunkSize: 2})
	require.Equal(t, []string{"ab", "cd", "e"}, s.chunks("abcde"))
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func TestRateLimiter_PerClient(t *testing.T) {
	srv := New(Config{RateLimit: rate.Every(time.Hour), Burst: 2})

	do := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, do("10.0.0.1:1000"))
	require.Equal(t, http.StatusOK, do("10.0.0.1:1001"))
	require.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:1002"))

	// Other clients have their own bucket
	require.Equal(t, http.StatusOK, do("10.0.0.2:1000"))
}

func TestRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), Recover, NoStore)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote string
		fwd    string
		want   string
	}{
		{"192.0.2.1:5555", "", "192.0.2.1"},
		{"192.0.2.1:5555", "203.0.113.9", "192.0.2.1"},
		{"127.0.0.1:5555", "203.0.113.9, 10.0.0.1", "203.0.113.9"},
		{"127.0.0.1:5555", "garbage", "127.0.0.1"},
		{"[::1]:5555", "203.0.113.7", "203.0.113.7"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		if tt.fwd != "" {
			req.Header.Set("X-Forwarded-For", tt.fwd)
		}
		require.Equal(t, tt.want, ClientIP(req), "remote=%s fwd=%s", tt.remote, tt.fwd)
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestServer_ServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(Config{Addr: ln.Addr().String()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/stats")
	require.NoError(t, err)
	var stats Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	require.False(t, stats.StartTime.IsZero())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestEchoResponder(t *testing.T) {
	got := EchoResponder([]model.Message{
		model.NewUserMessage("first"),
		model.NewAssistantMessage("reply"),
		model.NewUserMessage("second"),
	})
	require.Equal(t, "You said: second\n", got)
}
