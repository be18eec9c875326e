// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport issues generation requests and streams the reply.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/signature"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

const (
	DefaultBaseURL        = "http://127.0.0.1:3000"
	DefaultPath           = "/api/generate"
	DefaultConnectTimeout = 10 * time.Second
)

// ClientConfig holds configuration options for the transport client.
type ClientConfig struct {
	// BaseURL is the endpoint origin (default: http://127.0.0.1:3000)
	BaseURL string

	// Path is appended to BaseURL (default: /api/generate)
	Path string

	// ConnectTimeout bounds dialing and the TLS handshake only. Streaming
	// has no overall timeout; a hanging reply lasts until cancelled.
	ConnectTimeout time.Duration

	// Pass is the stored credential. Empty is sent as JSON null.
	Pass string

	// Signer signs {timestamp, last message content}. Nil means no signature.
	Signer signature.Signer

	// HTTPClient overrides the streaming client. Used by tests.
	HTTPClient *http.Client
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:        DefaultBaseURL,
		Path:           DefaultPath,
		ConnectTimeout: DefaultConnectTimeout,
	}
}

// Endpoint returns the full request URL.
func (c ClientConfig) Endpoint() string {
	path := c.Path
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(c.BaseURL, "/") + path
}

// =============================================================================
// CLIENT
// =============================================================================

// Client posts the conversation to the generate endpoint and returns the
// streamed reply.
//
// The Client is safe for concurrent use; Update swaps credentials or the
// endpoint for subsequent requests without affecting streams in flight.
//
// Example:
//
//	client := transport.NewClientWithConfig(&transport.ClientConfig{
//	    BaseURL: "https://chat.example.com",
//	    Signer:  signature.NewSHA256Signer(siteKey),
//	})
//	stream, err := client.Send(ctx, history, directive, time.Now())
//	for {
//	    text, err := stream.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    fmt.Print(text)
//	}
type Client struct {
	mu         sync.RWMutex
	config     ClientConfig
	httpClient *http.Client
}

// NewClient creates a new client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	fillDefaults(&cfg)

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = newStreamingHTTPClient(cfg.ConnectTimeout)
	}

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

func fillDefaults(cfg *ClientConfig) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
}

// newStreamingHTTPClient has no Client.Timeout: that would cut long replies.
func newStreamingHTTPClient(connectTimeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   connectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: connectTimeout,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Config returns a copy of the current configuration.
func (c *Client) Config() ClientConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

// Update replaces endpoint, credential and signer for later requests.
// The HTTP client is kept so pooled connections survive.
func (c *Client) Update(config ClientConfig) {
	fillDefaults(&config)
	c.mu.Lock()
	config.HTTPClient = c.config.HTTPClient
	c.config = config
	c.mu.Unlock()
}

// SetPass replaces the stored credential.
func (c *Client) SetPass(pass string) {
	c.mu.Lock()
	c.config.Pass = pass
	c.mu.Unlock()
}

// =============================================================================
// SEND
// =============================================================================

// Send posts history (directive first when non-empty) and returns the reply
// stream. The signature covers ts in milliseconds and the content of the
// last message in the request, or "" when the request is empty.
//
// Cancelling ctx or calling Stream.Cancel terminates the body promptly.
// A non-OK status or missing body yields a *ClientError matching
// ErrTransport. If ctx is cancelled before a response arrives the context
// error is returned unwrapped so callers can tell it from a failure.
func (c *Client) Send(ctx context.Context, history []model.Message, directive string, ts time.Time) (Stream, error) {
	cfg := c.Config()
	messages := model.BuildRequest(history, directive)

	reqBody := GenerateRequest{
		Messages: messages,
		Time:     ts.UnixMilli(),
	}
	if cfg.Pass != "" {
		pass := cfg.Pass
		reqBody.Pass = &pass
	}

	if cfg.Signer != nil {
		content := ""
		if n := len(messages); n > 0 {
			content = messages[n-1].Content
		}
		sign, err := cfg.Signer.Sign(ctx, reqBody.Time, content)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &ClientError{Type: ErrTypeSignature, Message: "failed to sign request", Cause: err}
		}
		reqBody.Sign = sign
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to marshal request", Cause: err}
	}

	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, cfg.Endpoint(), bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.RLock()
	httpClient := c.httpClient
	c.mu.RUnlock()

	resp, err := httpClient.Do(req)
	if err != nil {
		cancel()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to reach endpoint", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drainAndClose(resp)
		cancel()
		log.Printf("[transport] %s returned %s", cfg.Endpoint(), resp.Status)
		return nil, statusError(resp.StatusCode, resp.Status)
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		cancel()
		return nil, ErrNoBody
	}

	return newHTTPStream(streamCtx, cancel, resp.Body), nil
}

// drainAndClose discards a small error body so the connection can be reused.
func drainAndClose(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	buf := make([]byte, 512)
	for i := 0; i < 8; i++ {
		if _, err := resp.Body.Read(buf); err != nil {
			break
		}
	}
	resp.Body.Close()
}
