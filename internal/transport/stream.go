// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport issues generation requests and streams the reply.
package transport

import (
	"context"
	"errors"
	"io"
	"sync"
)

// =============================================================================
// STREAM HANDLE
// =============================================================================

// Stream is an in-flight reply. Next yields decoded fragments in arrival
// order and returns io.EOF at the end. Cancel stops the stream promptly and
// may be called any number of times.
type Stream interface {
	Next() (string, error)
	Cancel()
}

// httpStream couples a response body with its decoder and cancel func.
type httpStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	body   io.ReadCloser
	dec    *Decoder

	once sync.Once
}

func newHTTPStream(ctx context.Context, cancel context.CancelFunc, body io.ReadCloser) *httpStream {
	return &httpStream{
		ctx:    ctx,
		cancel: cancel,
		body:   body,
		dec:    NewDecoder(body),
	}
}

// Next returns the next fragment. After Cancel it reports context.Canceled
// rather than the read error caused by closing the body.
func (s *httpStream) Next() (string, error) {
	text, err := s.dec.Next()
	if err == nil {
		return text, nil
	}

	s.release()
	if errors.Is(err, io.EOF) {
		return "", io.EOF
	}
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	return "", err
}

// Cancel aborts the request and closes the body. Idempotent.
func (s *httpStream) Cancel() {
	s.release()
}

func (s *httpStream) release() {
	s.once.Do(func() {
		s.cancel()
		s.body.Close()
	})
}
