// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package signature produces the authentication token attached to every
// generation request.
//
// The transport treats the token as opaque: it hands over a timestamp and
// the content of the last request message, and forwards whatever string
// comes back in the "sign" field.
package signature

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
)

// ErrNoSigner is returned by helpers that require a signer but got nil.
var ErrNoSigner = errors.New("signature: no signer configured")

// Signer computes the request signature for a timestamp and payload.
// Implementations may block (remote signing); they must honour ctx.
type Signer interface {
	Sign(ctx context.Context, timestamp int64, content string) (string, error)
}

// SignerFunc adapts a plain function to the Signer interface.
type SignerFunc func(ctx context.Context, timestamp int64, content string) (string, error)

// Sign calls f.
func (f SignerFunc) Sign(ctx context.Context, timestamp int64, content string) (string, error) {
	return f(ctx, timestamp, content)
}

// =============================================================================
// DEFAULT SIGNER
// =============================================================================

// SHA256Signer is the default signer: hex(sha256("<ts>:<content>:<siteKey>")).
// An empty SiteKey is allowed; endpoints that do not check signatures ignore it.
type SHA256Signer struct {
	SiteKey string
}

// NewSHA256Signer creates the default signer for the given site key.
func NewSHA256Signer(siteKey string) *SHA256Signer {
	return &SHA256Signer{SiteKey: siteKey}
}

// Sign implements Signer.
func (s *SHA256Signer) Sign(ctx context.Context, timestamp int64, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(strconv.FormatInt(timestamp, 10) + ":" + content + ":" + s.SiteKey))
	return hex.EncodeToString(sum[:]), nil
}

// Nop returns a signer that always produces an empty token.
func Nop() Signer {
	return SignerFunc(func(ctx context.Context, _ int64, _ string) (string, error) {
		return "", ctx.Err()
	})
}
