// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport issues generation requests and streams the reply.
package transport

import (
	"errors"
	"strconv"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrTransport matches every *ClientError via errors.Is.
var ErrTransport = errors.New("transport error")

// ErrStreamRead wraps failures while reading or decoding the response body.
var ErrStreamRead = errors.New("stream read error")

// ClientError represents a failure to obtain a readable response stream.
type ClientError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Cause      error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is makes every ClientError match ErrTransport.
func (e *ClientError) Is(target error) bool {
	return target == ErrTransport
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeStatus
	ErrTypeNoBody
	ErrTypeSignature
	ErrTypeInvalidRequest
)

// String returns a short name for the error type.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeConnection:
		return "connection"
	case ErrTypeStatus:
		return "status"
	case ErrTypeNoBody:
		return "no-body"
	case ErrTypeSignature:
		return "signature"
	case ErrTypeInvalidRequest:
		return "invalid-request"
	default:
		return "unknown"
	}
}

// Sentinel errors for easy checking.
var (
	ErrNoBody = &ClientError{Type: ErrTypeNoBody, Message: "response has no body"}
)

func statusError(code int, status string) *ClientError {
	if status == "" {
		status = strconv.Itoa(code)
	}
	return &ClientError{
		Type:       ErrTypeStatus,
		Message:    "generate request failed: " + status,
		StatusCode: code,
	}
}

// IsStatus checks if err is a non-OK response status error.
func IsStatus(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeStatus
	}
	return false
}

// IsNoBody checks if err reports a missing response body.
func IsNoBody(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeNoBody
	}
	return false
}

// IsStreamRead checks if err happened while reading the body.
func IsStreamRead(err error) bool {
	return errors.Is(err, ErrStreamRead)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.StatusCode
	}
	return 0
}
