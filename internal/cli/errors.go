// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error display and exit codes shared by all commands.
//
// Handlers always return errors; main decides how to show them and which
// exit code to use.

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/engine"
	"github.com/jeranaias/streamchat/internal/export"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/transport"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitAuthError     = 4
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitCancelled     = 130
)

// ErrCancelled is returned when the user interrupted a reply.
var ErrCancelled = errors.New("cancelled")

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports a malformed command line.
type UsageError struct {
	Command string
	Reason  string
}

func (e *UsageError) Error() string {
	if e.Command == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Command, e.Reason)
}

func usageErrorf(command, format string, args ...interface{}) error {
	return &UsageError{Command: command, Reason: fmt.Sprintf(format, args...)}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError prints err to stderr, or as a JSON object on stdout.
func DisplayError(err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		out := map[string]interface{}{
			"success":    false,
			"error":      err.Error(),
			"error_type": errorType(err),
		}
		if code := transport.StatusCode(err); code != 0 {
			out["status"] = code
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(out)
		return
	}
	fmt.Fprintln(os.Stderr, RenderError(err.Error()))
}

// HandleErrorAndExit displays err and exits with its exit code.
func HandleErrorAndExit(err error, jsonMode bool) {
	if err == nil {
		return
	}
	if !errors.Is(err, ErrCancelled) {
		DisplayError(err, jsonMode)
	}
	os.Exit(GetExitCode(err))
}

func errorType(err error) string {
	switch GetExitCode(err) {
	case ExitUsageError:
		return "usage_error"
	case ExitConfigError:
		return "config_error"
	case ExitAuthError:
		return "auth_error"
	case ExitNetworkError:
		return "network_error"
	case ExitNotFoundError:
		return "not_found_error"
	case ExitCancelled:
		return "cancelled"
	default:
		return "generic_error"
	}
}

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	var ttyErr *TTYRequiredError
	var validation config.ValidateErrors
	var fieldErr config.ValidationError

	switch {
	case errors.Is(err, ErrCancelled):
		return ExitCancelled
	case errors.As(err, &usageErr), errors.As(err, &ttyErr),
		errors.Is(err, engine.ErrBusy), errors.Is(err, export.ErrEmptyConversation):
		return ExitUsageError
	case errors.As(err, &validation), errors.As(err, &fieldErr),
		errors.Is(err, storage.ErrUnknownBackend):
		return ExitConfigError
	case errors.Is(err, storage.ErrArchiveNotFound):
		return ExitNotFoundError
	}

	if transport.IsStatus(err) {
		switch transport.StatusCode(err) {
		case http.StatusUnauthorized, http.StatusForbidden:
			return ExitAuthError
		}
		return ExitNetworkError
	}
	if errors.Is(err, transport.ErrTransport) || errors.Is(err, transport.ErrStreamRead) {
		return ExitNetworkError
	}
	return ExitGeneralError
}
