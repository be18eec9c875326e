// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import "errors"

// ErrBusy is returned by transitions that need the engine idle while a
// reply is still streaming. The conversation is left unchanged.
var ErrBusy = errors.New("engine: a reply is still streaming")

// ErrNoSender is returned by New when no transport is supplied.
var ErrNoSender = errors.New("engine: no sender configured")

// IsBusy checks if err is ErrBusy.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}
