// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport issues generation requests and streams the reply.
package transport

import "github.com/jeranaias/streamchat/internal/model"

// GenerateRequest is the JSON body posted to the generate endpoint.
type GenerateRequest struct {
	Messages []model.Message `json:"messages"`
	Time     int64           `json:"time"`
	Pass     *string         `json:"pass"`
	Sign     string          `json:"sign"`
}
