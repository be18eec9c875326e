// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// Palette entries are named by what they mark on screen. Each one is
// adaptive, so the light value is used on light backgrounds.
var (
	ColorUser      = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}
	ColorAssistant = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}
	// Warnings share the directive's amber
	ColorWarning = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

	ColorSuccess = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

	// Bars and borders
	ColorSurface = lipgloss.AdaptiveColor{Light: "#F5F5F5", Dark: "#181825"}
	ColorBorder  = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#313244"}

	ColorText  = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}
	ColorLabel = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}
	ColorHint  = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}
)
