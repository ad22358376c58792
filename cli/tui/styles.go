// Package tui provides Bubble Tea views for the reel CLI.
//
// TUI views are opt-in (--tui) and read-only. They show the same payloads as
// the json, table and yaml outputs.
package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor   = lipgloss.Color("#E11D48") // rose
	successColor   = lipgloss.Color("#22C55E")
	warningColor   = lipgloss.Color("#EAB308")
	errorColor     = lipgloss.Color("#DC2626")
	mutedColor     = lipgloss.Color("#71717A")
	highlightColor = lipgloss.Color("#0EA5E9")
)

var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor).MarginBottom(1)
	LabelStyle = lipgloss.NewStyle().Foreground(mutedColor).Width(12)
	ValueStyle = lipgloss.NewStyle()
	HelpStyle  = lipgloss.NewStyle().Foreground(mutedColor).MarginTop(1)

	SuccessStyle = lipgloss.NewStyle().Foreground(successColor)
	WarningStyle = lipgloss.NewStyle().Foreground(warningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(errorColor)

	// BoxStyle frames the inspect card.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 2)

	// StatBoxStyle frames one stats tile; callers recolor the border.
	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			Padding(0, 1).
			Width(14).
			Align(lipgloss.Center)

	StatLabelStyle = lipgloss.NewStyle().Foreground(mutedColor)
	StatValueStyle = lipgloss.NewStyle().Bold(true)
)

// OutcomeStyle colors a ledger outcome.
func OutcomeStyle(outcome string) lipgloss.Style {
	switch outcome {
	case "success":
		return SuccessStyle
	case "failure":
		return ErrorStyle
	}
	return ValueStyle
}

// CodeStyle colors an error envelope code: 4xx amber, 5xx red.
func CodeStyle(code int) lipgloss.Style {
	switch {
	case code >= 500:
		return ErrorStyle
	case code >= 400:
		return WarningStyle
	}
	return ValueStyle
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
