package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers, borders
	SuccessColor = lipgloss.Color("#43BF6D") // Green
	ErrorColor   = lipgloss.Color("#FF5555") // Red
	WarningColor = lipgloss.Color("#FFA500") // Orange
	MutedColor   = lipgloss.Color("#626262") // Gray
	TextColor    = lipgloss.Color("#FFFFFF") // White
	LampOnColor  = lipgloss.Color("#F9E2AF") // Warm yellow
	LampOffColor = lipgloss.Color("#45475A") // Slate
)

// Layout constants
const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	KeyStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Width(12)

	ValueStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	SuccessTitleStyle = lipgloss.NewStyle().
				Foreground(SuccessColor).
				Bold(true)

	ErrorTitleStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	ErrorMessageStyle = lipgloss.NewStyle().
				Foreground(ErrorColor)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	LampOnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1A1A1A")).
			Background(LampOnColor).
			Bold(true).
			Padding(1, 4)

	LampOffStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(LampOffColor).
			Padding(1, 4)

	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(PrimaryColor).
				Bold(true)
)

// Markers
const (
	SuccessMarker = "✓"
	FailureMarker = "✗"
	LiveMarker    = "●"
)

// GetTerminalWidth returns the current terminal width, clamped to the
// supported range.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return MinTerminalWidth
	}
	return clampWidth(width)
}

func clampWidth(width int) int {
	if width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxContentWidth {
		return MaxContentWidth
	}
	return width
}

// RenderLamp renders the LED state as a block.
func RenderLamp(on bool) string {
	if on {
		return LampOnStyle.Render(" ON ")
	}
	return LampOffStyle.Render(" OFF ")
}
