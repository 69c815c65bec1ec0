package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Detail is one key/value line of a result box. A slice keeps the order
// stable.
type Detail struct {
	Key   string
	Value string
}

// Result is a bordered success or failure box.
type Result struct {
	Success bool
	Title   string
	Details []Detail
	Err     error
	Hint    string
	Width   int
}

// NewSuccessResult creates a success result box
func NewSuccessResult(title string, details ...Detail) *Result {
	return &Result{Success: true, Title: title, Details: details, Width: GetTerminalWidth()}
}

// NewFailureResult creates a failure result box
func NewFailureResult(title string, err error, hint string) *Result {
	return &Result{Title: title, Err: err, Hint: hint, Width: GetTerminalWidth()}
}

// Render returns the styled result box as a string
func (r *Result) Render() string {
	width := clampWidth(r.Width)

	var lines []string
	color := SuccessColor
	if r.Success {
		lines = append(lines, SuccessTitleStyle.Render(fmt.Sprintf("%s  %s", SuccessMarker, r.Title)))
	} else {
		color = ErrorColor
		lines = append(lines, ErrorTitleStyle.Render(fmt.Sprintf("%s  %s", FailureMarker, r.Title)))
	}

	if len(r.Details) > 0 {
		lines = append(lines, "")
		for _, d := range r.Details {
			lines = append(lines, KeyStyle.Render(d.Key+":")+" "+ValueStyle.Render(d.Value))
		}
	}
	if r.Err != nil {
		lines = append(lines, "", ErrorMessageStyle.Render(r.Err.Error()))
	}
	if r.Hint != "" {
		lines = append(lines, "", MutedStyle.Render(r.Hint))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Width(width-2).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}
