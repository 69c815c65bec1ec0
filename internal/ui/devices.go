package ui

import (
	"fmt"
	"strings"

	"github.com/muurk/wifiled/internal/discovery"
)

// RenderDevices renders discovered devices as an aligned table.
func RenderDevices(devices []*discovery.Device) string {
	if len(devices) == 0 {
		return MutedStyle.Render("No wifiled devices found.")
	}

	headers := []string{"NAME", "ADDRESS", "MODE", "VERSION"}
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, []string{d.Instance, d.Addr(), orDash(d.Mode), orDash(d.Version)})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	var b strings.Builder
	b.WriteString(TableHeaderStyle.Render(formatRow(headers, widths)))
	for _, row := range rows {
		b.WriteString("\n")
		b.WriteString(formatRow(row, widths))
	}
	fmt.Fprintf(&b, "\n\n%s", MutedStyle.Render(fmt.Sprintf("%d device(s)", len(devices))))
	return b.String()
}

func formatRow(cells []string, widths []int) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
