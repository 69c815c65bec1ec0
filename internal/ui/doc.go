// Package ui renders wifiled-ctl output in the terminal.
//
// Static output (device tables, result boxes) uses lipgloss and adapts to
// the terminal width reported by golang.org/x/term. The interactive
// dashboard is a Bubble Tea program that shows one device's LED, follows
// its WebSocket stream and toggles it from the keyboard:
//
//	m := ui.NewDashboard(c, "http://192.168.13.37:80")
//	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
//		return err
//	}
package ui
