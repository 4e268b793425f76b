package main

import "github.com/charmbracelet/lipgloss"

var (
	primary   = lipgloss.Color("#7C3AED")
	secondary = lipgloss.Color("#10B981")
	warning   = lipgloss.Color("#F59E0B")
	errColor  = lipgloss.Color("#EF4444")
	muted     = lipgloss.Color("#6B7280")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primary)

	okStyle = lipgloss.NewStyle().
		Foreground(secondary).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(warning).
			Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(errColor).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().Foreground(muted)

	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primary).
			Padding(0, 2)
)

// statusLabel renders the fixed-width status column of a result line.
func statusLabel(ok bool) string {
	if ok {
		return okStyle.Render("OK  ")
	}
	return failStyle.Render("FAIL")
}
