package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("#7aa2f7")
	mint   = lipgloss.Color("#9ece6a")
	muted  = lipgloss.Color("#565f89")
	red    = lipgloss.Color("#f7768e")
)

type styles struct {
	header    lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	tool      lipgloss.Style
	failure   lipgloss.Style
	status    lipgloss.Style
}

func newStyles() styles {
	return styles{
		header:    lipgloss.NewStyle().Foreground(accent).Bold(true).Padding(0, 1),
		user:      lipgloss.NewStyle().Foreground(mint).Bold(true),
		assistant: lipgloss.NewStyle().Foreground(accent).Bold(true),
		tool:      lipgloss.NewStyle().Foreground(muted),
		failure:   lipgloss.NewStyle().Foreground(red).Bold(true),
		status:    lipgloss.NewStyle().Foreground(muted),
	}
}
