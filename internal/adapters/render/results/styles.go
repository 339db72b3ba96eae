package results

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title      lipgloss.Style
	header     lipgloss.Style
	result     lipgloss.Style
	confidence lipgloss.Style
	url        lipgloss.Style
	detail     lipgloss.Style
	warning    lipgloss.Style
	section    lipgloss.Style
	empty      lipgloss.Style
	flag       lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:      lipgloss.NewStyle().Bold(true),
		header:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		result:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		confidence: lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		url:        lipgloss.NewStyle().Faint(true).Underline(true),
		detail:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		warning:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		section:    lipgloss.NewStyle().MarginTop(1),
		empty:      lipgloss.NewStyle().Faint(true),
		flag:       lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
}
