package cli

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	authorStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("8"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	liveStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	indexStyle   = lipgloss.NewStyle().Width(4).Align(lipgloss.Right).Foreground(lipgloss.Color("8"))
)
