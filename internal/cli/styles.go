package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	overStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	barFilledStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	barEmptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))
)

const barWidth = 24

// renderBar draws a fixed-width progress bar. Progress past 1.0 renders full
// and the caller styles the numbers instead.
func renderBar(progress float64) string {
	if progress < 0 {
		progress = 0
	}
	filled := int(progress * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	return barFilledStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", barWidth-filled))
}
