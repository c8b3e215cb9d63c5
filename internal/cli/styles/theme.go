// Package styles is the lipgloss palette used by CLI output
package styles

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Dracula color palette
const (
	Comment = "#6272a4"
	Cyan    = "#8be9fd"
	Green   = "#50fa7b"
	Orange  = "#ffb86c"
	Pink    = "#ff79c6"
	Purple  = "#bd93f9"
	Red     = "#ff5555"
	Yellow  = "#f1fa8c"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(Purple))

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Cyan))

	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Comment)).
			Width(20)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Pink))

	EarnedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Green)).
			Bold(true)

	LockedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Comment))

	PointsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Yellow))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Red)).
			Bold(true)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(Purple)).
			Padding(0, 1)

	barFilled = lipgloss.NewStyle().Foreground(lipgloss.Color(Green))
	barEmpty  = lipgloss.NewStyle().Foreground(lipgloss.Color(Comment))
)

// ProgressBar renders percent (0-100) as a bar of width cells
func ProgressBar(percent, width int) string {
	if width <= 0 {
		return ""
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100
	return barFilled.Render(strings.Repeat("█", filled)) +
		barEmpty.Render(strings.Repeat("░", width-filled))
}

// KeyValue renders one aligned "label value" line
func KeyValue(label string, value interface{}) string {
	return LabelStyle.Render(label) + ValueStyle.Render(fmt.Sprint(value))
}
