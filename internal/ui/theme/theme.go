package theme

import (
	"image/color"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/gauge/internal/level"
)

// Color palette
var (
	Primary   = lipgloss.Color("#6366F1") // Indigo
	Secondary = lipgloss.Color("#0EA5E9") // Sky
	Accent    = lipgloss.Color("#F59E0B") // Amber
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#EF4444") // Red
	Text      = lipgloss.Color("#F8FAFC") // White
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	BgDark    = lipgloss.Color("#0F172A") // Deep Navy
	BgCard    = lipgloss.Color("#1E293B") // Dark Slate
	Border    = lipgloss.Color("#334155") // Slate
)

// levelColors runs from cool (A1) to warm (C2).
var levelColors = map[level.Level]color.Color{
	level.A1: lipgloss.Color("#38BDF8"),
	level.A2: lipgloss.Color("#2DD4BF"),
	level.B1: lipgloss.Color("#4ADE80"),
	level.B2: lipgloss.Color("#FACC15"),
	level.C1: lipgloss.Color("#FB923C"),
	level.C2: lipgloss.Color("#F472B6"),
}

// LevelColor returns the display color of a level.
func LevelColor(l level.Level) color.Color {
	if c, ok := levelColors[l]; ok {
		return c
	}
	return TextDim
}

// LevelBadge renders a level code in its color.
func LevelBadge(l level.Level) string {
	return lipgloss.NewStyle().Foreground(LevelColor(l)).Bold(true).Render(string(l))
}

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		Align(lipgloss.Center)

	Subtitle = lipgloss.NewStyle().
			Foreground(TextDim).
			Align(lipgloss.Center)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)
)

// Layout
var (
	Card = lipgloss.NewStyle().
		Background(BgCard).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(1, 2)
)

// States
var (
	Selected = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	Unselected = lipgloss.NewStyle().
			Foreground(Text)

	Correct = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Incorrect = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)
)
