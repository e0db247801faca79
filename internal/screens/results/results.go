// Package results renders the outcome of a completed placement session.
package results

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/gauge/internal/level"
	"github.com/abhisek/gauge/internal/placement"
	"github.com/abhisek/gauge/internal/router"
	"github.com/abhisek/gauge/internal/screen"
	"github.com/abhisek/gauge/internal/ui/components"
	"github.com/abhisek/gauge/internal/ui/layout"
	"github.com/abhisek/gauge/internal/ui/theme"
)

// ResultsScreen shows the detected level, its confidence and the
// per-level breakdown.
type ResultsScreen struct {
	res *placement.Results
}

var _ screen.Screen = (*ResultsScreen)(nil)
var _ screen.KeyHintProvider = (*ResultsScreen)(nil)

// New creates a ResultsScreen.
func New(res *placement.Results) *ResultsScreen {
	return &ResultsScreen{res: res}
}

func (s *ResultsScreen) Init() tea.Cmd { return nil }

func (s *ResultsScreen) Title() string { return "Results" }

func (s *ResultsScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Done"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

func (s *ResultsScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && (k.String() == "enter" || k.String() == "q") {
		return s, func() tea.Msg { return router.PopScreenMsg{} }
	}
	return s, nil
}

func (s *ResultsScreen) View(width, height int) string {
	est := s.res.Estimation

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(layout.Centered(width, theme.TextDim, "Your level"))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Render(theme.LevelBadge(est.Level)))
	b.WriteString("\n")
	b.WriteString(layout.Centered(width, theme.Text,
		fmt.Sprintf("Confidence %s%%   %d of %d correct (%s%%)   %s",
			trim(est.Confidence), est.Correct, est.Total, trim(est.Accuracy), Duration(s.res.TotalElapsed))))
	b.WriteString("\n")

	if s.res.Difference != nil && s.res.SelfReported != nil {
		b.WriteString(layout.Centered(width, theme.Accent, DescribeDifference(*s.res.SelfReported, *s.res.Difference)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	barWidth := min(width-8, 60)
	var rows []string
	for _, l := range level.All() {
		t := est.Breakdown[l]
		bar := components.NewProgressBar(fmt.Sprintf("%-2s", l), t.Accuracy()/100, barWidth)
		bar.Fill = theme.LevelColor(l)
		if t.Total == 0 {
			bar.Suffix = "not asked"
		} else {
			bar.Suffix = fmt.Sprintf("%d/%d", t.Correct, t.Total)
		}
		rows = append(rows, bar.View())
	}
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, strings.Join(rows, "\n")))
	return b.String()
}

// DescribeDifference explains a self-reported level against the detected
// one. diff is self-reported index minus detected index.
func DescribeDifference(self level.Level, diff int) string {
	steps := func(n int) string {
		if n == 1 {
			return "1 level"
		}
		return fmt.Sprintf("%d levels", n)
	}
	switch {
	case diff > 0:
		return fmt.Sprintf("You rated yourself %s, %s above the detected level.", self, steps(diff))
	case diff < 0:
		return fmt.Sprintf("You rated yourself %s, %s below the detected level.", self, steps(-diff))
	default:
		return fmt.Sprintf("You rated yourself %s, which matches.", self)
	}
}

// Duration formats seconds as m:ss.
func Duration(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func trim(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
