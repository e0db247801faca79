package take

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/gauge/internal/bank"
	"github.com/abhisek/gauge/internal/ui/components"
	"github.com/abhisek/gauge/internal/ui/layout"
	"github.com/abhisek/gauge/internal/ui/theme"
)

func (s *TakeScreen) View(width, height int) string {
	switch {
	case s.errMsg != "":
		return layout.Centered(width, theme.Error,
			fmt.Sprintf("\n\n\nSomething went wrong: %s\n\nPress any key to go back.", s.errMsg))
	case s.session == nil || s.item == nil:
		return layout.Centered(width, theme.TextDim, "\n\n\nPreparing your test...")
	case s.confirmQuit:
		return renderQuitConfirm(width)
	}

	var b strings.Builder
	b.WriteString(s.renderInfoLine(width))
	b.WriteString("\n")
	b.WriteString(s.renderProgress(width))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Foreground(theme.Text).
		Bold(true).
		Render(s.item.Text))
	b.WriteString("\n\n")

	if s.useInput {
		b.WriteString(layout.Centered(width, theme.Text, "Answer: "+s.input.View()))
	} else {
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, s.choice.View()))
	}

	if s.feedback != nil {
		b.WriteString("\n")
		b.WriteString(s.renderFeedback(width))
	} else if s.submitting {
		b.WriteString("\n")
		b.WriteString(layout.Centered(width, theme.TextDim, "Checking..."))
	}
	return b.String()
}

func (s *TakeScreen) renderInfoLine(width int) string {
	left := lipgloss.NewStyle().
		Foreground(theme.Secondary).
		Bold(true).
		Render("  " + bank.SkillDisplayName(s.item.Skill))

	secs := int(s.elapsed.Seconds())
	right := lipgloss.NewStyle().
		Foreground(theme.TextDim).
		Render(fmt.Sprintf("Level %s   %d:%02d  ", theme.LevelBadge(s.level), secs/60, secs%60))

	line := left
	if pad := width - lipgloss.Width(left) - lipgloss.Width(right); pad > 0 {
		line += strings.Repeat(" ", pad) + right
	}
	if s.resumed && s.answered == s.session.QuestionsAnswered {
		line += "\n" + theme.Hint.Render("  Resumed where you left off.")
	}
	return line
}

func (s *TakeScreen) renderProgress(width int) string {
	total := s.engine.Config().Questions
	if total <= 0 {
		return ""
	}
	bar := components.NewProgressBar(
		fmt.Sprintf("  Question %d of %d", min(s.answered+1, total), total),
		float64(s.answered)/float64(total),
		width-4,
	)
	bar.Suffix = fmt.Sprintf("%d left", total-s.answered)
	return bar.View()
}

func (s *TakeScreen) renderFeedback(width int) string {
	var b strings.Builder
	if s.feedback.Correct {
		b.WriteString(layout.Centered(width, theme.Success, "Correct!"))
	} else {
		b.WriteString(layout.Centered(width, theme.Error, "Not quite"))
		b.WriteString("\n")
		b.WriteString(layout.Centered(width, theme.TextDim, "Correct answer: "+s.feedback.CorrectAnswer))
	}
	b.WriteString("\n\n")

	if s.item.Explanation != "" {
		exp := lipgloss.NewStyle().
			Width(min(width-8, 70)).
			Foreground(theme.Text).
			Render(s.item.Explanation)
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, exp))
		b.WriteString("\n\n")
	}

	next := "Press any key for the next question..."
	if s.feedback.Complete {
		next = "That was the last question. Press any key to see your results."
	}
	b.WriteString(layout.Centered(width, theme.TextDim, next))
	return b.String()
}

func renderQuitConfirm(width int) string {
	var b strings.Builder
	b.WriteString("\n\n\n")
	b.WriteString(lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Foreground(theme.Text).
		Bold(true).
		Render("Cancel this test?"))
	b.WriteString("\n")
	b.WriteString(layout.Centered(width, theme.TextDim, "Answers so far will not produce a result."))
	b.WriteString("\n\n")
	b.WriteString(layout.Centered(width, theme.Error, "[Y] Yes, cancel"))
	b.WriteString("\n")
	b.WriteString(layout.Centered(width, theme.Primary, "[N] No, keep going"))
	return b.String()
}
