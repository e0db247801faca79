package components

import (
	"fmt"
	"strconv"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/gauge/internal/ui/theme"
)

const optionLabels = "ABCDEF"

// MultiChoice is an option selector. It knows nothing about which option
// is correct until Reveal is called after the answer has been scored.
type MultiChoice struct {
	Options   []string
	Selected  int
	Submitted bool

	correct string
}

// NewMultiChoice creates a selector over options.
func NewMultiChoice(options []string) MultiChoice {
	return MultiChoice{Options: options}
}

// Update handles arrow keys, j/k and direct selection with 1-6 or a-f.
// Enter or a direct selection marks the component submitted.
func (m MultiChoice) Update(msg tea.Msg) (MultiChoice, tea.Cmd) {
	if m.Submitted {
		return m, nil
	}
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	key := kmsg.String()
	switch key {
	case "up", "k":
		if m.Selected > 0 {
			m.Selected--
		}
		return m, nil
	case "down", "j":
		if m.Selected < len(m.Options)-1 {
			m.Selected++
		}
		return m, nil
	case "enter":
		if len(m.Options) > 0 {
			m.Submitted = true
		}
		return m, nil
	}

	if i, ok := directIndex(key); ok && i < len(m.Options) {
		m.Selected = i
		m.Submitted = true
	}
	return m, nil
}

func directIndex(key string) (int, bool) {
	if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(optionLabels) {
		return n - 1, true
	}
	if len(key) == 1 {
		c := key[0]
		if c >= 'a' && c < 'a'+byte(len(optionLabels)) {
			return int(c - 'a'), true
		}
	}
	return 0, false
}

// Value returns the selected option, or "" when there are none.
func (m MultiChoice) Value() string {
	if m.Selected < 0 || m.Selected >= len(m.Options) {
		return ""
	}
	return m.Options[m.Selected]
}

// Reveal marks the correct option for the feedback view.
func (m *MultiChoice) Reveal(correct string) {
	m.correct = correct
}

// View renders the options.
func (m MultiChoice) View() string {
	var s string
	for i, opt := range m.Options {
		prefix := "  "
		if i == m.Selected && !m.Submitted {
			prefix = "▸ "
		}
		line := fmt.Sprintf("%s%c)  %s", prefix, optionLabels[i], opt)

		style := lipgloss.NewStyle().Foreground(theme.Text)
		switch {
		case m.Submitted && m.correct != "" && opt == m.correct:
			style = theme.Correct
		case m.Submitted && m.correct != "" && i == m.Selected:
			style = theme.Incorrect
		case m.Submitted:
			style = lipgloss.NewStyle().Foreground(theme.TextDim)
		case i == m.Selected:
			style = theme.Selected
		}
		s += style.Render(line) + "\n"
	}
	return s
}
