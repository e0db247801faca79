// Package welcome is the entry screen of the terminal runner: it asks who
// is taking the test and offers the test, a re-test and past sessions.
package welcome

import (
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/gauge/internal/placement"
	"github.com/abhisek/gauge/internal/router"
	"github.com/abhisek/gauge/internal/screen"
	"github.com/abhisek/gauge/internal/ui/components"
	"github.com/abhisek/gauge/internal/ui/layout"
	"github.com/abhisek/gauge/internal/ui/theme"
)

// Factories build the screens the menu opens.
type Factories struct {
	Take    func(ownerID string, kind placement.Kind) screen.Screen
	History func(ownerID string) screen.Screen
}

// WelcomeScreen collects the owner ID, then shows the main menu.
type WelcomeScreen struct {
	f           Factories
	owner       string
	askingOwner bool
	input       components.TextInput
	menu        components.Menu
}

var _ screen.Screen = (*WelcomeScreen)(nil)
var _ screen.KeyHintProvider = (*WelcomeScreen)(nil)
var _ screen.StatusProvider = (*WelcomeScreen)(nil)

// New creates a WelcomeScreen. An empty owner is asked for first.
func New(owner string, f Factories) *WelcomeScreen {
	w := &WelcomeScreen{f: f}
	if strings.TrimSpace(owner) == "" {
		w.askOwner()
	} else {
		w.setOwner(owner)
	}
	return w
}

func (w *WelcomeScreen) Title() string { return "" }

func (w *WelcomeScreen) Status() string { return w.owner }

func (w *WelcomeScreen) Init() tea.Cmd {
	if w.askingOwner {
		return w.input.Init()
	}
	return nil
}

func (w *WelcomeScreen) KeyHints() []layout.KeyHint {
	if w.askingOwner {
		return []layout.KeyHint{
			{Key: "Enter", Description: "Continue"},
			{Key: "Ctrl+C", Description: "Quit"},
		}
	}
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Select"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

func (w *WelcomeScreen) askOwner() {
	w.askingOwner = true
	w.input = components.NewTextInput("Your name or learner ID", 64)
	w.input.SetValue(w.owner)
}

func (w *WelcomeScreen) setOwner(owner string) {
	w.owner = strings.TrimSpace(owner)
	w.askingOwner = false
	w.menu = components.NewMenu([]components.MenuItem{
		{Label: "Start placement test", Action: w.open(func() screen.Screen { return w.f.Take(w.owner, placement.KindInitial) })},
		{Label: "Take a re-test", Hint: "after an earlier placement", Action: w.open(func() screen.Screen { return w.f.Take(w.owner, placement.KindRetest) })},
		{Label: "Past sessions", Action: w.open(func() screen.Screen { return w.f.History(w.owner) })},
		{Label: "Switch user", Action: func() tea.Cmd {
			w.askOwner()
			return w.input.Init()
		}},
		{Label: "Quit", Action: func() tea.Cmd { return tea.Quit }},
	})
}

func (w *WelcomeScreen) open(build func() screen.Screen) func() tea.Cmd {
	return func() tea.Cmd {
		s := build()
		return func() tea.Msg { return router.PushScreenMsg{Screen: s} }
	}
}

func (w *WelcomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if w.askingOwner {
		if k, ok := msg.(tea.KeyMsg); ok && k.String() == "enter" {
			if v := w.input.Value(); v != "" {
				w.setOwner(v)
			}
			return w, nil
		}
		var cmd tea.Cmd
		w.input, cmd = w.input.Update(msg)
		return w, cmd
	}

	var cmd tea.Cmd
	w.menu, cmd = w.menu.Update(msg)
	return w, cmd
}

func (w *WelcomeScreen) View(width, height int) string {
	sections := []string{
		RenderBanner(width),
		"",
		lipgloss.NewStyle().Foreground(theme.Text).Bold(true).Render("Adaptive level placement"),
		"",
	}
	if w.askingOwner {
		sections = append(sections,
			theme.Hint.Render("Who is taking the test?"),
			"",
			w.input.View(),
		)
	} else {
		sections = append(sections,
			theme.Hint.Render("Hello, "+w.owner),
			"",
			w.menu.View(),
		)
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, strings.Join(sections, "\n"))
}
