package app

import (
	"fmt"
	"os"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/gauge/internal/level"
	"github.com/abhisek/gauge/internal/logger"
	"github.com/abhisek/gauge/internal/placement"
	"github.com/abhisek/gauge/internal/router"
	"github.com/abhisek/gauge/internal/screen"
	"github.com/abhisek/gauge/internal/screens/history"
	"github.com/abhisek/gauge/internal/screens/results"
	"github.com/abhisek/gauge/internal/screens/take"
	"github.com/abhisek/gauge/internal/screens/welcome"
	"github.com/abhisek/gauge/internal/ui/layout"
)

// Options holds the dependencies of the terminal runner.
type Options struct {
	Engine *placement.Engine
	Log    *logger.Logger

	// OwnerID skips the owner prompt when set.
	OwnerID string

	// SelfReported is attached to every session started from this run.
	SelfReported *level.Level
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	router *router.Router
	width  int
	height int
}

// newAppModel creates a new AppModel with the welcome screen.
func newAppModel(opts Options) AppModel {
	f := welcome.Factories{
		Take: func(owner string, kind placement.Kind) screen.Screen {
			req := placement.StartRequest{OwnerID: owner, Kind: kind, SelfReported: opts.SelfReported}
			return take.New(opts.Engine, req, func(r *placement.Results) screen.Screen {
				return results.New(r)
			}, opts.Log)
		},
		History: func(owner string) screen.Screen {
			return history.New(opts.Engine, owner)
		},
	}
	return AppModel{
		router: router.New(welcome.New(opts.OwnerID, f)),
	}
}

func (m AppModel) Init() tea.Cmd {
	if a := m.router.Active(); a != nil {
		return a.Init()
	}
	return nil
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if bi, ok := m.router.Active().(screen.BackInterceptor); ok && bi.InterceptsBack() {
				break
			}
			if m.router.Depth() > 1 {
				return m, func() tea.Msg { return router.PopScreenMsg{} }
			}
			return m, nil
		}
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}

	if layout.IsTooSmall(m.width, m.height) {
		v.SetContent(layout.RenderMinSizeMessage(m.width, m.height))
		return v
	}

	active := m.router.Active()
	var title, status string
	if active != nil {
		title = active.Title()
	}
	if sp, ok := active.(screen.StatusProvider); ok {
		status = sp.Status()
	}
	header := layout.RenderHeader(title, status, m.width)

	var footerHints []layout.KeyHint
	if kp, ok := active.(screen.KeyHintProvider); ok {
		footerHints = kp.KeyHints()
	} else if m.router.Depth() > 1 {
		footerHints = []layout.KeyHint{
			{Key: "Esc", Description: "Back"},
			{Key: "Ctrl+C", Description: "Quit"},
		}
	} else {
		footerHints = []layout.KeyHint{
			{Key: "↑↓", Description: "Navigate"},
			{Key: "Enter", Description: "Select"},
			{Key: "Ctrl+C", Description: "Quit"},
		}
	}
	footer := layout.RenderFooter(footerHints, m.width)

	contentHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if contentHeight < 0 {
		contentHeight = 0
	}

	content := m.router.View(m.width, contentHeight)
	v.SetContent(layout.RenderFrame(header, content, footer, m.width, m.height))
	return v
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	p := tea.NewProgram(newAppModel(opts))
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		return err
	}
	return nil
}
