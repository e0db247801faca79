package history

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/gauge/internal/placement"
	"github.com/abhisek/gauge/internal/router"
	"github.com/abhisek/gauge/internal/screen"
	"github.com/abhisek/gauge/internal/screens/results"
	"github.com/abhisek/gauge/internal/ui/layout"
	"github.com/abhisek/gauge/internal/ui/theme"
)

// Source lists an owner's sessions and loads results.
type Source interface {
	History(ctx context.Context, ownerID string, limit int) ([]*placement.Session, error)
	Results(ctx context.Context, sessionID string) (*placement.Results, error)
}

const pageSize = 50

type historyLoadedMsg struct {
	Sessions []*placement.Session
	Err      error
}

type resultsLoadedMsg struct {
	Res *placement.Results
	Err error
}

// HistoryScreen lists an owner's past sessions, newest first.
type HistoryScreen struct {
	src      Source
	ownerID  string
	sessions []*placement.Session
	selected int
	loaded   bool
	errMsg   string
}

var _ screen.Screen = (*HistoryScreen)(nil)
var _ screen.KeyHintProvider = (*HistoryScreen)(nil)

// New creates a HistoryScreen for ownerID.
func New(src Source, ownerID string) *HistoryScreen {
	return &HistoryScreen{src: src, ownerID: ownerID}
}

func (s *HistoryScreen) Init() tea.Cmd {
	src, owner := s.src, s.ownerID
	return func() tea.Msg {
		sessions, err := src.History(context.Background(), owner, pageSize)
		return historyLoadedMsg{Sessions: sessions, Err: err}
	}
}

func (s *HistoryScreen) Title() string { return "Past Sessions" }

func (s *HistoryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Results"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *HistoryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		s.loaded = true
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		s.sessions = msg.Sessions
		return s, nil

	case resultsLoadedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		return s, func() tea.Msg {
			return router.PushScreenMsg{Screen: results.New(msg.Res)}
		}

	case tea.KeyMsg:
		s.errMsg = ""
		switch msg.String() {
		case "up", "k":
			if s.selected > 0 {
				s.selected--
			}
		case "down", "j":
			if s.selected < len(s.sessions)-1 {
				s.selected++
			}
		case "enter":
			return s, s.openSelected()
		}
	}
	return s, nil
}

// openSelected loads results of the selected session if it completed.
func (s *HistoryScreen) openSelected() tea.Cmd {
	if s.selected >= len(s.sessions) {
		return nil
	}
	sess := s.sessions[s.selected]
	if sess.Status != placement.StatusComplete {
		s.errMsg = fmt.Sprintf("Session is %s; results exist only for completed sessions.", sess.Status)
		return nil
	}
	src := s.src
	return func() tea.Msg {
		res, err := src.Results(context.Background(), sess.ID)
		return resultsLoadedMsg{Res: res, Err: err}
	}
}

func (s *HistoryScreen) View(width, height int) string {
	if !s.loaded {
		return layout.Centered(width, theme.TextDim, "\n\nLoading...")
	}
	if len(s.sessions) == 0 {
		return layout.Centered(width, theme.TextDim, "\n\nNo sessions yet.")
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Foreground(theme.TextDim).Render(
		fmt.Sprintf("  %-16s  %-16s  %-10s  %8s  %s", "Started", "Kind", "Status", "Answered", "Level")))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.Border).Render("  " + strings.Repeat("─", min(width-4, 70))))
	b.WriteString("\n")

	for i, sess := range s.sessions {
		lvl := "-"
		if sess.Result != nil {
			lvl = theme.LevelBadge(sess.Result.Level)
		}
		row := fmt.Sprintf("%-16s  %-16s  %-10s  %8d  ",
			sess.StartedAt.Local().Format("2006-01-02 15:04"), sess.Kind, sess.Status, sess.QuestionsAnswered)

		prefix := "  "
		style := theme.Unselected
		if i == s.selected {
			prefix = "▸ "
			style = theme.Selected
		}
		b.WriteString(style.Render(prefix+row) + lvl + "\n")
	}

	if s.errMsg != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.Error).Render("  " + s.errMsg))
	}
	return b.String()
}
