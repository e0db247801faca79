// Package take is the screen a test-taker answers placement items on.
package take

import (
	"context"
	"fmt"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/gauge/internal/apperr"
	"github.com/abhisek/gauge/internal/bank"
	"github.com/abhisek/gauge/internal/level"
	"github.com/abhisek/gauge/internal/logger"
	"github.com/abhisek/gauge/internal/placement"
	"github.com/abhisek/gauge/internal/router"
	"github.com/abhisek/gauge/internal/screen"
	"github.com/abhisek/gauge/internal/ui/components"
	"github.com/abhisek/gauge/internal/ui/layout"
)

// Engine is the part of placement.Engine the screen drives.
type Engine interface {
	Config() placement.Config
	Current(ctx context.Context, ownerID string) (*placement.StartResult, error)
	Start(ctx context.Context, req placement.StartRequest) (*placement.StartResult, error)
	SubmitAnswer(ctx context.Context, req placement.SubmitRequest) (*placement.SubmitResult, error)
	Cancel(ctx context.Context, sessionID string) error
	Results(ctx context.Context, sessionID string) (*placement.Results, error)
}

// ResultsFactory builds the screen shown once a session completes.
type ResultsFactory func(*placement.Results) screen.Screen

// TakeScreen runs one placement session from first item to results.
type TakeScreen struct {
	engine  Engine
	req     placement.StartRequest
	results ResultsFactory
	log     *logger.Logger
	now     func() time.Time

	session  *placement.Session
	item     *bank.Item
	level    level.Level
	answered int
	resumed  bool

	shownAt  time.Time
	elapsed  time.Duration
	useInput bool
	choice   components.MultiChoice
	input    components.TextInput

	submitting  bool
	feedback    *placement.SubmitResult
	confirmQuit bool
	errMsg      string
}

var _ screen.Screen = (*TakeScreen)(nil)
var _ screen.KeyHintProvider = (*TakeScreen)(nil)
var _ screen.StatusProvider = (*TakeScreen)(nil)
var _ screen.BackInterceptor = (*TakeScreen)(nil)

// New creates a screen that resumes the owner's active session or starts
// a new one from req.
func New(engine Engine, req placement.StartRequest, results ResultsFactory, log *logger.Logger) *TakeScreen {
	if log == nil {
		log = logger.Nop()
	}
	return &TakeScreen{
		engine:  engine,
		req:     req,
		results: results,
		log:     log,
		now:     time.Now,
	}
}

func (s *TakeScreen) Init() tea.Cmd {
	return s.start()
}

func (s *TakeScreen) Title() string {
	if s.req.Kind == placement.KindRetest {
		return "Re-test"
	}
	return "Placement Test"
}

func (s *TakeScreen) Status() string {
	if s.session == nil {
		return s.req.OwnerID
	}
	return fmt.Sprintf("%s  Level %s", s.req.OwnerID, s.level)
}

func (s *TakeScreen) InterceptsBack() bool {
	return s.errMsg == "" && s.session != nil
}

func (s *TakeScreen) KeyHints() []layout.KeyHint {
	switch {
	case s.errMsg != "":
		return []layout.KeyHint{{Key: "any key", Description: "Back"}}
	case s.confirmQuit:
		return []layout.KeyHint{
			{Key: "Y", Description: "Cancel test"},
			{Key: "N", Description: "Keep going"},
		}
	case s.feedback != nil:
		return []layout.KeyHint{{Key: "any key", Description: "Continue"}}
	case s.useInput:
		return []layout.KeyHint{
			{Key: "Enter", Description: "Submit"},
			{Key: "Esc", Description: "Quit"},
		}
	}
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Choose"},
		{Key: "1-6", Description: "Answer"},
		{Key: "Enter", Description: "Submit"},
		{Key: "Esc", Description: "Quit"},
	}
}

func (s *TakeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case startedMsg:
		return s.handleStarted(msg)
	case answeredMsg:
		return s.handleAnswered(msg)
	case resultsMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		return s, func() tea.Msg {
			return router.ReplaceScreenMsg{Screen: s.results(msg.Res)}
		}
	case cancelledMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		return s, func() tea.Msg { return router.PopScreenMsg{} }
	case timerTickMsg:
		if s.session == nil || s.feedback != nil && s.feedback.Complete {
			return s, nil
		}
		s.elapsed = s.now().Sub(s.shownAt)
		return s, tickCmd()
	case tea.KeyMsg:
		return s.handleKey(msg)
	}

	if s.useInput && s.feedback == nil && !s.confirmQuit {
		var cmd tea.Cmd
		s.input, cmd = s.input.Update(msg)
		return s, cmd
	}
	return s, nil
}

// start resumes the owner's active session if there is one.
func (s *TakeScreen) start() tea.Cmd {
	engine, req := s.engine, s.req
	return func() tea.Msg {
		ctx := context.Background()
		cur, err := engine.Current(ctx, req.OwnerID)
		if err != nil {
			return startedMsg{Err: err}
		}
		if cur != nil {
			return startedMsg{Res: cur, Resumed: true}
		}
		res, err := engine.Start(ctx, req)
		return startedMsg{Res: res, Err: err}
	}
}

func (s *TakeScreen) handleStarted(msg startedMsg) (screen.Screen, tea.Cmd) {
	if msg.Err != nil {
		s.errMsg = describe(msg.Err)
		return s, nil
	}
	s.session = msg.Res.Session
	s.level = s.session.CurrentLevel
	s.answered = s.session.QuestionsAnswered
	s.resumed = msg.Resumed
	if msg.Resumed {
		s.log.Info("resuming session", "session_id", s.session.ID, "answered", s.answered)
	}
	return s, tea.Batch(s.present(msg.Res.Item), tickCmd())
}

// present shows item and restarts its timer.
func (s *TakeScreen) present(item *bank.Item) tea.Cmd {
	s.item = item
	s.feedback = nil
	s.submitting = false
	s.shownAt = s.now()
	s.elapsed = 0
	s.useInput = item.Type == bank.TypeFillBlank
	s.choice = components.NewMultiChoice(item.Options)
	s.input = components.NewTextInput("Type your answer...", 120)
	if s.useInput {
		return s.input.Init()
	}
	return nil
}

func (s *TakeScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	key := msg.String()

	if s.errMsg != "" {
		return s, func() tea.Msg { return router.PopScreenMsg{} }
	}
	if s.session == nil {
		return s, nil
	}

	if s.confirmQuit {
		switch key {
		case "y", "Y":
			s.confirmQuit = false
			return s, s.cancel()
		case "n", "N", "esc":
			s.confirmQuit = false
		}
		return s, nil
	}

	if s.feedback != nil {
		if s.feedback.Complete {
			return s, s.loadResults()
		}
		return s, s.present(s.feedback.Next)
	}

	if s.submitting {
		return s, nil
	}
	if key == "esc" {
		s.confirmQuit = true
		return s, nil
	}

	if s.useInput {
		if key == "enter" {
			if answer := s.input.Value(); answer != "" {
				return s, s.submit(answer)
			}
			return s, nil
		}
		var cmd tea.Cmd
		s.input, cmd = s.input.Update(msg)
		return s, cmd
	}

	s.choice, _ = s.choice.Update(msg)
	if s.choice.Submitted {
		return s, s.submit(s.choice.Value())
	}
	return s, nil
}

// submit sends answer with the whole seconds the item has been on screen,
// capped at the engine's maximum.
func (s *TakeScreen) submit(answer string) tea.Cmd {
	s.submitting = true
	elapsed := int(s.now().Sub(s.shownAt).Seconds())
	if limit := s.engine.Config().MaxElapsedSeconds; elapsed > limit {
		elapsed = limit
	}
	engine := s.engine
	req := placement.SubmitRequest{
		SessionID:      s.session.ID,
		ItemID:         s.item.ID,
		Answer:         answer,
		ElapsedSeconds: elapsed,
	}
	return func() tea.Msg {
		res, err := engine.SubmitAnswer(context.Background(), req)
		return answeredMsg{Res: res, Err: err}
	}
}

func (s *TakeScreen) handleAnswered(msg answeredMsg) (screen.Screen, tea.Cmd) {
	s.submitting = false
	if msg.Err != nil {
		s.log.Warn("answer not recorded", "session_id", s.session.ID, "item_id", s.item.ID, "error", msg.Err)
		s.errMsg = describe(msg.Err)
		return s, nil
	}
	res := msg.Res
	s.feedback = res
	s.level = res.Level
	s.answered++

	correct := res.CorrectAnswer
	if res.Correct {
		correct = s.choice.Value()
	}
	s.choice.Reveal(correct)
	s.input.Submit(res.Correct)
	return s, nil
}

func (s *TakeScreen) loadResults() tea.Cmd {
	engine, id := s.engine, s.session.ID
	return func() tea.Msg {
		res, err := engine.Results(context.Background(), id)
		return resultsMsg{Res: res, Err: err}
	}
}

func (s *TakeScreen) cancel() tea.Cmd {
	engine, id := s.engine, s.session.ID
	return func() tea.Msg {
		return cancelledMsg{Err: engine.Cancel(context.Background(), id)}
	}
}

// describe turns engine errors into a line a test-taker can act on.
func describe(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindExhausted:
		return "The question bank has run out of unseen questions for this level. Please tell your administrator."
	case apperr.KindConflict:
		return "You already have a test in progress."
	case apperr.KindState:
		return "This test has already ended."
	}
	return err.Error()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return timerTickMsg(t)
	})
}
