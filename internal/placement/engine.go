package placement

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/gauge/internal/apperr"
	"github.com/abhisek/gauge/internal/bank"
	"github.com/abhisek/gauge/internal/level"
	"github.com/abhisek/gauge/internal/logger"
)

// Fallback selects what happens when no unseen item exists at the exact
// level and skill for questions after the first.
type Fallback string

const (
	// FallbackSameLevel retries at the same level with any skill.
	FallbackSameLevel Fallback = "same_level"
	// FallbackNone fails the answer with resource_exhausted.
	FallbackNone Fallback = "none"
)

// Config holds engine parameters.
type Config struct {
	Questions         int
	MaxElapsedSeconds int
	StartLevel        level.Level
	Fallback          Fallback
}

// DefaultConfig returns the standard ten-question configuration.
func DefaultConfig() Config {
	return Config{
		Questions:         10,
		MaxElapsedSeconds: 300,
		StartLevel:        level.Midpoint(),
		Fallback:          FallbackSameLevel,
	}
}

// Engine drives placement sessions. It holds no session state of its own;
// every operation loads, mutates and saves through the store in one
// transaction.
type Engine struct {
	store SessionStore
	cfg   Config
	log   *logger.Logger

	now   func() time.Time
	newID func() string
}

// NewEngine creates an engine. A nil logger discards output.
func NewEngine(store SessionStore, cfg Config, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		store: store,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Start opens a session for an owner and presents its first item.
func (e *Engine) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	const op = "placement.start"
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, apperr.Validation(op, "owner_id", "owner_id is required")
	}
	if req.Kind == "" {
		req.Kind = KindInitial
	}
	if !req.Kind.Valid() {
		return nil, apperr.Validation(op, "kind", "unknown session kind %q", req.Kind)
	}
	if req.SelfReported != nil && !req.SelfReported.Valid() {
		return nil, apperr.Validation(op, "self_reported_level", "unknown level %q", *req.SelfReported)
	}

	var res *StartResult
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		active, err := tx.ActiveForOwner(ctx, req.OwnerID)
		if err != nil {
			return err
		}
		if active != nil {
			return apperr.Conflict(op, "owner %s already has an active session", req.OwnerID).WithSession(active.ID)
		}

		// The first item is never substituted.
		first, err := tx.FindCandidate(ctx, e.cfg.StartLevel, bank.SkillAt(0), nil)
		if err != nil {
			return err
		}

		s := &Session{
			ID:            e.newID(),
			OwnerID:       req.OwnerID,
			Kind:          req.Kind,
			Status:        StatusActive,
			CurrentLevel:  e.cfg.StartLevel,
			SkillCursor:   0,
			CurrentItemID: first.ID,
			SelfReported:  req.SelfReported,
			StartedAt:     e.now(),
		}
		if err := tx.CreateSession(ctx, s); err != nil {
			return err
		}
		res = &StartResult{Session: s, Item: first}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("session started",
		"session_id", res.Session.ID, "owner_id", req.OwnerID, "kind", req.Kind, "item_id", res.Item.ID)
	return res, nil
}

// SubmitAnswer records an answer to the presented item and moves the
// session forward. A failure leaves the session exactly as it was.
func (e *Engine) SubmitAnswer(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	const op = "placement.submit"

	var res *SubmitResult
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		s, err := tx.GetSession(ctx, req.SessionID)
		if err != nil {
			return err
		}
		item, err := tx.GetItem(ctx, req.ItemID)
		if err != nil {
			return err
		}
		if s.Status != StatusActive {
			return apperr.State(op, "session is %s", s.Status).WithSession(s.ID)
		}
		if req.ElapsedSeconds < 0 || req.ElapsedSeconds > e.cfg.MaxElapsedSeconds {
			return apperr.Validation(op, "elapsed_seconds", "must be within [0, %d], got %d",
				e.cfg.MaxElapsedSeconds, req.ElapsedSeconds).WithSession(s.ID).WithItem(item.ID)
		}
		if strings.TrimSpace(req.Answer) == "" {
			return apperr.Validation(op, "answer", "answer is empty").WithSession(s.ID).WithItem(item.ID)
		}
		if item.ID != s.CurrentItemID {
			return apperr.Validation(op, "item_id", "item %d is not the presented item %d",
				item.ID, s.CurrentItemID).WithSession(s.ID).WithItem(item.ID)
		}

		now := e.now()
		correct := item.IsCorrect(req.Answer)
		if err := tx.AppendResponse(ctx, &Response{
			SessionID:      s.ID,
			ItemID:         item.ID,
			Sequence:       s.QuestionsAnswered + 1,
			Answer:         req.Answer,
			Correct:        correct,
			ElapsedSeconds: req.ElapsedSeconds,
			AskLevel:       s.CurrentLevel,
			Skill:          item.Skill,
			AnsweredAt:     now,
		}); err != nil {
			return err
		}

		s.QuestionsAnswered++
		s.TotalElapsed += req.ElapsedSeconds
		if correct {
			s.CorrectAnswers++
		}

		res = &SubmitResult{Correct: correct}
		if !correct {
			res.CorrectAnswer = item.CorrectAnswer
		}

		history, err := tx.Responses(ctx, s.ID)
		if err != nil {
			return err
		}

		if s.QuestionsAnswered >= e.cfg.Questions {
			est := Estimate(history)
			s.Status = StatusComplete
			s.CompletedAt = &now
			s.CurrentItemID = 0
			s.Result = &est
			res.Complete = true
			res.Result = &est
		} else {
			p := advance(position{Level: s.CurrentLevel, Cursor: s.SkillCursor}, correct)
			next, err := e.pick(ctx, tx, p, history)
			if err != nil {
				return apperrWithSession(err, s.ID)
			}
			s.CurrentLevel = p.Level
			s.SkillCursor = p.Cursor
			s.CurrentItemID = next.ID
			res.Next = next
		}
		res.Level = s.CurrentLevel
		res.Remaining = e.cfg.Questions - s.QuestionsAnswered

		return tx.UpdateSession(ctx, s)
	})
	if err != nil {
		return nil, err
	}

	log := e.log.With("session_id", req.SessionID, "item_id", req.ItemID)
	log.Debug("answer recorded", "correct", res.Correct, "level", res.Level, "remaining", res.Remaining)
	if res.Complete {
		log.Info("session complete", "detected_level", res.Result.Level, "confidence", res.Result.Confidence)
	}
	return res, nil
}

// pick selects the next unseen item at p, applying the configured fallback.
func (e *Engine) pick(ctx context.Context, tx Tx, p position, history []Response) (*bank.Item, error) {
	exclude := make([]int64, len(history))
	for i, r := range history {
		exclude[i] = r.ItemID
	}
	skill := bank.SkillAt(p.Cursor)
	item, err := tx.FindCandidate(ctx, p.Level, skill, exclude)
	if err == nil || !apperr.IsExhausted(err) || e.cfg.Fallback != FallbackSameLevel {
		return item, err
	}
	e.log.Warn("no unseen item for level and skill, trying any skill", "level", p.Level, "skill", skill)
	return tx.FindCandidate(ctx, p.Level, "", exclude)
}

func apperrWithSession(err error, sessionID string) error {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.SessionID == "" {
		return ae.WithSession(sessionID)
	}
	return err
}

// Cancel ends an active session without results.
func (e *Engine) Cancel(ctx context.Context, sessionID string) error {
	const op = "placement.cancel"
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		s, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if s.Status.Terminal() {
			return apperr.State(op, "session is already %s", s.Status).WithSession(s.ID)
		}
		now := e.now()
		s.Status = StatusCancelled
		s.CancelledAt = &now
		s.CurrentItemID = 0
		return tx.UpdateSession(ctx, s)
	})
	if err != nil {
		return err
	}
	e.log.Info("session cancelled", "session_id", sessionID)
	return nil
}

// Results returns the persisted outcome of a completed session.
func (e *Engine) Results(ctx context.Context, sessionID string) (*Results, error) {
	const op = "placement.results"
	s, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusComplete || s.Result == nil {
		return nil, apperr.Conflict(op, "session is %s, results are available once complete", s.Status).WithSession(s.ID)
	}

	out := &Results{
		SessionID:    s.ID,
		OwnerID:      s.OwnerID,
		Kind:         s.Kind,
		Estimation:   *s.Result,
		TotalElapsed: s.TotalElapsed,
		SelfReported: s.SelfReported,
	}
	if s.CompletedAt != nil {
		out.CompletedAt = *s.CompletedAt
	}
	if s.SelfReported != nil {
		d := level.Distance(*s.SelfReported, s.Result.Level)
		out.Difference = &d
	}
	return out, nil
}

// Current returns the owner's active session and the item it is waiting
// on, or nil when the owner has none.
func (e *Engine) Current(ctx context.Context, ownerID string) (*StartResult, error) {
	var res *StartResult
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		s, err := tx.ActiveForOwner(ctx, ownerID)
		if err != nil || s == nil {
			return err
		}
		item, err := tx.GetItem(ctx, s.CurrentItemID)
		if err != nil {
			return err
		}
		res = &StartResult{Session: s, Item: item}
		return nil
	})
	return res, err
}

// History lists an owner's sessions, newest first.
func (e *Engine) History(ctx context.Context, ownerID string, limit int) ([]*Session, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperr.Validation("placement.history", "owner_id", "owner_id is required")
	}
	if limit <= 0 {
		limit = 20
	}
	return e.store.ListByOwner(ctx, ownerID, limit)
}

// Responses returns a session's responses in sequence order.
func (e *Engine) Responses(ctx context.Context, sessionID string) ([]Response, error) {
	if _, err := e.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return e.store.Responses(ctx, sessionID)
}
