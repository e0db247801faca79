// Package placement runs adaptive placement sessions: it presents items one
// level step at a time, records responses, and estimates the test-taker's
// level once the session completes.
package placement

import (
	"time"

	"github.com/abhisek/gauge/internal/bank"
	"github.com/abhisek/gauge/internal/level"
)

// Kind distinguishes a first placement from a scheduled re-test.
type Kind string

const (
	KindInitial Kind = "initial"
	KindRetest  Kind = "periodic_retest"
)

func (k Kind) Valid() bool {
	return k == KindInitial || k == KindRetest
}

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive    Status = "active"
	StatusComplete  Status = "complete"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusCancelled
}

// Session is one adaptive test-taking attempt by one owner.
type Session struct {
	ID      string
	OwnerID string
	Kind    Kind
	Status  Status

	// CurrentLevel is the level the next item is asked at.
	CurrentLevel level.Level

	// SkillCursor indexes bank.Rotation for the next item.
	SkillCursor int

	// QuestionsAnswered counts recorded responses (0..Questions).
	QuestionsAnswered int

	CorrectAnswers int

	// TotalElapsed is the sum of caller-reported elapsed seconds.
	TotalElapsed int

	// CurrentItemID is the item presented and awaiting an answer. Zero once
	// the session is terminal.
	CurrentItemID int64

	// SelfReported is the level the owner claimed at start, if any.
	SelfReported *level.Level

	StartedAt   time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time

	// Result is set when the session completes.
	Result *Estimation
}

// Response is one recorded answer. Responses are immutable.
type Response struct {
	ID        int64
	SessionID string
	ItemID    int64
	Sequence  int
	Answer    string
	Correct   bool

	ElapsedSeconds int

	// AskLevel is the session level when the item was presented. It does
	// not follow later reclassification of the item.
	AskLevel level.Level
	Skill    bank.Skill

	AnsweredAt time.Time
}

// StartRequest carries the inputs to Engine.Start.
type StartRequest struct {
	OwnerID      string
	Kind         Kind
	SelfReported *level.Level
}

// StartResult is the new session and its first item.
type StartResult struct {
	Session *Session
	Item    *bank.Item
}

// SubmitRequest carries the inputs to Engine.SubmitAnswer.
type SubmitRequest struct {
	SessionID      string
	ItemID         int64
	Answer         string
	ElapsedSeconds int
}

// SubmitResult describes the effect of one answer.
type SubmitResult struct {
	Correct bool

	// CorrectAnswer is filled in only when the answer was wrong.
	CorrectAnswer string

	// Level is the session level after this answer.
	Level     level.Level
	Remaining int
	Complete  bool

	// Next is the item to present next, nil on completion.
	Next *bank.Item

	// Result is the final estimation, set on completion.
	Result *Estimation
}

// Results is the read model returned for a completed session.
type Results struct {
	SessionID    string
	OwnerID      string
	Kind         Kind
	Estimation   Estimation
	TotalElapsed int
	CompletedAt  time.Time

	SelfReported *level.Level

	// Difference is SelfReported index minus detected index. Positive
	// means the owner over-estimated their level.
	Difference *int
}
