// Package calibration checks whether bank items behave like their assigned
// level, aggregates the result into bank health reports, and records audited
// level changes.
package calibration

import (
	"math"
	"time"

	"github.com/abhisek/gauge/internal/bank"
	"github.com/abhisek/gauge/internal/level"
)

// Direction is the way a flagged item is miscalibrated.
type Direction string

const (
	DirectionNone    Direction = ""
	DirectionTooEasy Direction = "too_easy"
	DirectionTooHard Direction = "too_hard"
)

// Observation is one response to an item from a completed session, joined
// with the level that session detected for its owner.
type Observation struct {
	SessionID      string
	Correct        bool
	ElapsedSeconds int
	AskLevel       level.Level
	ResponderLevel level.Level
	AnsweredAt     time.Time
}

// Tally counts attempts and correct answers.
type Tally struct {
	Attempts int `json:"attempts"`
	Correct  int `json:"correct"`
}

func (t Tally) rate() float64 {
	if t.Attempts == 0 {
		return 0
	}
	return float64(t.Correct) / float64(t.Attempts)
}

// ItemMetrics is the analysis of one item. It is derived data and can be
// recomputed from the response log at any time.
type ItemMetrics struct {
	ItemID     int64       `json:"item_id"`
	ItemLevel  level.Level `json:"item_level"`
	Skill      bank.Skill  `json:"skill"`
	Attempts   int         `json:"attempts"`
	Correct    int         `json:"correct"`
	Accuracy   float64     `json:"accuracy"`
	AvgElapsed float64     `json:"avg_elapsed_seconds"`

	// ByResponderLevel groups attempts by the responder's detected level.
	ByResponderLevel map[level.Level]Tally `json:"by_responder_level"`

	Confidence  float64      `json:"confidence"`
	NeedsReview bool         `json:"needs_review"`
	Direction   Direction    `json:"direction,omitempty"`
	Recommended *level.Level `json:"recommended_level,omitempty"`
	ComputedAt  time.Time    `json:"computed_at"`
}

// Thresholds are the review rules applied by Analyze.
type Thresholds struct {
	// MinAttempts must be exceeded before an item can be flagged.
	MinAttempts int
	// TooEasyAbove flags items whose accuracy is strictly higher.
	TooEasyAbove float64
	// TooHardBelow flags items whose accuracy is strictly lower.
	TooHardBelow float64
}

// DefaultThresholds flags items with more than 10 attempts answered above
// 85% or below 40%.
func DefaultThresholds() Thresholds {
	return Thresholds{MinAttempts: 10, TooEasyAbove: 85, TooHardBelow: 40}
}

// A responder level counts as having mastered an item when it has at
// least this much evidence at this accuracy.
const (
	masteryEvidence = 2
	masteryRate     = 0.6
)

// Analyze computes the metrics for item from its observations.
//
// Confidence measures how well correctness separates responders at or
// above the item's level from those below it:
//
//	both cohorts:          100 * max(0, accAbove - accBelow)
//	only at-or-above:       50 * accAbove
//	only below:             50 * (1 - accBelow)
//	no responses:           0
func Analyze(item *bank.Item, obs []Observation, th Thresholds, now time.Time) ItemMetrics {
	m := ItemMetrics{
		ItemID:           item.ID,
		ItemLevel:        item.Level,
		Skill:            item.Skill,
		ByResponderLevel: make(map[level.Level]Tally),
		ComputedAt:       now,
	}
	if len(obs) == 0 {
		return m
	}

	var above, below Tally
	elapsed := 0
	for _, o := range obs {
		m.Attempts++
		elapsed += o.ElapsedSeconds
		if o.Correct {
			m.Correct++
		}

		if !o.ResponderLevel.Valid() {
			continue
		}
		t := m.ByResponderLevel[o.ResponderLevel]
		t.Attempts++
		if o.Correct {
			t.Correct++
		}
		m.ByResponderLevel[o.ResponderLevel] = t

		cohort := &below
		if level.Compare(o.ResponderLevel, item.Level) >= 0 {
			cohort = &above
		}
		cohort.Attempts++
		if o.Correct {
			cohort.Correct++
		}
	}

	// Thresholds apply to the exact rate; Accuracy is rounded for display.
	rate := 100 * float64(m.Correct) / float64(m.Attempts)
	m.Accuracy = round2(rate)
	m.AvgElapsed = round2(float64(elapsed) / float64(m.Attempts))
	m.Confidence = round2(confidence(above, below))

	if m.Attempts > th.MinAttempts {
		switch {
		case rate > th.TooEasyAbove:
			m.NeedsReview = true
			m.Direction = DirectionTooEasy
		case rate < th.TooHardBelow:
			m.NeedsReview = true
			m.Direction = DirectionTooHard
		}
	}
	if m.NeedsReview {
		if rec := recommend(item.Level, m.Direction, m.ByResponderLevel); rec != item.Level {
			m.Recommended = &rec
		}
	}
	return m
}

func confidence(above, below Tally) float64 {
	switch {
	case above.Attempts > 0 && below.Attempts > 0:
		return 100 * math.Max(0, above.rate()-below.rate())
	case above.Attempts > 0:
		return 50 * above.rate()
	case below.Attempts > 0:
		return 50 * (1 - below.rate())
	}
	return 0
}

// recommend picks the easiest responder level on the indicated side of
// current whose responders mastered the item, or a single step when none
// did. The result equals current when current is already at the edge.
func recommend(current level.Level, dir Direction, by map[level.Level]Tally) level.Level {
	mastered := func(l level.Level) bool {
		t := by[l]
		return t.Attempts >= masteryEvidence && t.rate() >= masteryRate
	}
	idx := current.Index()
	switch dir {
	case DirectionTooEasy:
		for i := 0; i < idx; i++ {
			if l := level.FromIndex(i); mastered(l) {
				return l
			}
		}
		return level.StepDown(current)
	case DirectionTooHard:
		for i := idx + 1; i < level.Count; i++ {
			if l := level.FromIndex(i); mastered(l) {
				return l
			}
		}
		return level.StepUp(current)
	}
	return current
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
