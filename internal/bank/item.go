// Package bank holds the question bank model: items, skills, item types,
// and the rules an item must satisfy before it can be stored.
package bank

import (
	"strings"
	"time"

	"github.com/abhisek/gauge/internal/apperr"
	"github.com/abhisek/gauge/internal/level"
)

// Skill is the competency an item assesses.
type Skill string

const (
	SkillGrammar    Skill = "grammar"
	SkillVocabulary Skill = "vocabulary"
	SkillReading    Skill = "reading"
	SkillListening  Skill = "listening"
)

var rotation = [...]Skill{SkillGrammar, SkillVocabulary, SkillReading, SkillListening}

// SkillCount is the length of the skill rotation.
const SkillCount = len(rotation)

// Rotation returns the skills in the fixed order a session cycles through.
func Rotation() []Skill {
	out := make([]Skill, SkillCount)
	copy(out, rotation[:])
	return out
}

// SkillAt returns the skill at cursor position i (mod SkillCount).
func SkillAt(i int) Skill {
	i %= SkillCount
	if i < 0 {
		i += SkillCount
	}
	return rotation[i]
}

// Valid reports whether s is a known skill.
func (s Skill) Valid() bool {
	for _, r := range rotation {
		if r == s {
			return true
		}
	}
	return false
}

// SkillDisplayName returns a human-readable name for a skill.
func SkillDisplayName(s Skill) string {
	switch s {
	case SkillGrammar:
		return "Grammar"
	case SkillVocabulary:
		return "Vocabulary"
	case SkillReading:
		return "Reading"
	case SkillListening:
		return "Listening"
	default:
		return string(s)
	}
}

// ItemType describes how a test-taker answers an item.
type ItemType string

const (
	TypeMultipleChoice ItemType = "multiple_choice"
	TypeFillBlank      ItemType = "fill_blank"
	TypeOrdering       ItemType = "ordering"
	TypeAudioResponse  ItemType = "audio_response"
)

// AllTypes returns every item type.
func AllTypes() []ItemType {
	return []ItemType{TypeMultipleChoice, TypeFillBlank, TypeOrdering, TypeAudioResponse}
}

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	switch t {
	case TypeMultipleChoice, TypeFillBlank, TypeOrdering, TypeAudioResponse:
		return true
	}
	return false
}

const (
	MinOptions = 2
	MaxOptions = 6
)

// Item is a single question in the bank.
type Item struct {
	ID            int64
	Text          string
	Type          ItemType
	Level         level.Level
	Skill         Skill
	Options       []string
	CorrectAnswer string
	Explanation   string

	// Branch pointers carried over from legacy banks. Selection is
	// level/skill driven and never reads them.
	NextIfCorrect   *int64
	NextIfIncorrect *int64

	ImportID  *int64
	CreatedAt time.Time
}

// IsCorrect reports whether answer matches the correct option exactly.
// Comparison is case-sensitive and performs no normalization.
func (it *Item) IsCorrect(answer string) bool {
	return answer == it.CorrectAnswer
}

// HasOption reports whether s is one of the item's options.
func (it *Item) HasOption(s string) bool {
	for _, o := range it.Options {
		if o == s {
			return true
		}
	}
	return false
}

// Validate checks the invariants an item must hold before it is stored.
// The first violation is returned as an apperr validation error.
func (it *Item) Validate() error {
	const op = "bank.validate"
	if strings.TrimSpace(it.Text) == "" {
		return apperr.Validation(op, "question_text", "question_text is empty")
	}
	if !it.Type.Valid() {
		return apperr.Validation(op, "question_type", "invalid question_type %q", it.Type)
	}
	if !it.Level.Valid() {
		return apperr.Validation(op, "difficulty_level", "invalid difficulty_level %q", it.Level)
	}
	if !it.Skill.Valid() {
		return apperr.Validation(op, "skill_focus", "invalid skill_focus %q", it.Skill)
	}
	if len(it.Options) < MinOptions {
		return apperr.Validation(op, "options", "at least %d options required, got %d", MinOptions, len(it.Options))
	}
	if len(it.Options) > MaxOptions {
		return apperr.Validation(op, "options", "at most %d options allowed, got %d", MaxOptions, len(it.Options))
	}
	seen := make(map[string]bool, len(it.Options))
	for i, o := range it.Options {
		if strings.TrimSpace(o) == "" {
			return apperr.Validation(op, "options", "option %d is empty", i+1)
		}
		if seen[o] {
			return apperr.Validation(op, "options", "duplicate option %q", o)
		}
		seen[o] = true
	}
	if it.CorrectAnswer == "" {
		return apperr.Validation(op, "correct_answer", "correct_answer is empty")
	}
	if !it.HasOption(it.CorrectAnswer) {
		return apperr.Validation(op, "correct_answer", "correct_answer %q not found in options", it.CorrectAnswer)
	}
	return nil
}
