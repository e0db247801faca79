package placement

import (
	"github.com/abhisek/gauge/internal/bank"
	"github.com/abhisek/gauge/internal/level"
)

// position is the part of a session that decides what is asked next.
type position struct {
	Level  level.Level
	Cursor int
}

// nextLevel moves one step up on a correct answer and one step down
// otherwise. The step size never depends on anything else.
func nextLevel(cur level.Level, correct bool) level.Level {
	if correct {
		return level.StepUp(cur)
	}
	return level.StepDown(cur)
}

// nextSkill advances the rotation cursor round-robin.
func nextSkill(cursor int) int {
	return (cursor + 1) % bank.SkillCount
}

func advance(p position, correct bool) position {
	return position{
		Level:  nextLevel(p.Level, correct),
		Cursor: nextSkill(p.Cursor),
	}
}
