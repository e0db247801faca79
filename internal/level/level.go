// Package level defines the six-point proficiency scale used for both
// test-takers and items. The scale is closed: stepping past either end
// saturates instead of failing.
package level

import "fmt"

// Level is a position on the proficiency scale.
type Level string

const (
	A1 Level = "A1"
	A2 Level = "A2"
	B1 Level = "B1"
	B2 Level = "B2"
	C1 Level = "C1"
	C2 Level = "C2"
)

var order = [...]Level{A1, A2, B1, B2, C1, C2}

// Count is the number of levels on the scale.
const Count = len(order)

// All returns the levels from easiest to hardest.
func All() []Level {
	out := make([]Level, Count)
	copy(out, order[:])
	return out
}

// Easiest returns the bottom of the scale.
func Easiest() Level { return order[0] }

// Hardest returns the top of the scale.
func Hardest() Level { return order[Count-1] }

// Midpoint returns the level every placement session starts at.
func Midpoint() Level { return B1 }

// Valid reports whether l is one of the six scale levels.
func (l Level) Valid() bool {
	return l.Index() >= 0
}

// Index returns the 0-based position of l, or -1 if l is not on the scale.
func (l Level) Index() int {
	for i, o := range order {
		if o == l {
			return i
		}
	}
	return -1
}

func (l Level) String() string { return string(l) }

// FromIndex returns the level at position i, clamped to the scale.
func FromIndex(i int) Level {
	if i < 0 {
		i = 0
	}
	if i >= Count {
		i = Count - 1
	}
	return order[i]
}

// Parse converts a level code such as "B2" into a Level.
func Parse(s string) (Level, error) {
	l := Level(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown level %q (want one of A1, A2, B1, B2, C1, C2)", s)
	}
	return l, nil
}

// StepUp returns the next harder level. The hardest level maps to itself.
func StepUp(l Level) Level {
	return FromIndex(l.Index() + 1)
}

// StepDown returns the next easier level. The easiest level maps to itself.
func StepDown(l Level) Level {
	i := l.Index()
	if i < 0 {
		return Easiest()
	}
	return FromIndex(i - 1)
}

// Compare returns -1 if a is easier than b, 0 if equal, and +1 if harder.
func Compare(a, b Level) int {
	ai, bi := a.Index(), b.Index()
	switch {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	default:
		return 0
	}
}

// Distance returns the signed number of steps from b to a (a.Index - b.Index).
func Distance(a, b Level) int {
	return a.Index() - b.Index()
}
