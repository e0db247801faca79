package bank

import (
	"fmt"

	"github.com/abhisek/gauge/internal/level"
)

// Cell identifies one level/skill combination of the bank.
type Cell struct {
	Level level.Level
	Skill Skill
}

// Coverage is the item count for every level/skill cell plus the cells
// that fall short of a minimum.
type Coverage struct {
	Counts  map[Cell]int
	ByLevel map[level.Level]int
	BySkill map[Skill]int
	Total   int
	Minimum int
	Gaps    []string
}

// Distribution counts items per level and skill. Every cell of the grid
// is checked against minimum, including cells with no items.
func Distribution(items []*Item, minimum int) *Coverage {
	c := &Coverage{
		Counts:  make(map[Cell]int),
		ByLevel: make(map[level.Level]int),
		BySkill: make(map[Skill]int),
		Minimum: minimum,
	}
	for _, it := range items {
		c.Counts[Cell{it.Level, it.Skill}]++
		c.ByLevel[it.Level]++
		c.BySkill[it.Skill]++
		c.Total++
	}
	for _, l := range level.All() {
		for _, s := range Rotation() {
			if n := c.Counts[Cell{l, s}]; n < minimum {
				c.Gaps = append(c.Gaps, fmt.Sprintf("%s %s: only %d questions (need %d+ per level/skill)", l, s, n, minimum))
			}
		}
	}
	return c
}
