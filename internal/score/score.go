// Package score derives XP values for tasks from their priority, difficulty
// and duration weights plus tag/project multipliers. Scoring is pure; the
// caller decides whether to persist the result.
package score

import (
	"motido/internal/model"
)

// Lookup resolves multipliers from the tag/project registries.
// A missing entry means "no multiplier" and defaults to 1.0.
type Lookup interface {
	TagMultiplier(name string) (float64, bool)
	ProjectMultiplier(name string) (float64, bool)
}

// Weights is the fixed base-score table, one weight per ordinal level
// (index 0 = lowest). Higher levels must carry higher weights.
type Weights struct {
	Priority   [5]float64
	Difficulty [5]float64
	Duration   [5]float64
}

// DefaultWeights roughly doubles per level so that a highest-everything task
// is worth an order of magnitude more than a trivial one.
func DefaultWeights() Weights {
	scale := [5]float64{1, 2, 3, 5, 8}
	return Weights{Priority: scale, Difficulty: scale, Duration: scale}
}

type Calculator struct {
	weights Weights
}

func NewCalculator(w Weights) *Calculator {
	return &Calculator{weights: w}
}

// Score computes the XP value for a task. The base is the sum of the three
// ordinal weights; the result multiplies in every tag multiplier and the
// project multiplier. Unknown ordinals clamp to the lowest level.
func (c *Calculator) Score(t model.Task, reg Lookup) float64 {
	base := c.weights.Priority[clampLevel(int(t.Priority))] +
		c.weights.Difficulty[clampLevel(int(t.Difficulty))] +
		c.weights.Duration[clampLevel(int(t.Duration))]

	mult := 1.0
	if reg != nil {
		for _, tag := range t.Tags {
			if m, ok := reg.TagMultiplier(tag); ok && m > 0 {
				mult *= m
			}
		}
		if t.Project != nil {
			if m, ok := reg.ProjectMultiplier(*t.Project); ok && m > 0 {
				mult *= m
			}
		}
	}

	s := base * mult
	if s < 0 {
		return 0
	}
	return s
}

func clampLevel(level int) int {
	if level < 1 {
		return 0
	}
	if level > 5 {
		return 4
	}
	return level - 1
}
