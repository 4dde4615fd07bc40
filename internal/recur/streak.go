package recur

import (
	"time"

	"motido/internal/model"
)

// StreakResult reports the streak transition for a habit completion, in the
// same shape the rest of the engine uses: new values plus what happened.
type StreakResult struct {
	Current  int
	Best     int
	Advanced bool
	Reset    bool
	// Healed is set when the input violated streak_current <= streak_best
	// and best was raised to match before updating.
	Healed bool
}

// UpdateStreak advances or resets a habit streak for a completion event.
// The streak continues when the completion day falls before the next
// occurrence computed from the previous due date, i.e. no full cycle was
// missed. Without a rule or prior due date there is no window to miss and
// the streak simply advances. Best tracks current unconditionally, so
// streak_best >= streak_current holds on output no matter the input.
func UpdateStreak(current, best int, prevDue *time.Time, rule *model.Rule, completedAt time.Time) StreakResult {
	res := StreakResult{}
	if current < 0 {
		current = 0
	}
	if best < current {
		best = current
		res.Healed = true
	}

	onSchedule := true
	if rule != nil && prevDue != nil {
		windowEnd := advance(*rule, startOfDay(*prevDue))
		onSchedule = startOfDay(completedAt).Before(windowEnd)
	}

	if onSchedule {
		current++
		res.Advanced = true
	} else {
		current = 1
		res.Reset = true
	}
	if best < current {
		best = current
	}

	res.Current = current
	res.Best = best
	return res
}
