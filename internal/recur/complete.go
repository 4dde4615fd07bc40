package recur

import (
	"time"

	"github.com/google/uuid"

	"motido/internal/model"
)

// Proposal is the computed outcome of completing a task. The caller owns
// persistence: on success it writes Closed (and Next when present) back to
// the store; on failure it discards the proposal and keeps its snapshot.
type Proposal struct {
	// Closed is the completed record: unchanged except complete flag,
	// completion date and, for habits, the streak fields.
	Closed model.Task
	// Next is the generated next instance for recurring tasks, nil
	// otherwise. It is always nil when Complete returns an error.
	Next *model.Task
	// Streak is zero-valued unless the task is a habit.
	Streak StreakResult
}

// Complete computes the state transition for a completion event at `now`.
//
// The closure itself always succeeds: even when the recurrence rule cannot
// produce a next date, the returned proposal carries a valid closed record
// and only Next is missing (alongside the error).
func Complete(t model.Task, now time.Time) (Proposal, error) {
	closed := t.Clone()
	closed.Complete = true
	ts := now
	closed.CompletionDate = &ts
	closed.UpdatedAt = now

	var prop Proposal
	if t.Habit {
		var rule *model.Rule
		if t.Recurrence != nil {
			rule = &t.Recurrence.Rule
		}
		prop.Streak = UpdateStreak(t.StreakCurrent, t.StreakBest, t.DueDate, rule, now)
		closed.StreakCurrent = prop.Streak.Current
		closed.StreakBest = prop.Streak.Best
	}
	prop.Closed = closed

	if t.Recurrence == nil {
		return prop, nil
	}

	nextDue, err := NextDueDate(*t.Recurrence, t.DueDate, now, now)
	if err != nil {
		return prop, err
	}

	next := t.Clone()
	next.ID = model.TaskID(uuid.NewString())
	next.Complete = false
	next.CompletionDate = nil
	next.DueDate = &nextDue
	// Start dates belong to the completed cycle and are not carried.
	next.StartDate = nil
	next.Subtasks = CarrySubtasks(t.Subtasks, t.Recurrence.SubtaskMode)
	next.StreakCurrent = closed.StreakCurrent
	next.StreakBest = closed.StreakBest
	next.History = nil
	next.CreatedAt = now
	next.UpdatedAt = now

	prop.Next = &next
	return prop, nil
}
