package recur

import (
	"testing"
	"time"

	"motido/internal/model"
)

func TestCompleteNonRecurring(t *testing.T) {
	now := time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC)
	task := model.Task{ID: "t1", Title: "one-off", DueDate: dayPtr(2024, time.January, 10)}

	prop, err := Complete(task, now)
	if err != nil {
		t.Fatal(err)
	}
	if !prop.Closed.Complete {
		t.Error("closed record not marked complete")
	}
	if prop.Closed.CompletionDate == nil || !prop.Closed.CompletionDate.Equal(now) {
		t.Errorf("completion date = %v, want %s", prop.Closed.CompletionDate, now)
	}
	if prop.Next != nil {
		t.Errorf("non-recurring task generated a next instance: %+v", prop.Next)
	}
}

func TestCompleteRecurringGeneratesNext(t *testing.T) {
	now := time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC)
	task := model.Task{
		ID:        "t1",
		Title:     "water plants",
		DueDate:   dayPtr(2024, time.January, 10),
		StartDate: dayPtr(2024, time.January, 9),
		Subtasks:  subs(true, false),
		Recurrence: &model.Recurrence{
			Rule:        mustDaily(t, 1),
			Anchor:      model.FromDueDate,
			SubtaskMode: model.SubtaskPartial,
		},
	}

	prop, err := Complete(task, now)
	if err != nil {
		t.Fatal(err)
	}
	next := prop.Next
	if next == nil {
		t.Fatal("no next instance")
	}
	if next.ID == task.ID || next.ID == "" {
		t.Errorf("next instance id %q not fresh", next.ID)
	}
	if next.Complete || next.CompletionDate != nil {
		t.Error("next instance starts complete")
	}
	if next.DueDate == nil || !next.DueDate.Equal(day(2024, time.January, 11)) {
		t.Errorf("next due = %v, want 2024-01-11", next.DueDate)
	}
	if next.StartDate != nil {
		t.Errorf("start date carried onto next instance: %v", next.StartDate)
	}
	if len(next.Subtasks) != 1 || !next.Subtasks[0].Complete {
		t.Errorf("partial carry: got %v, want just the completed subtask", next.Subtasks)
	}
	if next.History != nil {
		t.Errorf("next instance inherited history: %v", next.History)
	}
	if next.Title != task.Title {
		t.Errorf("title changed: %q", next.Title)
	}
}

func TestCompleteHabitUpdatesStreak(t *testing.T) {
	now := time.Date(2024, time.January, 10, 8, 0, 0, 0, time.UTC)
	task := model.Task{
		ID:            "h1",
		Title:         "morning run",
		Habit:         true,
		DueDate:       dayPtr(2024, time.January, 10),
		StreakCurrent: 3,
		StreakBest:    3,
		Recurrence: &model.Recurrence{
			Rule:        mustDaily(t, 1),
			Anchor:      model.FromDueDate,
			SubtaskMode: model.SubtaskDefault,
		},
	}

	prop, err := Complete(task, now)
	if err != nil {
		t.Fatal(err)
	}
	if !prop.Streak.Advanced {
		t.Fatalf("streak not advanced: %+v", prop.Streak)
	}
	if prop.Closed.StreakCurrent != 4 || prop.Closed.StreakBest != 4 {
		t.Errorf("closed streak = %d/%d, want 4/4", prop.Closed.StreakCurrent, prop.Closed.StreakBest)
	}
	if prop.Next.StreakCurrent != 4 || prop.Next.StreakBest != 4 {
		t.Errorf("next streak = %d/%d, want 4/4", prop.Next.StreakCurrent, prop.Next.StreakBest)
	}
}

func TestCompleteHabitWithoutRecurrence(t *testing.T) {
	now := time.Date(2024, time.January, 10, 8, 0, 0, 0, time.UTC)
	task := model.Task{ID: "h2", Habit: true, StreakCurrent: 1, StreakBest: 1}

	prop, err := Complete(task, now)
	if err != nil {
		t.Fatal(err)
	}
	if prop.Next != nil {
		t.Error("habit without recurrence generated a next instance")
	}
	if prop.Closed.StreakCurrent != 2 {
		t.Errorf("streak = %d, want 2", prop.Closed.StreakCurrent)
	}
}

func TestCompleteBadRuleStillCloses(t *testing.T) {
	now := time.Date(2024, time.January, 10, 8, 0, 0, 0, time.UTC)
	task := model.Task{
		ID:      "t1",
		DueDate: dayPtr(2024, time.January, 10),
		Recurrence: &model.Recurrence{
			Rule:        model.Rule{Freq: model.Weekly, Interval: 1}, // no weekdays
			Anchor:      model.FromDueDate,
			SubtaskMode: model.SubtaskDefault,
		},
	}

	prop, err := Complete(task, now)
	if err == nil {
		t.Fatal("expected an error from the broken rule")
	}
	if !prop.Closed.Complete {
		t.Error("closure dropped because next-instance generation failed")
	}
	if prop.Next != nil {
		t.Errorf("next instance present alongside error: %+v", prop.Next)
	}
}

func TestCompleteDoesNotMutateInput(t *testing.T) {
	now := time.Date(2024, time.January, 10, 8, 0, 0, 0, time.UTC)
	task := model.Task{
		ID:       "t1",
		DueDate:  dayPtr(2024, time.January, 10),
		Subtasks: subs(true, true),
		Recurrence: &model.Recurrence{
			Rule:        mustDaily(t, 1),
			Anchor:      model.FromDueDate,
			SubtaskMode: model.SubtaskDefault,
		},
	}

	if _, err := Complete(task, now); err != nil {
		t.Fatal(err)
	}
	if task.Complete || task.CompletionDate != nil {
		t.Error("input task mutated")
	}
	if !task.Subtasks[0].Complete {
		t.Error("input subtasks mutated")
	}
}
