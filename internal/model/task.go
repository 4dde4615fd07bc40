package model

import (
	"time"
)

type TaskID string

// Priority, Difficulty and Duration are 5-level ordinals. They feed scoring
// and sorting only; graph logic never looks at them.
type Priority int

const (
	PriorityLowest Priority = iota + 1
	PriorityLow
	PriorityMedium
	PriorityHigh
	PriorityHighest
)

type Difficulty int

const (
	DifficultyTrivial Difficulty = iota + 1
	DifficultyEasy
	DifficultyMedium
	DifficultyHard
	DifficultyHerculean
)

type Duration int

const (
	DurationMinutes Duration = iota + 1
	DurationShort
	DurationMedium
	DurationLong
	DurationDays
)

func (p Priority) Valid() bool   { return p >= PriorityLowest && p <= PriorityHighest }
func (d Difficulty) Valid() bool { return d >= DifficultyTrivial && d <= DifficultyHerculean }
func (d Duration) Valid() bool   { return d >= DurationMinutes && d <= DurationDays }

type Subtask struct {
	Text     string `json:"text"`
	Complete bool   `json:"complete"`
}

// HistoryEntry records one field change. The log is append-only and supports
// a single-step undo of the most recent change.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Field     string    `json:"field"`
	OldValue  string    `json:"oldValue"`
	NewValue  string    `json:"newValue"`
}

type Task struct {
	ID          TaskID `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`

	Priority   Priority   `json:"priority"`
	Difficulty Difficulty `json:"difficulty"`
	Duration   Duration   `json:"duration"`

	Complete       bool       `json:"complete"`
	CompletionDate *time.Time `json:"completionDate,omitempty"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	StartDate      *time.Time `json:"startDate,omitempty"`

	// Dependencies holds ids of tasks that must complete before this one is
	// unblocked. Adjacency stays id-based; lookups go through the snapshot
	// map, never through live references.
	Dependencies []TaskID  `json:"dependencies,omitempty"`
	Subtasks     []Subtask `json:"subtasks,omitempty"`

	Tags    []string `json:"tags,omitempty"`
	Project *string  `json:"project,omitempty"`

	Habit      bool        `json:"habit"`
	Recurrence *Recurrence `json:"recurrence,omitempty"`

	StreakCurrent int `json:"streakCurrent"`
	StreakBest    int `json:"streakBest"`

	History []HistoryEntry `json:"history,omitempty"`

	// Score is the last-computed XP value. Derived, not authoritative;
	// the scoring calculator recomputes it on demand.
	Score float64 `json:"score"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (t *Task) HasTag(tag string) bool {
	for _, have := range t.Tags {
		if have == tag {
			return true
		}
	}
	return false
}

func (t *Task) DependsOn(id TaskID) bool {
	for _, dep := range t.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can hand out snapshots without
// sharing slice backing arrays.
func (t Task) Clone() Task {
	out := t
	if t.Dependencies != nil {
		out.Dependencies = append([]TaskID(nil), t.Dependencies...)
	}
	if t.Subtasks != nil {
		out.Subtasks = append([]Subtask(nil), t.Subtasks...)
	}
	if t.Tags != nil {
		out.Tags = append([]string(nil), t.Tags...)
	}
	if t.History != nil {
		out.History = append([]HistoryEntry(nil), t.History...)
	}
	if t.Project != nil {
		p := *t.Project
		out.Project = &p
	}
	if t.CompletionDate != nil {
		v := *t.CompletionDate
		out.CompletionDate = &v
	}
	if t.DueDate != nil {
		v := *t.DueDate
		out.DueDate = &v
	}
	if t.StartDate != nil {
		v := *t.StartDate
		out.StartDate = &v
	}
	if t.Recurrence != nil {
		r := *t.Recurrence
		if t.Recurrence.Rule.Weekdays != nil {
			r.Rule.Weekdays = append([]time.Weekday(nil), t.Recurrence.Rule.Weekdays...)
		}
		out.Recurrence = &r
	}
	return out
}
