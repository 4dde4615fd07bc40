package task

import (
	"encoding/json"
	"fmt"
	"time"

	"motido/internal/model"
)

// Patch is a partial update. nil pointer => "no change". Pointer string
// fields (Project) clear on empty string; date and recurrence fields have
// explicit Clear flags since a nil pointer already means "leave alone".
type Patch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`

	Priority   *model.Priority   `json:"priority,omitempty"`
	Difficulty *model.Difficulty `json:"difficulty,omitempty"`
	Duration   *model.Duration   `json:"duration,omitempty"`

	// Complete toggles the flag directly, maintaining CompletionDate.
	// The completion engine does not run here; use the service's Complete
	// for recurrence, streaks and scoring.
	Complete *bool `json:"complete,omitempty"`

	DueDate      *time.Time `json:"dueDate,omitempty"`
	ClearDueDate bool       `json:"clearDueDate,omitempty"`

	StartDate      *time.Time `json:"startDate,omitempty"`
	ClearStartDate bool       `json:"clearStartDate,omitempty"`

	Dependencies *[]model.TaskID  `json:"dependencies,omitempty"`
	Subtasks     *[]model.Subtask `json:"subtasks,omitempty"`
	Tags         *[]string        `json:"tags,omitempty"`
	Project      *string          `json:"project,omitempty"`

	Habit           *bool             `json:"habit,omitempty"`
	Recurrence      *model.Recurrence `json:"recurrence,omitempty"`
	ClearRecurrence bool              `json:"clearRecurrence,omitempty"`

	// Score is derived state set by the service after rescoring; it is
	// not part of the history log.
	Score *float64 `json:"score,omitempty"`
}

// History field names. Undo keys off these.
const (
	fieldTitle        = "title"
	fieldDescription  = "description"
	fieldPriority     = "priority"
	fieldDifficulty   = "difficulty"
	fieldDuration     = "duration"
	fieldComplete     = "complete"
	fieldDueDate      = "due_date"
	fieldStartDate    = "start_date"
	fieldDependencies = "dependencies"
	fieldSubtasks     = "subtasks"
	fieldTags         = "tags"
	fieldProject      = "project"
	fieldHabit        = "habit"
	fieldRecurrence   = "recurrence"
)

// completionState is the history payload for the complete toggle. The flag
// and the completion date change together, so undo must restore both; logging
// only the boolean would lose the original date.
type completionState struct {
	Complete       bool       `json:"complete"`
	CompletionDate *time.Time `json:"completionDate,omitempty"`
}

func jsonValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func record(t *model.Task, now time.Time, field, oldVal, newVal string) {
	if oldVal == newVal {
		return
	}
	t.History = append(t.History, model.HistoryEntry{
		Timestamp: now,
		Field:     field,
		OldValue:  oldVal,
		NewValue:  newVal,
	})
}

// applyPatch validates and applies p to t, appending one history entry per
// changed field. Dependency existence is checked by the repo, which knows
// the whole collection; only the self-loop is rejected here.
func applyPatch(t *model.Task, p Patch, now time.Time) error {
	if p.Priority != nil && !p.Priority.Valid() {
		return fmt.Errorf("%w: priority %d", ErrInvalidOrdinal, *p.Priority)
	}
	if p.Difficulty != nil && !p.Difficulty.Valid() {
		return fmt.Errorf("%w: difficulty %d", ErrInvalidOrdinal, *p.Difficulty)
	}
	if p.Duration != nil && !p.Duration.Valid() {
		return fmt.Errorf("%w: duration %d", ErrInvalidOrdinal, *p.Duration)
	}
	if p.Recurrence != nil {
		if err := p.Recurrence.Validate(); err != nil {
			return err
		}
	}
	if p.Dependencies != nil {
		for _, dep := range *p.Dependencies {
			if dep == t.ID {
				return ErrSelfDependency
			}
		}
	}

	if p.Title != nil && *p.Title != t.Title {
		record(t, now, fieldTitle, jsonValue(t.Title), jsonValue(*p.Title))
		t.Title = *p.Title
	}
	if p.Description != nil && *p.Description != t.Description {
		record(t, now, fieldDescription, jsonValue(t.Description), jsonValue(*p.Description))
		t.Description = *p.Description
	}
	if p.Priority != nil && *p.Priority != t.Priority {
		record(t, now, fieldPriority, jsonValue(t.Priority), jsonValue(*p.Priority))
		t.Priority = *p.Priority
	}
	if p.Difficulty != nil && *p.Difficulty != t.Difficulty {
		record(t, now, fieldDifficulty, jsonValue(t.Difficulty), jsonValue(*p.Difficulty))
		t.Difficulty = *p.Difficulty
	}
	if p.Duration != nil && *p.Duration != t.Duration {
		record(t, now, fieldDuration, jsonValue(t.Duration), jsonValue(*p.Duration))
		t.Duration = *p.Duration
	}

	if p.Complete != nil && *p.Complete != t.Complete {
		was := completionState{Complete: t.Complete, CompletionDate: t.CompletionDate}
		t.Complete = *p.Complete
		if t.Complete {
			ts := now
			t.CompletionDate = &ts
		} else {
			t.CompletionDate = nil
		}
		is := completionState{Complete: t.Complete, CompletionDate: t.CompletionDate}
		record(t, now, fieldComplete, jsonValue(was), jsonValue(is))
	}

	if p.ClearDueDate {
		record(t, now, fieldDueDate, jsonValue(t.DueDate), "null")
		t.DueDate = nil
	} else if p.DueDate != nil {
		record(t, now, fieldDueDate, jsonValue(t.DueDate), jsonValue(p.DueDate))
		v := *p.DueDate
		t.DueDate = &v
	}

	if p.ClearStartDate {
		record(t, now, fieldStartDate, jsonValue(t.StartDate), "null")
		t.StartDate = nil
	} else if p.StartDate != nil {
		record(t, now, fieldStartDate, jsonValue(t.StartDate), jsonValue(p.StartDate))
		v := *p.StartDate
		t.StartDate = &v
	}

	if p.Dependencies != nil {
		record(t, now, fieldDependencies, jsonValue(t.Dependencies), jsonValue(*p.Dependencies))
		t.Dependencies = append([]model.TaskID(nil), (*p.Dependencies)...)
	}
	if p.Subtasks != nil {
		record(t, now, fieldSubtasks, jsonValue(t.Subtasks), jsonValue(*p.Subtasks))
		t.Subtasks = append([]model.Subtask(nil), (*p.Subtasks)...)
	}
	if p.Tags != nil {
		record(t, now, fieldTags, jsonValue(t.Tags), jsonValue(*p.Tags))
		t.Tags = append([]string(nil), (*p.Tags)...)
	}

	// pointer string field with "empty clears" semantics
	if p.Project != nil {
		if *p.Project == "" {
			record(t, now, fieldProject, jsonValue(t.Project), "null")
			t.Project = nil
		} else {
			record(t, now, fieldProject, jsonValue(t.Project), jsonValue(p.Project))
			v := *p.Project
			t.Project = &v
		}
	}

	if p.Habit != nil && *p.Habit != t.Habit {
		record(t, now, fieldHabit, jsonValue(t.Habit), jsonValue(*p.Habit))
		t.Habit = *p.Habit
	}

	if p.ClearRecurrence {
		record(t, now, fieldRecurrence, jsonValue(t.Recurrence), "null")
		t.Recurrence = nil
	} else if p.Recurrence != nil {
		record(t, now, fieldRecurrence, jsonValue(t.Recurrence), jsonValue(p.Recurrence))
		v := *p.Recurrence
		t.Recurrence = &v
	}

	if p.Score != nil {
		t.Score = *p.Score
	}

	t.UpdatedAt = now
	return nil
}

// checkOrdinals guards new records: a patch can never move an ordinal out of
// range, so rejecting bad levels at create time keeps the two paths symmetric.
func checkOrdinals(t model.Task) error {
	if !t.Priority.Valid() {
		return fmt.Errorf("%w: priority %d", ErrInvalidOrdinal, t.Priority)
	}
	if !t.Difficulty.Valid() {
		return fmt.Errorf("%w: difficulty %d", ErrInvalidOrdinal, t.Difficulty)
	}
	if !t.Duration.Valid() {
		return fmt.Errorf("%w: duration %d", ErrInvalidOrdinal, t.Duration)
	}
	return nil
}

// undoLast reverts the most recent history entry in place.
func undoLast(t *model.Task, now time.Time) error {
	if len(t.History) == 0 {
		return ErrNoHistory
	}
	last := t.History[len(t.History)-1]
	if err := restoreField(t, last.Field, last.OldValue); err != nil {
		return err
	}
	t.History = t.History[:len(t.History)-1]
	t.UpdatedAt = now
	return nil
}

func restoreField(t *model.Task, field, raw string) error {
	switch field {
	case fieldTitle:
		return json.Unmarshal([]byte(raw), &t.Title)
	case fieldDescription:
		return json.Unmarshal([]byte(raw), &t.Description)
	case fieldPriority:
		return json.Unmarshal([]byte(raw), &t.Priority)
	case fieldDifficulty:
		return json.Unmarshal([]byte(raw), &t.Difficulty)
	case fieldDuration:
		return json.Unmarshal([]byte(raw), &t.Duration)
	case fieldComplete:
		var st completionState
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			return err
		}
		t.Complete = st.Complete
		t.CompletionDate = st.CompletionDate
		return nil
	case fieldDueDate:
		t.DueDate = nil
		return json.Unmarshal([]byte(raw), &t.DueDate)
	case fieldStartDate:
		t.StartDate = nil
		return json.Unmarshal([]byte(raw), &t.StartDate)
	case fieldDependencies:
		t.Dependencies = nil
		return json.Unmarshal([]byte(raw), &t.Dependencies)
	case fieldSubtasks:
		t.Subtasks = nil
		return json.Unmarshal([]byte(raw), &t.Subtasks)
	case fieldTags:
		t.Tags = nil
		return json.Unmarshal([]byte(raw), &t.Tags)
	case fieldProject:
		t.Project = nil
		return json.Unmarshal([]byte(raw), &t.Project)
	case fieldHabit:
		return json.Unmarshal([]byte(raw), &t.Habit)
	case fieldRecurrence:
		t.Recurrence = nil
		return json.Unmarshal([]byte(raw), &t.Recurrence)
	default:
		return fmt.Errorf("cannot undo unknown field %q", field)
	}
}
