package view

import (
	"sort"
	"strings"
	"time"

	"motido/internal/model"
)

// FilterSpec composes by AND across categories; within a multi-select
// category membership is OR (any selected tag matches). Empty slices and
// zero values mean "no constraint".
type FilterSpec struct {
	Status       Status
	Priorities   []model.Priority
	Difficulties []model.Difficulty
	Durations    []model.Duration
	Projects     []string
	Tags         []string
	// Search is a case-insensitive substring match over title+description.
	Search string
	// MaxDueDate excludes undated tasks and tasks due strictly after the
	// bound; a task due exactly on the bound stays in.
	MaxDueDate *time.Time
}

type SortField string

const (
	SortByDueDate    SortField = "due_date"
	SortByPriority   SortField = "priority"
	SortByDifficulty SortField = "difficulty"
	SortByDuration   SortField = "duration"
	SortByTitle      SortField = "title"
	SortByScore      SortField = "score"
	SortByCreatedAt  SortField = "created_at"
)

type SortSpec struct {
	Field      SortField
	Descending bool
}

// Apply runs the filter/sort pipeline over classified tasks. Tasks without a
// classification entry (broken graph tasks) pass through only under the
// `all` status filter, mirroring its classification bypass.
func Apply(tasks []model.Task, statuses map[model.TaskID]Status, f FilterSpec, s SortSpec) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if matches(t, statuses, f) {
			out = append(out, t)
		}
	}
	sortTasks(out, s)
	return out
}

func matches(t model.Task, statuses map[model.TaskID]Status, f FilterSpec) bool {
	if f.Status != "" && f.Status != StatusAll {
		st, ok := statuses[t.ID]
		if !ok || st != f.Status {
			return false
		}
	}

	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, t.Priority) {
		return false
	}
	if len(f.Difficulties) > 0 && !containsDifficulty(f.Difficulties, t.Difficulty) {
		return false
	}
	if len(f.Durations) > 0 && !containsDuration(f.Durations, t.Duration) {
		return false
	}

	if len(f.Projects) > 0 {
		if t.Project == nil || !containsString(f.Projects, *t.Project) {
			return false
		}
	}

	if len(f.Tags) > 0 {
		any := false
		for _, want := range f.Tags {
			if t.HasTag(want) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}

	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(t.Title), q) &&
			!strings.Contains(strings.ToLower(t.Description), q) {
			return false
		}
	}

	if f.MaxDueDate != nil {
		if t.DueDate == nil || t.DueDate.After(*f.MaxDueDate) {
			return false
		}
	}

	return true
}

// sortTasks is stable; ties keep their prior relative order. Tasks without a
// due date sort after all dated tasks regardless of direction.
func sortTasks(tasks []model.Task, s SortSpec) {
	field := s.Field
	if field == "" {
		field = SortByDueDate
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]

		if field == SortByDueDate {
			switch {
			case a.DueDate == nil && b.DueDate == nil:
				return false
			case a.DueDate == nil:
				return false
			case b.DueDate == nil:
				return true
			}
		}

		less, equal := compare(a, b, field)
		if equal {
			return false
		}
		if s.Descending {
			return !less
		}
		return less
	})
}

func compare(a, b model.Task, field SortField) (less, equal bool) {
	switch field {
	case SortByPriority:
		return a.Priority < b.Priority, a.Priority == b.Priority
	case SortByDifficulty:
		return a.Difficulty < b.Difficulty, a.Difficulty == b.Difficulty
	case SortByDuration:
		return a.Duration < b.Duration, a.Duration == b.Duration
	case SortByTitle:
		ta, tb := strings.ToLower(a.Title), strings.ToLower(b.Title)
		return ta < tb, ta == tb
	case SortByScore:
		return a.Score < b.Score, a.Score == b.Score
	case SortByCreatedAt:
		return a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
	default: // SortByDueDate; both non-nil here
		return a.DueDate.Before(*b.DueDate), a.DueDate.Equal(*b.DueDate)
	}
}

func containsPriority(set []model.Priority, v model.Priority) bool {
	for _, have := range set {
		if have == v {
			return true
		}
	}
	return false
}

func containsDifficulty(set []model.Difficulty, v model.Difficulty) bool {
	for _, have := range set {
		if have == v {
			return true
		}
	}
	return false
}

func containsDuration(set []model.Duration, v model.Duration) bool {
	for _, have := range set {
		if have == v {
			return true
		}
	}
	return false
}

func containsString(set []string, v string) bool {
	for _, have := range set {
		if have == v {
			return true
		}
	}
	return false
}
