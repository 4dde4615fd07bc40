package view

import (
	"testing"
	"time"

	"motido/internal/model"
)

func named(id, title string) model.Task {
	return model.Task{ID: model.TaskID(id), Title: title}
}

func taskIDs(tasks []model.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = string(t.ID)
	}
	return out
}

func sameIDs(got []model.Task, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i, id := range want {
		if string(got[i].ID) != id {
			return false
		}
	}
	return true
}

func TestFilterStatus(t *testing.T) {
	tasks := []model.Task{named("a", "a"), named("b", "b"), named("c", "c")}
	statuses := map[model.TaskID]Status{"a": StatusActive, "b": StatusBlocked, "c": StatusActive}

	got := Apply(tasks, statuses, FilterSpec{Status: StatusActive}, SortSpec{})
	if !sameIDs(got, "a", "c") {
		t.Fatalf("got %v, want [a c]", taskIDs(got))
	}

	// "all" and empty both bypass the status filter.
	for _, status := range []Status{StatusAll, ""} {
		got = Apply(tasks, statuses, FilterSpec{Status: status}, SortSpec{})
		if len(got) != 3 {
			t.Fatalf("status %q: got %v, want all three", status, taskIDs(got))
		}
	}
}

func TestFilterUnclassifiedTasksOnlyPassUnderAll(t *testing.T) {
	tasks := []model.Task{named("ok", "ok"), named("broken", "broken")}
	statuses := map[model.TaskID]Status{"ok": StatusActive}

	got := Apply(tasks, statuses, FilterSpec{Status: StatusActive}, SortSpec{})
	if !sameIDs(got, "ok") {
		t.Fatalf("got %v, want [ok]", taskIDs(got))
	}
	got = Apply(tasks, statuses, FilterSpec{Status: StatusAll}, SortSpec{})
	if len(got) != 2 {
		t.Fatalf("got %v, want both", taskIDs(got))
	}
}

func TestFilterTagsOrWithinCategory(t *testing.T) {
	a := named("a", "a")
	a.Tags = []string{"home"}
	b := named("b", "b")
	b.Tags = []string{"work"}
	c := named("c", "c")
	c.Tags = []string{"errand"}

	got := Apply([]model.Task{a, b, c}, nil, FilterSpec{Tags: []string{"home", "work"}}, SortSpec{})
	if !sameIDs(got, "a", "b") {
		t.Fatalf("got %v, want [a b]", taskIDs(got))
	}
}

func TestFilterAndAcrossCategories(t *testing.T) {
	a := named("a", "a")
	a.Tags = []string{"work"}
	a.Priority = model.PriorityHigh
	b := named("b", "b")
	b.Tags = []string{"work"}
	b.Priority = model.PriorityLow
	c := named("c", "c")
	c.Tags = []string{"home"}
	c.Priority = model.PriorityHigh

	f := FilterSpec{Tags: []string{"work"}, Priorities: []model.Priority{model.PriorityHigh}}
	got := Apply([]model.Task{a, b, c}, nil, f, SortSpec{})
	if !sameIDs(got, "a") {
		t.Fatalf("got %v, want [a]", taskIDs(got))
	}
}

func TestFilterProject(t *testing.T) {
	home := "home"
	a := named("a", "a")
	a.Project = &home
	b := named("b", "b") // no project

	got := Apply([]model.Task{a, b}, nil, FilterSpec{Projects: []string{"home"}}, SortSpec{})
	if !sameIDs(got, "a") {
		t.Fatalf("got %v, want [a]", taskIDs(got))
	}
}

func TestFilterSearchCaseInsensitive(t *testing.T) {
	a := named("a", "Water the Plants")
	b := named("b", "Laundry")
	b.Description = "wash the plants apron"
	c := named("c", "Dishes")

	got := Apply([]model.Task{a, b, c}, nil, FilterSpec{Search: "PLANTS"}, SortSpec{})
	if !sameIDs(got, "a", "b") {
		t.Fatalf("got %v, want [a b]", taskIDs(got))
	}
}

func TestFilterMaxDueDateBoundary(t *testing.T) {
	onBound := named("on", "on")
	onBound.DueDate = dayPtr(2024, time.January, 31)
	after := named("after", "after")
	after.DueDate = dayPtr(2024, time.February, 1)
	undated := named("undated", "undated")

	bound := day(2024, time.January, 31)
	got := Apply([]model.Task{onBound, after, undated}, nil, FilterSpec{MaxDueDate: &bound}, SortSpec{})
	if !sameIDs(got, "on") {
		t.Fatalf("got %v, want [on]", taskIDs(got))
	}
}

func TestSortDueDateNilLast(t *testing.T) {
	a := named("a", "a")
	a.DueDate = dayPtr(2024, time.January, 1)
	b := named("b", "b")
	b.DueDate = dayPtr(2024, time.January, 3)
	c := named("c", "c") // undated

	got := Apply([]model.Task{c, b, a}, nil, FilterSpec{}, SortSpec{Field: SortByDueDate})
	if !sameIDs(got, "a", "b", "c") {
		t.Fatalf("asc: got %v, want [a b c]", taskIDs(got))
	}

	got = Apply([]model.Task{c, b, a}, nil, FilterSpec{}, SortSpec{Field: SortByDueDate, Descending: true})
	if !sameIDs(got, "b", "a", "c") {
		t.Fatalf("desc: got %v, want [b a c]", taskIDs(got))
	}
}

func TestSortIsStable(t *testing.T) {
	a := named("a", "a")
	a.Priority = model.PriorityMedium
	b := named("b", "b")
	b.Priority = model.PriorityMedium
	c := named("c", "c")
	c.Priority = model.PriorityHigh

	got := Apply([]model.Task{a, b, c}, nil, FilterSpec{}, SortSpec{Field: SortByPriority})
	if !sameIDs(got, "a", "b", "c") {
		t.Fatalf("got %v, want ties in input order", taskIDs(got))
	}

	got = Apply([]model.Task{b, a, c}, nil, FilterSpec{}, SortSpec{Field: SortByPriority})
	if !sameIDs(got, "b", "a", "c") {
		t.Fatalf("got %v, want ties in input order", taskIDs(got))
	}
}

func TestSortFields(t *testing.T) {
	a := named("a", "Beta")
	a.Score = 10
	a.CreatedAt = day(2024, time.January, 2)
	b := named("b", "alpha")
	b.Score = 20
	b.CreatedAt = day(2024, time.January, 1)

	got := Apply([]model.Task{a, b}, nil, FilterSpec{}, SortSpec{Field: SortByTitle})
	if !sameIDs(got, "b", "a") {
		t.Fatalf("title: got %v, want [b a]", taskIDs(got))
	}
	got = Apply([]model.Task{a, b}, nil, FilterSpec{}, SortSpec{Field: SortByScore, Descending: true})
	if !sameIDs(got, "b", "a") {
		t.Fatalf("score desc: got %v, want [b a]", taskIDs(got))
	}
	got = Apply([]model.Task{a, b}, nil, FilterSpec{}, SortSpec{Field: SortByCreatedAt})
	if !sameIDs(got, "b", "a") {
		t.Fatalf("created: got %v, want [b a]", taskIDs(got))
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	a := named("a", "a")
	a.DueDate = dayPtr(2024, time.January, 3)
	b := named("b", "b")
	b.DueDate = dayPtr(2024, time.January, 1)
	in := []model.Task{a, b}

	Apply(in, nil, FilterSpec{}, SortSpec{Field: SortByDueDate})
	if in[0].ID != "a" || in[1].ID != "b" {
		t.Fatalf("input reordered: %v", taskIDs(in))
	}
}
