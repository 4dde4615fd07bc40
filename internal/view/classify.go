// Package view turns a task snapshot into view-ready lists: per-task status
// classification followed by attribute filtering and sorting.
package view

import (
	"time"

	"motido/internal/graph"
	"motido/internal/model"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusBlocked   Status = "blocked"
	StatusFuture    Status = "future"
	StatusCompleted Status = "completed"
	// StatusAll is a filter value only; Classify never returns it.
	StatusAll Status = "all"
)

// Classify derives one task's status. Precedence, first match wins:
// completed, future, blocked, active. A task can be both future and blocked
// in the raw data; future wins. The processing date comes from the caller
// (last processed date + 1 day in the owning application).
func Classify(t model.Task, blocked map[model.TaskID]bool, processingDate time.Time) Status {
	switch {
	case t.Complete:
		return StatusCompleted
	case t.StartDate != nil && t.StartDate.After(processingDate):
		return StatusFuture
	case blocked[t.ID]:
		return StatusBlocked
	default:
		return StatusActive
	}
}

// ClassifyAll classifies a whole snapshot against its dependency graph.
// Tasks the graph flagged as broken (dangling reference, cycle) are left out
// of the result and reported; the rest of the batch classifies normally.
func ClassifyAll(g *graph.Graph, tasks []model.Task, processingDate time.Time) (map[model.TaskID]Status, []graph.TaskError) {
	blocked := g.BlockedSet()
	statuses := make(map[model.TaskID]Status, len(tasks))
	var errs []graph.TaskError
	for _, t := range tasks {
		if err := g.TaintedErr(t.ID); err != nil {
			errs = append(errs, graph.TaskError{ID: t.ID, Err: err})
			continue
		}
		statuses[t.ID] = Classify(t, blocked, processingDate)
	}
	return statuses, errs
}
