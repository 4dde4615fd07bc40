package task

import (
	"fmt"
	"sync"
	"time"

	"motido/internal/graph"
	"motido/internal/model"
	"motido/internal/observability"
	"motido/internal/recur"
	"motido/internal/score"
	"motido/internal/telemetry"
	"motido/internal/view"
)

// Service wires the pure core (graph, classifier, recurrence, scoring) to a
// store. The core computes proposals; the service persists them. On a
// persistence failure nothing was mutated in memory, so the prior snapshot
// simply stands.
type Service struct {
	store  Store
	scorer *score.Calculator
	log    *observability.Logger
	events telemetry.Repository
	now    func() time.Time

	mu            sync.Mutex
	lastProcessed *time.Time
}

func NewService(store Store, scorer *score.Calculator, log *observability.Logger, events telemetry.Repository) *Service {
	if scorer == nil {
		scorer = score.NewCalculator(score.DefaultWeights())
	}
	return &Service{
		store:  store,
		scorer: scorer,
		log:    log,
		events: events,
		now:    time.Now,
	}
}

func (s *Service) record(t telemetry.EventType, meta telemetry.EventMetadata) {
	if s.events == nil {
		return
	}
	if err := s.events.RecordEvent(t, meta); err != nil && s.log != nil {
		s.log.Warn("telemetry record failed", "event", string(t), "error", err.Error())
	}
}

// SetLastProcessed pins the reference date used to classify "future" tasks.
// The processing date is last-processed + 1 day; unset, it defaults to the
// start of the current day.
func (s *Service) SetLastProcessed(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	s.lastProcessed = &day
}

func (s *Service) ProcessingDate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastProcessed != nil {
		return s.lastProcessed.AddDate(0, 0, 1)
	}
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func (s *Service) CreateTask(t model.Task) (model.Task, error) {
	t.Score = s.scorer.Score(t, s.store)
	created, err := s.store.Create(t)
	if err != nil {
		return model.Task{}, err
	}
	s.record(telemetry.EventTaskCreated, telemetry.EventMetadata{"taskId": string(created.ID)})
	return created, nil
}

func (s *Service) GetTask(id model.TaskID) (model.Task, error) {
	return s.store.Get(id)
}

func (s *Service) UpdateTask(id model.TaskID, p Patch) (model.Task, error) {
	updated, err := s.store.Update(id, p)
	if err != nil {
		return model.Task{}, err
	}
	if rescored := s.scorer.Score(updated, s.store); rescored != updated.Score {
		updated, err = s.store.Update(id, Patch{Score: &rescored})
		if err != nil {
			return model.Task{}, err
		}
	}
	s.record(telemetry.EventTaskUpdated, telemetry.EventMetadata{"taskId": string(id)})
	return updated, nil
}

func (s *Service) DeleteTask(id model.TaskID) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.record(telemetry.EventTaskDeleted, telemetry.EventMetadata{"taskId": string(id)})
	return nil
}

// CompletionResult reports a persisted completion. NextErr is set when the
// recurrence engine could not generate the next instance; the completion
// itself still went through.
type CompletionResult struct {
	Closed model.Task         `json:"closed"`
	Next   *model.Task        `json:"next,omitempty"`
	Streak recur.StreakResult `json:"-"`
	XP     float64            `json:"xp"`
	// NextErr is a message rather than an error so the result serializes.
	NextErr string `json:"nextError,omitempty"`
}

// Complete runs the completion flow: score the task, compute the proposal
// (closed record, streak, optional next instance), persist both records as
// one unit, then emit telemetry.
func (s *Service) Complete(id model.TaskID) (CompletionResult, error) {
	cur, err := s.store.Get(id)
	if err != nil {
		return CompletionResult{}, err
	}
	if cur.Complete {
		return CompletionResult{}, ErrAlreadyComplete
	}

	now := s.now()
	xp := s.scorer.Score(cur, s.store)

	prop, recErr := recur.Complete(cur, now)
	prop.Closed.Score = xp
	if prop.Next != nil {
		prop.Next.Score = s.scorer.Score(*prop.Next, s.store)
	}

	if err := s.store.Apply(prop.Closed, prop.Next); err != nil {
		return CompletionResult{}, fmt.Errorf("persist completion: %w", err)
	}

	s.record(telemetry.EventTaskCompleted, telemetry.EventMetadata{
		"taskId": string(id),
		"xp":     xp,
	})
	if cur.Habit {
		switch {
		case prop.Streak.Reset:
			s.record(telemetry.EventStreakReset, telemetry.EventMetadata{
				"taskId": string(id), "current": prop.Streak.Current,
			})
		case prop.Streak.Advanced:
			s.record(telemetry.EventStreakAdvanced, telemetry.EventMetadata{
				"taskId": string(id), "current": prop.Streak.Current, "best": prop.Streak.Best,
			})
		}
		if prop.Streak.Healed {
			s.record(telemetry.EventStreakHealed, telemetry.EventMetadata{"taskId": string(id)})
			if s.log != nil {
				s.log.Warn("streak state healed", "task_id", string(id))
			}
		}
	}

	res := CompletionResult{Closed: prop.Closed, Next: prop.Next, Streak: prop.Streak, XP: xp}
	if recErr != nil {
		res.NextErr = recErr.Error()
		s.record(telemetry.EventRecurrenceFailed, telemetry.EventMetadata{
			"taskId": string(id), "error": recErr.Error(),
		})
		if s.log != nil {
			s.log.Error("next instance generation failed", "task_id", string(id), "error", recErr.Error())
		}
		return res, nil
	}
	if prop.Next != nil {
		s.record(telemetry.EventNextInstance, telemetry.EventMetadata{
			"taskId": string(id), "nextId": string(prop.Next.ID),
		})
	}
	return res, nil
}

// Uncomplete reverses a completion: the complete flag and completion date
// only. Generated next instances are separate records and stay put.
func (s *Service) Uncomplete(id model.TaskID) (model.Task, error) {
	cur, err := s.store.Get(id)
	if err != nil {
		return model.Task{}, err
	}
	if !cur.Complete {
		return model.Task{}, ErrNotComplete
	}
	undone := false
	updated, err := s.store.Update(id, Patch{Complete: &undone})
	if err != nil {
		return model.Task{}, err
	}
	s.record(telemetry.EventTaskUncompleted, telemetry.EventMetadata{"taskId": string(id)})
	return updated, nil
}

func (s *Service) Undo(id model.TaskID) (model.Task, error) {
	reverted, err := s.store.Undo(id)
	if err != nil {
		return model.Task{}, err
	}
	s.record(telemetry.EventUndoApplied, telemetry.EventMetadata{"taskId": string(id)})
	return reverted, nil
}

// ListResult is a view-ready list plus per-task integrity errors for the
// tasks that could not classify (dangling reference, cycle).
type ListResult struct {
	Tasks    []model.Task                 `json:"tasks"`
	Statuses map[model.TaskID]view.Status `json:"statuses"`
	Errors   []graph.TaskError            `json:"-"`
	Problems map[model.TaskID]string      `json:"problems,omitempty"`
}

// ListView runs the full pipeline: snapshot, graph, classify, filter, sort.
func (s *Service) ListView(f view.FilterSpec, sortSpec view.SortSpec) (ListResult, error) {
	snap, err := s.store.Snapshot()
	if err != nil {
		return ListResult{}, err
	}

	g := graph.Build(snap)
	statuses, errs := view.ClassifyAll(g, snap, s.ProcessingDate())
	tasks := view.Apply(snap, statuses, f, sortSpec)

	res := ListResult{Tasks: tasks, Statuses: statuses, Errors: errs}
	if len(errs) > 0 {
		res.Problems = make(map[model.TaskID]string, len(errs))
		for _, te := range errs {
			res.Problems[te.ID] = te.Err.Error()
		}
		s.record(telemetry.EventIntegrityReported, telemetry.EventMetadata{"count": len(errs)})
		if s.log != nil {
			s.log.Warn("snapshot integrity errors", "count", len(errs))
		}
	}
	return res, nil
}

// SubgraphView returns the direction-filtered subgraph rooted at a task.
func (s *Service) SubgraphView(root model.TaskID, mode graph.Mode) ([]model.Task, error) {
	snap, err := s.store.Snapshot()
	if err != nil {
		return nil, err
	}
	return graph.Build(snap).SubgraphTasks(root, mode)
}

func (s *Service) SetTag(def model.TagDef) error {
	if err := s.store.SetTag(def); err != nil {
		return err
	}
	s.record(telemetry.EventRegistryUpdated, telemetry.EventMetadata{"kind": "tag", "name": def.Name})
	return nil
}

func (s *Service) SetProject(def model.ProjectDef) error {
	if err := s.store.SetProject(def); err != nil {
		return err
	}
	s.record(telemetry.EventRegistryUpdated, telemetry.EventMetadata{"kind": "project", "name": def.Name})
	return nil
}

func (s *Service) Tags() ([]model.TagDef, error)         { return s.store.Tags() }
func (s *Service) Projects() ([]model.ProjectDef, error) { return s.store.Projects() }

// Events exposes the recorded telemetry, filtered by time and type.
func (s *Service) Events(since time.Time, types []telemetry.EventType) ([]telemetry.Event, error) {
	if s.events == nil {
		return []telemetry.Event{}, nil
	}
	return s.events.GetEvents(since, types)
}

func (s *Service) ClearEvents() error {
	if s.events == nil {
		return nil
	}
	return s.events.Clear()
}
