package task

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"motido/internal/model"
)

// MemoryRepo keeps everything behind one RWMutex; reads return deep copies
// so callers always work on a consistent, tear-free snapshot.
type MemoryRepo struct {
	mu       sync.RWMutex
	tasks    map[model.TaskID]model.Task
	tags     map[string]model.TagDef
	projects map[string]model.ProjectDef
	now      func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		tasks:    map[model.TaskID]model.Task{},
		tags:     map[string]model.TagDef{},
		projects: map[string]model.ProjectDef{},
		now:      time.Now,
	}
}

func normalizeTask(t *model.Task) {
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.Subtasks == nil {
		t.Subtasks = []model.Subtask{}
	}
	if t.Dependencies == nil {
		t.Dependencies = []model.TaskID{}
	}
}

// checkDependencies enforces the reference invariants at write time: no
// self-loop and every referenced id present. Cycle detection stays with the
// graph resolver, which sees the whole snapshot.
func (r *MemoryRepo) checkDependencies(id model.TaskID, deps []model.TaskID) error {
	for _, dep := range deps {
		if dep == id {
			return ErrSelfDependency
		}
		if _, ok := r.tasks[dep]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownDependency, dep)
		}
	}
	return nil
}

func (r *MemoryRepo) Create(t model.Task) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.ID == "" {
		t.ID = model.TaskID(uuid.NewString())
	}
	if _, exists := r.tasks[t.ID]; exists {
		return model.Task{}, fmt.Errorf("task %s already exists", t.ID)
	}
	if err := checkOrdinals(t); err != nil {
		return model.Task{}, err
	}
	if err := r.checkDependencies(t.ID, t.Dependencies); err != nil {
		return model.Task{}, err
	}
	if t.Recurrence != nil {
		if err := t.Recurrence.Validate(); err != nil {
			return model.Task{}, err
		}
	}

	now := r.now()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.History = nil
	normalizeTask(&t)

	r.tasks[t.ID] = t.Clone()
	return t, nil
}

func (r *MemoryRepo) Get(id model.TaskID) (model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return model.Task{}, ErrNotFound
	}
	return t.Clone(), nil
}

func (r *MemoryRepo) Update(id model.TaskID, p Patch) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return model.Task{}, ErrNotFound
	}
	if p.Dependencies != nil {
		if err := r.checkDependencies(id, *p.Dependencies); err != nil {
			return model.Task{}, err
		}
	}

	t = t.Clone()
	if err := applyPatch(&t, p, r.now()); err != nil {
		return model.Task{}, err
	}
	normalizeTask(&t)

	r.tasks[id] = t
	return t.Clone(), nil
}

func (r *MemoryRepo) Delete(id model.TaskID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(r.tasks, id)

	// Drop edges pointing at the removed task so the snapshot never holds
	// dangling references of our own making.
	for tid, t := range r.tasks {
		if !t.DependsOn(id) {
			continue
		}
		kept := make([]model.TaskID, 0, len(t.Dependencies))
		for _, dep := range t.Dependencies {
			if dep != id {
				kept = append(kept, dep)
			}
		}
		t.Dependencies = kept
		r.tasks[tid] = t
	}
	return nil
}

func (r *MemoryRepo) Snapshot() ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepo) Apply(closed model.Task, next *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[closed.ID]; !ok {
		return ErrNotFound
	}
	if next != nil {
		if next.ID == "" {
			next.ID = model.TaskID(uuid.NewString())
		}
		if _, exists := r.tasks[next.ID]; exists {
			return fmt.Errorf("task %s already exists", next.ID)
		}
		if err := r.checkDependencies(next.ID, next.Dependencies); err != nil {
			return err
		}
	}

	c := closed.Clone()
	normalizeTask(&c)
	r.tasks[closed.ID] = c
	if next != nil {
		n := next.Clone()
		normalizeTask(&n)
		r.tasks[next.ID] = n
	}
	return nil
}

func (r *MemoryRepo) Undo(id model.TaskID) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return model.Task{}, ErrNotFound
	}
	t = t.Clone()
	if err := undoLast(&t, r.now()); err != nil {
		return model.Task{}, err
	}
	normalizeTask(&t)
	r.tasks[id] = t
	return t.Clone(), nil
}

func (r *MemoryRepo) SetTag(def model.TagDef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if def.Name == "" {
		return fmt.Errorf("tag name required")
	}
	r.tags[def.Name] = def
	return nil
}

func (r *MemoryRepo) SetProject(def model.ProjectDef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if def.Name == "" {
		return fmt.Errorf("project name required")
	}
	r.projects[def.Name] = def
	return nil
}

func (r *MemoryRepo) Tags() ([]model.TagDef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.TagDef, 0, len(r.tags))
	for _, def := range r.tags {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepo) Projects() ([]model.ProjectDef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ProjectDef, 0, len(r.projects))
	for _, def := range r.projects {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepo) TagMultiplier(name string) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tags[name]
	if !ok || def.Multiplier == 0 {
		return 1.0, false
	}
	return def.Multiplier, true
}

func (r *MemoryRepo) ProjectMultiplier(name string) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.projects[name]
	if !ok || def.Multiplier == 0 {
		return 1.0, false
	}
	return def.Multiplier, true
}

// exportState and importState shuttle the full store contents for the file
// backend's load/save.
func (r *MemoryRepo) exportState() persistedState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := newPersistedState()
	for id, t := range r.tasks {
		s.Tasks[id] = t.Clone()
	}
	for name, def := range r.tags {
		s.Tags[name] = def
	}
	for name, def := range r.projects {
		s.Projects[name] = def
	}
	return s
}

func (r *MemoryRepo) importState(s persistedState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks = map[model.TaskID]model.Task{}
	for id, t := range s.Tasks {
		if t.ID == "" {
			t.ID = id
		}
		r.tasks[id] = t
	}
	r.tags = map[string]model.TagDef{}
	for name, def := range s.Tags {
		r.tags[name] = def
	}
	r.projects = map[string]model.ProjectDef{}
	for name, def := range s.Projects {
		r.projects[name] = def
	}
}
