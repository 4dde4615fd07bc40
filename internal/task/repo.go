package task

import (
	"errors"

	"motido/internal/model"
)

var (
	ErrNotFound          = errors.New("task not found")
	ErrSelfDependency    = errors.New("task cannot depend on itself")
	ErrUnknownDependency = errors.New("dependency references unknown task")
	ErrNoHistory         = errors.New("no history to undo")
	ErrInvalidOrdinal    = errors.New("ordinal level out of range")
	ErrAlreadyComplete   = errors.New("task is already complete")
	ErrNotComplete       = errors.New("task is not complete")
)

// Repo is the task repository boundary. Reads hand out deep copies; the
// core computes over immutable snapshots and never sees shared state.
type Repo interface {
	Create(t model.Task) (model.Task, error)
	Get(id model.TaskID) (model.Task, error)
	Update(id model.TaskID, p Patch) (model.Task, error)
	Delete(id model.TaskID) error
	// Snapshot returns the full current collection.
	Snapshot() ([]model.Task, error)
	// Apply persists a completion outcome: the closed record plus, for
	// recurring tasks, the generated next instance. Both land as one unit.
	Apply(closed model.Task, next *model.Task) error
	// Undo reverts the most recent history entry on the task.
	Undo(id model.TaskID) (model.Task, error)
}

// Registry stores tag/project scoring multipliers. The multiplier lookups
// double as the score package's Lookup interface.
type Registry interface {
	SetTag(def model.TagDef) error
	SetProject(def model.ProjectDef) error
	Tags() ([]model.TagDef, error)
	Projects() ([]model.ProjectDef, error)
	TagMultiplier(name string) (float64, bool)
	ProjectMultiplier(name string) (float64, bool)
}

// Store combines task storage with the registries; every backend (memory,
// file, sqlite) provides both.
type Store interface {
	Repo
	Registry
}
