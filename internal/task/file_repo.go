package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"motido/internal/model"
)

type persistedState struct {
	Tasks    map[model.TaskID]model.Task `json:"tasks"`
	Tags     map[string]model.TagDef     `json:"tags"`
	Projects map[string]model.ProjectDef `json:"projects"`
}

func newPersistedState() persistedState {
	return persistedState{
		Tasks:    map[model.TaskID]model.Task{},
		Tags:     map[string]model.TagDef{},
		Projects: map[string]model.ProjectDef{},
	}
}

// FileRepo is the JSON-file-backed store: a MemoryRepo that writes the full
// state to disk after every mutation. Writes go through a temp file and
// rename so a crash never leaves a torn file behind.
type FileRepo struct {
	mu   sync.Mutex
	mem  *MemoryRepo
	path string
}

func NewFileRepo(dataDir string) (*FileRepo, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	r := &FileRepo{
		mem:  NewMemoryRepo(),
		path: filepath.Join(dataDir, "tasks.json"),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRepo) load() error {
	raw, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", r.path, err)
	}
	state := newPersistedState()
	if err := json.Unmarshal(raw, &state); err != nil {
		return fmt.Errorf("parse %s: %w", r.path, err)
	}
	r.mem.importState(state)
	return nil
}

func (r *FileRepo) save() error {
	raw, err := json.MarshalIndent(r.mem.exportState(), "", "  ")
	if err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

func (r *FileRepo) Create(t model.Task) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	created, err := r.mem.Create(t)
	if err != nil {
		return model.Task{}, err
	}
	return created, r.save()
}

func (r *FileRepo) Get(id model.TaskID) (model.Task, error) {
	return r.mem.Get(id)
}

func (r *FileRepo) Update(id model.TaskID, p Patch) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	updated, err := r.mem.Update(id, p)
	if err != nil {
		return model.Task{}, err
	}
	return updated, r.save()
}

func (r *FileRepo) Delete(id model.TaskID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.mem.Delete(id); err != nil {
		return err
	}
	return r.save()
}

func (r *FileRepo) Snapshot() ([]model.Task, error) {
	return r.mem.Snapshot()
}

func (r *FileRepo) Apply(closed model.Task, next *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.mem.Apply(closed, next); err != nil {
		return err
	}
	return r.save()
}

func (r *FileRepo) Undo(id model.TaskID) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reverted, err := r.mem.Undo(id)
	if err != nil {
		return model.Task{}, err
	}
	return reverted, r.save()
}

func (r *FileRepo) SetTag(def model.TagDef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.mem.SetTag(def); err != nil {
		return err
	}
	return r.save()
}

func (r *FileRepo) SetProject(def model.ProjectDef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.mem.SetProject(def); err != nil {
		return err
	}
	return r.save()
}

func (r *FileRepo) Tags() ([]model.TagDef, error)         { return r.mem.Tags() }
func (r *FileRepo) Projects() ([]model.ProjectDef, error) { return r.mem.Projects() }

func (r *FileRepo) TagMultiplier(name string) (float64, bool) {
	return r.mem.TagMultiplier(name)
}

func (r *FileRepo) ProjectMultiplier(name string) (float64, bool) {
	return r.mem.ProjectMultiplier(name)
}
