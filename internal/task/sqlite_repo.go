package task

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"motido/internal/model"
)

// SQLiteRepo persists tasks as JSON documents in a SQLite database. Rows are
// whole records; the dependency graph and all derived state stay in the core
// packages, so the schema needs no relational modelling of edges.
type SQLiteRepo struct {
	mu  sync.RWMutex
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepo opens (or creates) the database. Use ":memory:" in tests.
func NewSQLiteRepo(path string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// A single connection keeps ":memory:" databases coherent and sidesteps
	// SQLITE_BUSY on concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id         TEXT PRIMARY KEY,
		data       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS registry (
		kind       TEXT NOT NULL,
		name       TEXT NOT NULL,
		multiplier REAL NOT NULL,
		PRIMARY KEY (kind, name)
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteRepo{db: db, now: time.Now}, nil
}

func (r *SQLiteRepo) Close() error { return r.db.Close() }

func (r *SQLiteRepo) getLocked(id model.TaskID) (model.Task, error) {
	var data string
	err := r.db.QueryRow("SELECT data FROM tasks WHERE id = ?", string(id)).Scan(&data)
	if err == sql.ErrNoRows {
		return model.Task{}, ErrNotFound
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("get task %s: %w", id, err)
	}
	var t model.Task
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return model.Task{}, fmt.Errorf("decode task %s: %w", id, err)
	}
	return t, nil
}

func (r *SQLiteRepo) existsLocked(id model.TaskID) (bool, error) {
	var one int
	err := r.db.QueryRow("SELECT 1 FROM tasks WHERE id = ?", string(id)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *SQLiteRepo) checkDependenciesLocked(id model.TaskID, deps []model.TaskID) error {
	for _, dep := range deps {
		if dep == id {
			return ErrSelfDependency
		}
		ok, err := r.existsLocked(dep)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownDependency, dep)
		}
	}
	return nil
}

func (r *SQLiteRepo) putLocked(t model.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`
		INSERT INTO tasks (id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at`,
		string(t.ID), string(data),
		t.CreatedAt.UTC().Format(time.RFC3339Nano),
		t.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put task %s: %w", t.ID, err)
	}
	return nil
}

func (r *SQLiteRepo) Create(t model.Task) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.ID == "" {
		t.ID = model.TaskID(uuid.NewString())
	}
	exists, err := r.existsLocked(t.ID)
	if err != nil {
		return model.Task{}, err
	}
	if exists {
		return model.Task{}, fmt.Errorf("task %s already exists", t.ID)
	}
	if err := checkOrdinals(t); err != nil {
		return model.Task{}, err
	}
	if err := r.checkDependenciesLocked(t.ID, t.Dependencies); err != nil {
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

	if err := r.putLocked(t); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

func (r *SQLiteRepo) Get(id model.TaskID) (model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getLocked(id)
}

func (r *SQLiteRepo) Update(id model.TaskID, p Patch) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.getLocked(id)
	if err != nil {
		return model.Task{}, err
	}
	if p.Dependencies != nil {
		if err := r.checkDependenciesLocked(id, *p.Dependencies); err != nil {
			return model.Task{}, err
		}
	}
	if err := applyPatch(&t, p, r.now()); err != nil {
		return model.Task{}, err
	}
	normalizeTask(&t)
	if err := r.putLocked(t); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

func (r *SQLiteRepo) Delete(id model.TaskID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec("DELETE FROM tasks WHERE id = ?", string(id))
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	// Scrub dangling edges pointing at the removed id.
	all, err := r.snapshotLocked()
	if err != nil {
		return err
	}
	for _, t := range all {
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
		if err := r.putLocked(t); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRepo) snapshotLocked() ([]model.Task, error) {
	rows, err := r.db.Query("SELECT data FROM tasks ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []model.Task
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t model.Task
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("decode task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) Snapshot() ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *SQLiteRepo) Apply(closed model.Task, next *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exists, err := r.existsLocked(closed.ID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	if next != nil && next.ID == "" {
		next.ID = model.TaskID(uuid.NewString())
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := putTx(tx, closed); err != nil {
		return err
	}
	if next != nil {
		if err := putTx(tx, *next); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func putTx(tx *sql.Tx, t model.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO tasks (id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at`,
		string(t.ID), string(data),
		t.CreatedAt.UTC().Format(time.RFC3339Nano),
		t.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put task %s: %w", t.ID, err)
	}
	return nil
}

func (r *SQLiteRepo) Undo(id model.TaskID) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.getLocked(id)
	if err != nil {
		return model.Task{}, err
	}
	if err := undoLast(&t, r.now()); err != nil {
		return model.Task{}, err
	}
	normalizeTask(&t)
	if err := r.putLocked(t); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

func (r *SQLiteRepo) setRegistry(kind, name string, multiplier float64) error {
	if name == "" {
		return fmt.Errorf("%s name required", kind)
	}
	_, err := r.db.Exec(`
		INSERT INTO registry (kind, name, multiplier)
		VALUES (?, ?, ?)
		ON CONFLICT(kind, name) DO UPDATE SET multiplier = excluded.multiplier`,
		kind, name, multiplier,
	)
	return err
}

func (r *SQLiteRepo) SetTag(def model.TagDef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setRegistry("tag", def.Name, def.Multiplier)
}

func (r *SQLiteRepo) SetProject(def model.ProjectDef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setRegistry("project", def.Name, def.Multiplier)
}

func (r *SQLiteRepo) listRegistry(kind string) ([]model.TagDef, error) {
	rows, err := r.db.Query(
		"SELECT name, multiplier FROM registry WHERE kind = ? ORDER BY name", kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TagDef
	for rows.Next() {
		var def model.TagDef
		if err := rows.Scan(&def.Name, &def.Multiplier); err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) Tags() ([]model.TagDef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listRegistry("tag")
}

func (r *SQLiteRepo) Projects() ([]model.ProjectDef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs, err := r.listRegistry("project")
	if err != nil {
		return nil, err
	}
	out := make([]model.ProjectDef, len(defs))
	for i, def := range defs {
		out[i] = model.ProjectDef{Name: def.Name, Multiplier: def.Multiplier}
	}
	return out, nil
}

func (r *SQLiteRepo) lookupMultiplier(kind, name string) (float64, bool) {
	var m float64
	err := r.db.QueryRow(
		"SELECT multiplier FROM registry WHERE kind = ? AND name = ?", kind, name).Scan(&m)
	if err != nil || m == 0 {
		return 1.0, false
	}
	return m, true
}

func (r *SQLiteRepo) TagMultiplier(name string) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookupMultiplier("tag", name)
}

func (r *SQLiteRepo) ProjectMultiplier(name string) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookupMultiplier("project", name)
}
