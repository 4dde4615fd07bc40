// Package graph builds the directed dependency graph over a task snapshot
// and answers blocked-status and reachability queries. Adjacency is id-based;
// every lookup goes through the snapshot map.
package graph

import (
	"errors"
	"fmt"
	"sort"

	"motido/internal/model"
)

var (
	ErrUnknownTask       = errors.New("unknown task id")
	ErrUnknownDependency = errors.New("dependency references unknown task")
	ErrSelfDependency    = errors.New("task depends on itself")
	ErrCycleDetected     = errors.New("dependency cycle detected")
	ErrUnknownMode       = errors.New("unknown direction mode")
)

// Mode selects the direction filter for Subgraph.
type Mode string

const (
	ModeAll Mode = "all"
	// ModeUpstream follows dependency edges forward from the root: the
	// tasks the root transitively depends on.
	ModeUpstream Mode = "upstream"
	// ModeDownstream follows reverse edges: tasks transitively depending
	// on the root.
	ModeDownstream Mode = "downstream"
	// ModeIsolated is the union of upstream and downstream plus the root.
	ModeIsolated Mode = "isolated"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeAll, ModeUpstream, ModeDownstream, ModeIsolated:
		return true
	}
	return false
}

// TaskError is a per-task data-integrity failure. A batch keeps going when
// one task is broken; the caller gets partial results plus these.
type TaskError struct {
	ID  model.TaskID
	Err error
}

func (e TaskError) Error() string {
	return fmt.Sprintf("task %s: %v", e.ID, e.Err)
}

func (e TaskError) Unwrap() error { return e.Err }

type Graph struct {
	tasks   map[model.TaskID]model.Task
	forward map[model.TaskID][]model.TaskID // task -> its dependencies
	reverse map[model.TaskID][]model.TaskID // task -> its dependents
	tainted map[model.TaskID]error
	order   []model.TaskID // snapshot order, for deterministic output
}

// Build indexes the snapshot and validates its edges. Tasks with a dangling
// reference, a self-loop, or membership in a dependency cycle are recorded
// as tainted; they are excluded from blocked-set computation and traversal
// but the rest of the snapshot stays fully usable.
func Build(tasks []model.Task) *Graph {
	g := &Graph{
		tasks:   make(map[model.TaskID]model.Task, len(tasks)),
		forward: make(map[model.TaskID][]model.TaskID, len(tasks)),
		reverse: make(map[model.TaskID][]model.TaskID),
		tainted: make(map[model.TaskID]error),
	}
	for _, t := range tasks {
		g.tasks[t.ID] = t
		g.order = append(g.order, t.ID)
	}

	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if dep == t.ID {
				g.taint(t.ID, ErrSelfDependency)
				continue
			}
			if _, ok := g.tasks[dep]; !ok {
				g.taint(t.ID, fmt.Errorf("%w: %s", ErrUnknownDependency, dep))
				continue
			}
			g.forward[t.ID] = append(g.forward[t.ID], dep)
			g.reverse[dep] = append(g.reverse[dep], t.ID)
		}
	}

	for _, id := range g.cycleMembers() {
		g.taint(id, ErrCycleDetected)
	}
	return g
}

func (g *Graph) taint(id model.TaskID, err error) {
	if _, seen := g.tainted[id]; !seen {
		g.tainted[id] = err
	}
}

// Errors returns the per-task integrity errors in snapshot order.
func (g *Graph) Errors() []TaskError {
	out := make([]TaskError, 0, len(g.tainted))
	for _, id := range g.order {
		if err, ok := g.tainted[id]; ok {
			out = append(out, TaskError{ID: id, Err: err})
		}
	}
	return out
}

// TaintedErr returns the integrity error for id, or nil.
func (g *Graph) TaintedErr(id model.TaskID) error {
	return g.tainted[id]
}

// BlockedSet returns the ids of tasks with at least one incomplete direct
// dependency. Blocked means directly gated; no transitive closure. Tainted
// tasks are skipped (their status is an error, not a classification).
func (g *Graph) BlockedSet() map[model.TaskID]bool {
	blocked := make(map[model.TaskID]bool)
	for id := range g.tasks {
		if g.tainted[id] != nil {
			continue
		}
		for _, dep := range g.forward[id] {
			if !g.tasks[dep].Complete {
				blocked[id] = true
				break
			}
		}
	}
	return blocked
}

// Subgraph returns the set of task ids visible from root under the given
// direction mode. The walk is plain BFS with a visited set; diamonds are
// visited once and the DAG invariant guarantees termination.
func (g *Graph) Subgraph(root model.TaskID, mode Mode) (map[model.TaskID]bool, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if _, ok := g.tasks[root]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, root)
	}
	if err := g.tainted[root]; err != nil {
		return nil, TaskError{ID: root, Err: err}
	}

	switch mode {
	case ModeAll:
		all := make(map[model.TaskID]bool, len(g.tasks))
		for id := range g.tasks {
			all[id] = true
		}
		return all, nil
	case ModeUpstream:
		return g.walk(root, g.forward), nil
	case ModeDownstream:
		return g.walk(root, g.reverse), nil
	default: // ModeIsolated
		set := g.walk(root, g.forward)
		for id := range g.walk(root, g.reverse) {
			set[id] = true
		}
		return set, nil
	}
}

// SubgraphTasks is Subgraph materialized to task records in snapshot order.
func (g *Graph) SubgraphTasks(root model.TaskID, mode Mode) ([]model.Task, error) {
	set, err := g.Subgraph(root, mode)
	if err != nil {
		return nil, err
	}
	out := make([]model.Task, 0, len(set))
	for _, id := range g.order {
		if set[id] {
			out = append(out, g.tasks[id])
		}
	}
	return out, nil
}

func (g *Graph) walk(root model.TaskID, edges map[model.TaskID][]model.TaskID) map[model.TaskID]bool {
	visited := map[model.TaskID]bool{root: true}
	queue := []model.TaskID{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range edges[cur] {
			if visited[next] || g.tainted[next] != nil {
				continue
			}
			visited[next] = true
			queue = append(queue, next)
		}
	}
	return visited
}

// cycleMembers finds every task that sits on a dependency cycle, using
// Tarjan's strongly connected components over the valid forward edges.
// Components of size one without a self-edge are acyclic and ignored.
func (g *Graph) cycleMembers() []model.TaskID {
	index := 0
	indices := make(map[model.TaskID]int)
	lowlink := make(map[model.TaskID]int)
	onStack := make(map[model.TaskID]bool)
	var stack []model.TaskID
	var members []model.TaskID

	var strongConnect func(v model.TaskID)
	strongConnect = func(v model.TaskID) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.forward[v] {
			if _, seen := indices[w]; !seen {
				strongConnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var comp []model.TaskID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			if len(comp) > 1 {
				members = append(members, comp...)
			}
		}
	}

	for _, id := range g.order {
		if _, seen := indices[id]; !seen {
			strongConnect(id)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	return members
}
