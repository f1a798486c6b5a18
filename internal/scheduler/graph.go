package scheduler

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gammazero/toposort"
)

// Graph is the exclusive owner of all tasks, indexed by ID.
// Status mutations happen only through the Queue; the Graph itself only
// grows (AddTask) and answers structural queries.
type Graph struct {
	mu         sync.RWMutex
	tasks      map[string]*Task
	dependents map[string][]string // taskID -> tasks that depend on it
	order      []string            // insertion order, for deterministic claims
}

// NewGraph creates an empty task graph.
func NewGraph() *Graph {
	return &Graph{
		tasks:      make(map[string]*Task),
		dependents: make(map[string][]string),
	}
}

// AddTask registers a task. It fails with ErrDuplicateID if the ID already
// exists and with ErrCycle if the task's dependency edges close a cycle with
// edges already in the graph. Dependencies on IDs not yet added are allowed;
// Validate catches dangling references once the submission is complete.
func (g *Graph) AddTask(task *Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if task.ID == "" {
		return fmt.Errorf("%w: empty id", ErrUnknownTask)
	}
	if _, exists := g.tasks[task.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateID, task.ID)
	}

	for _, depID := range task.DependsOn {
		if depID == task.ID {
			return fmt.Errorf("%w: task %q depends on itself", ErrCycle, task.ID)
		}
	}
	if cyclic := g.closesCycleLocked(task); cyclic {
		return fmt.Errorf("%w: adding %q", ErrCycle, task.ID)
	}

	task.seq = len(g.order)
	if task.Status == "" {
		task.Status = StatusPending
	}
	g.tasks[task.ID] = task
	g.order = append(g.order, task.ID)

	for _, depID := range task.DependsOn {
		g.dependents[depID] = append(g.dependents[depID], task.ID)
	}

	return nil
}

// closesCycleLocked reports whether the candidate task's dependency edges,
// combined with edges already present, reach back to the candidate. Walks
// the existing depends-on edges depth-first starting from each new dependency.
func (g *Graph) closesCycleLocked(task *Task) bool {
	visited := make(map[string]bool)

	var reaches func(id string) bool
	reaches = func(id string) bool {
		if id == task.ID {
			return true
		}
		if visited[id] {
			return false
		}
		visited[id] = true

		dep, exists := g.tasks[id]
		if !exists {
			return false
		}
		for _, next := range dep.DependsOn {
			if reaches(next) {
				return true
			}
		}
		return false
	}

	for _, depID := range task.DependsOn {
		if reaches(depID) {
			return true
		}
	}
	return false
}

// Validate checks the whole graph: every dependency must reference a known
// task and the dependency relation must be acyclic. Returns a topological
// order of task IDs on success.
func (g *Graph) Validate() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, id := range g.order {
		for _, depID := range g.tasks[id].DependsOn {
			if _, exists := g.tasks[depID]; !exists {
				return nil, fmt.Errorf("%w: task %q depends on %q", ErrUnknownTask, id, depID)
			}
		}
	}

	var edges []toposort.Edge
	for _, id := range g.order {
		task := g.tasks[id]
		if len(task.DependsOn) == 0 {
			edges = append(edges, toposort.Edge{nil, id})
			continue
		}
		for _, depID := range task.DependsOn {
			edges = append(edges, toposort.Edge{depID, id})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCycle, err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	if len(order) != len(g.tasks) {
		var missing []string
		found := make(map[string]bool, len(order))
		for _, id := range order {
			found[id] = true
		}
		for _, id := range g.order {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, fmt.Errorf("topological sort lost %d tasks: %s", len(missing), strings.Join(missing, ", "))
	}

	return order, nil
}

// Task returns a copy of the task with the given ID.
func (g *Graph) Task(id string) (*Task, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	task, exists := g.tasks[id]
	if !exists {
		return nil, false
	}
	return cloneTask(task), true
}

// Tasks returns copies of all tasks in insertion order.
func (g *Graph) Tasks() []*Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tasks := make([]*Task, 0, len(g.order))
	for _, id := range g.order {
		tasks = append(tasks, cloneTask(g.tasks[id]))
	}
	return tasks
}

// Dependents returns the IDs of tasks that directly depend on the given task.
func (g *Graph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.dependents[id]...)
}

// Size returns the number of tasks in the graph.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.tasks)
}
