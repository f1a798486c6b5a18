package scheduler

import (
	"fmt"
	"sort"
	"time"
)

// Snapshot holds per-status task counts. It is the sole basis for progress
// reporting.
type Snapshot struct {
	Pending    int `json:"pending"`
	Ready      int `json:"ready"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Blocked    int `json:"blocked"`
}

// Total returns the number of tasks across all statuses.
func (s Snapshot) Total() int {
	return s.Pending + s.Ready + s.InProgress + s.Completed + s.Failed + s.Blocked
}

// Unresolved returns the number of tasks that could still run or are running.
func (s Snapshot) Unresolved() int {
	return s.Pending + s.Ready + s.InProgress
}

// Queue is the thread-safe scheduling view over a Graph. All status
// mutations go through it: claiming ready tasks, recording completion or
// failure, and the blocked cascade. The graph's mutex is the single
// synchronization boundary, so concurrent dispatch completions never race
// on the same task record.
type Queue struct {
	g *Graph
}

// NewQueue creates a queue over the given graph.
func NewQueue(g *Graph) *Queue {
	return &Queue{g: g}
}

// Graph returns the underlying graph.
func (q *Queue) Graph() *Graph {
	return q.g
}

// promoteLocked lazily transitions pending tasks whose dependencies have all
// completed to ready. Caller must hold the graph lock.
func (q *Queue) promoteLocked() {
	for _, id := range q.g.order {
		task := q.g.tasks[id]
		if task.Status != StatusPending {
			continue
		}

		allDone := true
		for _, depID := range task.DependsOn {
			dep, exists := q.g.tasks[depID]
			if !exists || dep.Status != StatusCompleted {
				allDone = false
				break
			}
		}
		if allDone {
			task.Status = StatusReady
		}
	}
}

// ClaimReady atomically selects up to capacity ready tasks, transitions them
// to in_progress, stamps StartedAt, and returns copies. Pending tasks whose
// dependencies are all completed are promoted to ready first. Selection is
// deterministic: insertion order breaks ties, so repeated runs over the same
// graph produce the same schedule.
func (q *Queue) ClaimReady(capacity int) []*Task {
	if capacity <= 0 {
		return nil
	}

	q.g.mu.Lock()
	defer q.g.mu.Unlock()

	q.promoteLocked()

	now := time.Now()
	var claimed []*Task
	for _, id := range q.g.order {
		if len(claimed) >= capacity {
			break
		}
		task := q.g.tasks[id]
		if task.Status != StatusReady {
			continue
		}
		task.Status = StatusInProgress
		ts := now
		task.StartedAt = &ts
		claimed = append(claimed, cloneTask(task))
	}

	sort.Slice(claimed, func(i, j int) bool { return claimed[i].seq < claimed[j].seq })
	return claimed
}

// Assign records the agent working on a claimed task and stamps AssignedAt.
func (q *Queue) Assign(taskID, agentID string) error {
	q.g.mu.Lock()
	defer q.g.mu.Unlock()

	task, exists := q.g.tasks[taskID]
	if !exists {
		return fmt.Errorf("%w: %q", ErrUnknownTask, taskID)
	}
	if task.Status != StatusInProgress {
		return fmt.Errorf("%w: %q (status %s)", ErrNotInProgress, taskID, task.Status)
	}

	now := time.Now()
	task.AgentID = agentID
	task.AssignedAt = &now
	return nil
}

// Requeue returns a claimed task to ready without recording an attempt.
// Used when no agent qualifies for a claimed task this iteration; the task
// is retried on the next pass.
func (q *Queue) Requeue(taskID string) error {
	q.g.mu.Lock()
	defer q.g.mu.Unlock()

	task, exists := q.g.tasks[taskID]
	if !exists {
		return fmt.Errorf("%w: %q", ErrUnknownTask, taskID)
	}
	if task.Status != StatusInProgress {
		return fmt.Errorf("%w: %q (status %s)", ErrNotInProgress, taskID, task.Status)
	}

	task.Status = StatusReady
	task.AgentID = ""
	task.AssignedAt = nil
	task.StartedAt = nil
	return nil
}

// Complete transitions an in_progress task to completed and stores the
// result summary. Readiness of dependents is recomputed lazily on the next
// claim or snapshot.
func (q *Queue) Complete(taskID, resultSummary string) error {
	q.g.mu.Lock()
	defer q.g.mu.Unlock()

	task, exists := q.g.tasks[taskID]
	if !exists {
		return fmt.Errorf("%w: %q", ErrUnknownTask, taskID)
	}
	if task.Status != StatusInProgress {
		return fmt.Errorf("%w: %q (status %s)", ErrNotInProgress, taskID, task.Status)
	}

	now := time.Now()
	task.Status = StatusCompleted
	task.Result = resultSummary
	task.CompletedAt = &now
	return nil
}

// Fail transitions an in_progress task to failed and cascades blocked to all
// transitive dependents that have not yet started. Failure is terminal at
// this layer; it is never silently retried.
func (q *Queue) Fail(taskID, errorMessage string) error {
	q.g.mu.Lock()
	defer q.g.mu.Unlock()

	task, exists := q.g.tasks[taskID]
	if !exists {
		return fmt.Errorf("%w: %q", ErrUnknownTask, taskID)
	}
	if task.Status != StatusInProgress {
		return fmt.Errorf("%w: %q (status %s)", ErrNotInProgress, taskID, task.Status)
	}

	now := time.Now()
	task.Status = StatusFailed
	task.Error = errorMessage
	task.CompletedAt = &now

	q.blockDependentsLocked(taskID)
	return nil
}

// blockDependentsLocked marks every transitive dependent that has not yet
// started as blocked. Caller must hold the graph lock.
func (q *Queue) blockDependentsLocked(taskID string) {
	queue := append([]string(nil), q.g.dependents[taskID]...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		task := q.g.tasks[id]
		if task.Status != StatusPending && task.Status != StatusReady {
			continue
		}
		task.Status = StatusBlocked
		queue = append(queue, q.g.dependents[id]...)
	}
}

// Snapshot returns per-status counts. It applies the same lazy pending→ready
// promotion as ClaimReady so the counts match what a claim would observe;
// the promotion is idempotent, so repeated snapshots without intervening
// mutation yield identical counts.
func (q *Queue) Snapshot() Snapshot {
	q.g.mu.Lock()
	defer q.g.mu.Unlock()

	q.promoteLocked()

	var snap Snapshot
	for _, task := range q.g.tasks {
		switch task.Status {
		case StatusPending:
			snap.Pending++
		case StatusReady:
			snap.Ready++
		case StatusInProgress:
			snap.InProgress++
		case StatusCompleted:
			snap.Completed++
		case StatusFailed:
			snap.Failed++
		case StatusBlocked:
			snap.Blocked++
		}
	}
	return snap
}
