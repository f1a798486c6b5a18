package scheduler

import "time"

// Status represents the current state of a task.
type Status string

const (
	// StatusPending indicates the task is waiting for dependencies.
	StatusPending Status = "pending"
	// StatusReady indicates all dependencies completed; eligible for claiming.
	StatusReady Status = "ready"
	// StatusInProgress indicates the task has been claimed and is executing.
	StatusInProgress Status = "in_progress"
	// StatusCompleted indicates the task finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the task finished with an error.
	StatusFailed Status = "failed"
	// StatusBlocked indicates the task can never run because a dependency
	// failed or is itself blocked.
	StatusBlocked Status = "blocked"
)

// Valid returns true if the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReady, StatusInProgress, StatusCompleted, StatusFailed, StatusBlocked:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusBlocked
}

// Task represents a unit of work in the graph.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Description is the human-readable statement of the work.
	Description string `json:"description"`
	// Type is a free-form task type tag (e.g. "implement", "review").
	Type string `json:"type,omitempty"`
	// Requires lists the capability tags an executing agent should carry.
	Requires []string `json:"requires,omitempty"`
	// DependsOn lists task IDs that must complete before this task.
	DependsOn []string `json:"depends_on,omitempty"`
	// Status is the current state of the task.
	Status Status `json:"status"`
	// AgentID is the agent currently or last assigned, empty if none.
	AgentID string `json:"agent_id,omitempty"`
	// Result holds the result summary after successful completion.
	Result string `json:"result,omitempty"`
	// Error holds the failure message if the task failed.
	Error string `json:"error,omitempty"`
	// AssignedAt is when an agent was assigned, nil until then.
	AssignedAt *time.Time `json:"assigned_at,omitempty"`
	// StartedAt is when execution began, nil until then.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task reached completed or failed, nil until then.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// seq is the insertion order, used for deterministic claim ordering.
	seq int
}

func cloneTask(t *Task) *Task {
	if t == nil {
		return nil
	}

	cp := *t
	if t.Requires != nil {
		cp.Requires = append([]string(nil), t.Requires...)
	}
	if t.DependsOn != nil {
		cp.DependsOn = append([]string(nil), t.DependsOn...)
	}
	if t.AssignedAt != nil {
		ts := *t.AssignedAt
		cp.AssignedAt = &ts
	}
	if t.StartedAt != nil {
		ts := *t.StartedAt
		cp.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		cp.CompletedAt = &ts
	}
	return &cp
}
