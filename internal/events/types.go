package events

import (
	"time"

	"github.com/hivekit/hive/internal/scheduler"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicTask = "task"
	TopicRun  = "run"
)

// Event type constants
const (
	EventTypeTaskStarted       = "task.started"
	EventTypeTaskCompleted     = "task.completed"
	EventTypeTaskFailed        = "task.failed"
	EventTypeTaskUnassignable  = "task.unassignable"
	EventTypeIterationFinished = "run.iteration"
	EventTypeProgress          = "run.progress"
	EventTypeRunFinished       = "run.finished"
)

// TaskStartedEvent is published when a task is dispatched to an agent.
type TaskStartedEvent struct {
	ID          string
	Description string
	AgentID     string
	Timestamp   time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskCompletedEvent is published when a task completes successfully.
type TaskCompletedEvent struct {
	ID        string
	AgentID   string
	Summary   string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published when a task fails.
type TaskFailedEvent struct {
	ID        string
	AgentID   string
	Err       string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// TaskUnassignableEvent is published when a ready task found no qualified
// agent this iteration and was requeued.
type TaskUnassignableEvent struct {
	ID        string
	Requires  []string
	Timestamp time.Time
}

func (e TaskUnassignableEvent) EventType() string { return EventTypeTaskUnassignable }
func (e TaskUnassignableEvent) TaskID() string    { return e.ID }

// IterationFinishedEvent is published after each iteration barrier.
type IterationFinishedEvent struct {
	Iteration        int
	TasksCompleted   int
	TasksFailed      int
	Coverage         float64
	CoverageReported bool
	QualityScore     float64
	Fingerprint      string
	Timestamp        time.Time
}

func (e IterationFinishedEvent) EventType() string { return EventTypeIterationFinished }
func (e IterationFinishedEvent) TaskID() string    { return "" }

// ProgressEvent carries the per-status counts after a mutation wave.
type ProgressEvent struct {
	Counts    scheduler.Snapshot
	Timestamp time.Time
}

func (e ProgressEvent) EventType() string { return EventTypeProgress }
func (e ProgressEvent) TaskID() string    { return "" }

// RunFinishedEvent is published once, when the run reaches a terminal state.
type RunFinishedEvent struct {
	State     string
	Reason    string
	Counts    scheduler.Snapshot
	Timestamp time.Time
}

func (e RunFinishedEvent) EventType() string { return EventTypeRunFinished }
func (e RunFinishedEvent) TaskID() string    { return "" }
