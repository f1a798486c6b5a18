package scheduler

import "errors"

var (
	// ErrCycle indicates a circular dependency in the task graph.
	ErrCycle = errors.New("dependency cycle detected")

	// ErrDuplicateID indicates a task ID was added twice.
	ErrDuplicateID = errors.New("duplicate task id")

	// ErrUnknownTask indicates an operation referenced a task ID that does
	// not exist in the graph.
	ErrUnknownTask = errors.New("unknown task")

	// ErrNotInProgress indicates a complete/fail transition was attempted on
	// a task that is not in progress.
	ErrNotInProgress = errors.New("task is not in progress")
)
