// Package invoke defines the execution collaborator contract: the single
// call that actually runs a claimed task on an assigned agent. The
// scheduling core issues exactly one Execute per claim; retry, if wanted,
// is layered on top via RetryInvoker.
package invoke

import (
	"context"

	"github.com/hivekit/hive/internal/pool"
	"github.com/hivekit/hive/internal/scheduler"
)

// Result is the successful outcome of one execution attempt. Coverage and
// Quality are optional signals the collaborator may report for the quality
// monitor; zero means "not reported".
type Result struct {
	// Summary is the result summary recorded on the task.
	Summary string `json:"summary"`
	// Coverage is an optional coverage signal in [0,1].
	Coverage float64 `json:"coverage,omitempty"`
	// Quality is an optional quality score in [0,1].
	Quality float64 `json:"quality,omitempty"`
}

// Invoker executes one task on one agent. Implementations must honor
// context cancellation; a cancelled execution returns the context error.
type Invoker interface {
	Execute(ctx context.Context, task scheduler.Task, agent pool.Agent) (Result, error)
}

// Func adapts a function to the Invoker interface.
type Func func(ctx context.Context, task scheduler.Task, agent pool.Agent) (Result, error)

// Execute implements Invoker.
func (f Func) Execute(ctx context.Context, task scheduler.Task, agent pool.Agent) (Result, error) {
	return f(ctx, task, agent)
}
