package executor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hivekit/hive/internal/quality"
	"github.com/hivekit/hive/internal/scheduler"
)

// TaskReport is the final record of one task.
type TaskReport struct {
	ID      string           `json:"id"`
	Status  scheduler.Status `json:"status"`
	AgentID string           `json:"agent_id,omitempty"`
	Result  string           `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Report summarizes a finished run.
type Report struct {
	State      State                     `json:"state"`
	Reason     string                    `json:"reason"`
	Iterations int                       `json:"iterations"`
	Duration   time.Duration             `json:"duration"`
	Counts     scheduler.Snapshot        `json:"counts"`
	Tasks      []TaskReport              `json:"tasks"`
	History    []quality.IterationRecord `json:"history"`
}

// report assembles the final report from current queue and monitor state.
func (e *Executor) report(started time.Time, state State, reason string, iterations int) Report {
	tasks := e.queue.Graph().Tasks()
	reports := make([]TaskReport, 0, len(tasks))
	for _, t := range tasks {
		reports = append(reports, TaskReport{
			ID:      t.ID,
			Status:  t.Status,
			AgentID: t.AgentID,
			Result:  t.Result,
			Error:   t.Error,
		})
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].ID < reports[j].ID })

	return Report{
		State:      state,
		Reason:     reason,
		Iterations: iterations,
		Duration:   time.Since(started),
		Counts:     e.queue.Snapshot(),
		Tasks:      reports,
		History:    e.monitor.Records(),
	}
}

// String renders the report for terminal output.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s) after %d iteration(s) in %s\n",
		r.State, r.Reason, r.Iterations, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "  completed: %d  failed: %d  blocked: %d  unresolved: %d\n",
		r.Counts.Completed, r.Counts.Failed, r.Counts.Blocked, r.Counts.Unresolved())
	for _, t := range r.Tasks {
		switch t.Status {
		case scheduler.StatusCompleted:
			fmt.Fprintf(&b, "  [done]    %s (%s)\n", t.ID, t.AgentID)
		case scheduler.StatusFailed:
			fmt.Fprintf(&b, "  [failed]  %s: %s\n", t.ID, t.Error)
		case scheduler.StatusBlocked:
			fmt.Fprintf(&b, "  [blocked] %s\n", t.ID)
		default:
			fmt.Fprintf(&b, "  [%s] %s\n", t.Status, t.ID)
		}
	}
	return b.String()
}
