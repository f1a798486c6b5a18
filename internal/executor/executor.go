// Package executor drives the scheduling loop: claim ready tasks, match
// them to agents, run the wave in parallel, write results back, and let the
// quality monitor decide whether another iteration is worth running.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hivekit/hive/internal/events"
	"github.com/hivekit/hive/internal/invoke"
	"github.com/hivekit/hive/internal/pool"
	"github.com/hivekit/hive/internal/quality"
	"github.com/hivekit/hive/internal/scheduler"
)

// ErrSchedulingStall is returned when an iteration dispatches nothing while
// unresolved tasks remain. With the iteration barrier every agent is free at
// the top of an iteration, so a zero-dispatch iteration can never recover.
var ErrSchedulingStall = errors.New("scheduling stall: unresolved tasks but nothing dispatchable")

// State describes the run lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateRunning    State = "running"
	StateCompleted  State = "completed"
	StateTerminated State = "terminated"
	StateFailed     State = "failed"
)

// ReasonCancelled is the termination reason recorded when the run context
// is cancelled.
const ReasonCancelled = "cancelled"

const cancelledTaskMessage = "execution cancelled"

// Config holds the executor's tunables.
type Config struct {
	// MaxParallel caps the number of tasks executing concurrently within an
	// iteration. Zero or negative means no cap beyond pool size.
	MaxParallel int
}

// Executor coordinates the queue, the agent pool and the execution
// collaborator across quality-monitored iterations.
type Executor struct {
	queue   *scheduler.Queue
	pool    *pool.Pool
	invoker invoke.Invoker
	monitor *quality.Monitor
	bus     *events.Bus
	cfg     Config

	mu    sync.Mutex
	state State
}

// New creates an Executor. The bus is optional; pass nil to run without
// event reporting.
func New(queue *scheduler.Queue, agents *pool.Pool, invoker invoke.Invoker, monitor *quality.Monitor, bus *events.Bus, cfg Config) *Executor {
	return &Executor{
		queue:   queue,
		pool:    agents,
		invoker: invoker,
		monitor: monitor,
		bus:     bus,
		cfg:     cfg,
		state:   StateIdle,
	}
}

// State returns the current run state.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Executor) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// taskOutcome is the write-back record produced by one task execution.
type taskOutcome struct {
	taskID    string
	agentID   string
	summary   string
	coverage  float64
	quality   float64
	err       error
	cancelled bool
	duration  time.Duration
}

// Run validates the graph and executes it to resolution or termination.
// It returns the final report; the error is non-nil only for run-level
// failures such as an invalid graph or a scheduling stall.
func (e *Executor) Run(ctx context.Context) (Report, error) {
	started := time.Now()

	if _, err := e.queue.Graph().Validate(); err != nil {
		e.setState(StateFailed)
		return e.report(started, StateFailed, err.Error(), 0), fmt.Errorf("validating task graph: %w", err)
	}

	e.setState(StateRunning)
	log.Printf("Run started: %d tasks, %d agents", e.queue.Graph().Size(), e.pool.Status().Total)

	lastCoverage := 0.0
	iteration := 0

	for {
		if ctx.Err() != nil {
			return e.finishCancelled(ctx, started, iteration)
		}

		iteration++

		outcomes, dispatched, err := e.runIteration(ctx, iteration)
		if err != nil {
			e.setState(StateFailed)
			e.publishRun(StateFailed, err.Error())
			return e.report(started, StateFailed, err.Error(), iteration), err
		}

		if ctx.Err() != nil {
			return e.finishCancelled(ctx, started, iteration)
		}

		rec, coverage := e.recordIteration(iteration, outcomes, lastCoverage)
		lastCoverage = coverage
		e.publish(events.TopicRun, events.IterationFinishedEvent{
			Iteration:        rec.Iteration,
			TasksCompleted:   rec.TasksCompleted,
			TasksFailed:      countFailed(outcomes),
			Coverage:         rec.Coverage,
			CoverageReported: rec.CoverageReported,
			QualityScore:     rec.QualityScore,
			Fingerprint:      rec.Fingerprint,
			Timestamp:        time.Now(),
		})

		counts := e.queue.Snapshot()
		if counts.Unresolved() == 0 {
			e.setState(StateCompleted)
			e.publishRun(StateCompleted, "all tasks resolved")
			log.Printf("Run completed after %d iteration(s): %d completed, %d failed, %d blocked",
				iteration, counts.Completed, counts.Failed, counts.Blocked)
			return e.report(started, StateCompleted, "all tasks resolved", iteration), nil
		}

		if dispatched == 0 {
			e.setState(StateFailed)
			e.publishRun(StateFailed, ErrSchedulingStall.Error())
			return e.report(started, StateFailed, ErrSchedulingStall.Error(), iteration), ErrSchedulingStall
		}

		cont, reason := e.monitor.ShouldContinue(iteration)
		if !cont {
			e.setState(StateTerminated)
			e.publishRun(StateTerminated, reason)
			log.Printf("Run terminated after %d iteration(s): %s", iteration, reason)
			return e.report(started, StateTerminated, reason, iteration), nil
		}
	}
}

// runIteration claims ready tasks, assigns agents and executes the wave.
// It returns the per-task outcomes and the number of tasks dispatched.
func (e *Executor) runIteration(ctx context.Context, iteration int) ([]taskOutcome, int, error) {
	capacity := e.pool.Status().Available
	if e.cfg.MaxParallel > 0 && capacity > e.cfg.MaxParallel {
		capacity = e.cfg.MaxParallel
	}

	claimed := e.queue.ClaimReady(capacity)
	log.Printf("Iteration %d: claimed %d task(s)", iteration, len(claimed))

	var (
		mu       sync.Mutex
		outcomes []taskOutcome
	)

	g, gctx := errgroup.WithContext(ctx)
	if e.cfg.MaxParallel > 0 {
		g.SetLimit(e.cfg.MaxParallel)
	}

	dispatched := 0
	for _, task := range claimed {
		agent, ok := e.pool.BestFit(task.Requires)
		if !ok {
			if err := e.queue.Requeue(task.ID); err != nil {
				return nil, dispatched, fmt.Errorf("requeueing unassignable task %s: %w", task.ID, err)
			}
			e.publish(events.TopicTask, events.TaskUnassignableEvent{
				ID:        task.ID,
				Requires:  task.Requires,
				Timestamp: time.Now(),
			})
			continue
		}

		if err := e.pool.Assign(agent.ID, task.ID); err != nil {
			return nil, dispatched, fmt.Errorf("assigning agent %s: %w", agent.ID, err)
		}
		if err := e.queue.Assign(task.ID, agent.ID); err != nil {
			return nil, dispatched, fmt.Errorf("assigning task %s: %w", task.ID, err)
		}

		dispatched++
		task, agent := *task, agent
		g.Go(func() error {
			outcome := e.executeTask(gctx, task, agent)
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
			return nil
		})
	}

	// Iteration barrier: every dispatched task finishes before write-back
	// completes and the next claim happens.
	if err := g.Wait(); err != nil {
		return nil, dispatched, err
	}

	for _, o := range outcomes {
		if err := e.writeBack(o); err != nil {
			return nil, dispatched, err
		}
	}
	return outcomes, dispatched, nil
}

// executeTask runs one task on one agent and returns the outcome. Task
// failures are data, not errors; they never abort the iteration.
func (e *Executor) executeTask(ctx context.Context, task scheduler.Task, agent pool.Agent) taskOutcome {
	start := time.Now()
	e.publish(events.TopicTask, events.TaskStartedEvent{
		ID:          task.ID,
		Description: task.Description,
		AgentID:     agent.ID,
		Timestamp:   start,
	})
	log.Printf("Task %s started on agent %s", task.ID, agent.ID)

	res, err := e.invoker.Execute(ctx, task, agent)
	outcome := taskOutcome{
		taskID:   task.ID,
		agentID:  agent.ID,
		duration: time.Since(start),
	}
	if err != nil {
		outcome.err = err
		outcome.cancelled = errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil
		return outcome
	}
	outcome.summary = res.Summary
	outcome.coverage = res.Coverage
	outcome.quality = res.Quality
	return outcome
}

// writeBack records one outcome on the queue and releases the agent.
func (e *Executor) writeBack(o taskOutcome) error {
	if o.err != nil {
		msg := o.err.Error()
		if o.cancelled {
			msg = cancelledTaskMessage
		}
		if err := e.queue.Fail(o.taskID, msg); err != nil {
			return fmt.Errorf("recording failure of task %s: %w", o.taskID, err)
		}
		if err := e.pool.Release(o.agentID, false); err != nil {
			log.Printf("Releasing agent %s: %v", o.agentID, err)
		}
		e.publish(events.TopicTask, events.TaskFailedEvent{
			ID:        o.taskID,
			AgentID:   o.agentID,
			Err:       msg,
			Duration:  o.duration,
			Timestamp: time.Now(),
		})
		log.Printf("Task %s failed on agent %s: %s", o.taskID, o.agentID, msg)
		return nil
	}

	if err := e.queue.Complete(o.taskID, o.summary); err != nil {
		return fmt.Errorf("recording completion of task %s: %w", o.taskID, err)
	}
	if err := e.pool.Release(o.agentID, true); err != nil {
		log.Printf("Releasing agent %s: %v", o.agentID, err)
	}
	e.publish(events.TopicTask, events.TaskCompletedEvent{
		ID:        o.taskID,
		AgentID:   o.agentID,
		Summary:   o.summary,
		Duration:  o.duration,
		Timestamp: time.Now(),
	})
	log.Printf("Task %s completed by agent %s in %s", o.taskID, o.agentID, o.duration.Round(time.Millisecond))
	return nil
}

// recordIteration turns a wave's outcomes into a quality record. An
// iteration where no task reported coverage is recorded as unreported: the
// previous value is carried forward for display only, and the monitor never
// counts silent iterations toward its no-improvement verdict.
func (e *Executor) recordIteration(iteration int, outcomes []taskOutcome, lastCoverage float64) (quality.IterationRecord, float64) {
	coverage := 0.0
	reported := false
	qualityScore := 0.0
	completed := 0
	summaries := make(map[string]string)

	for _, o := range outcomes {
		if o.err != nil {
			continue
		}
		completed++
		summaries[o.taskID] = o.summary
		if o.coverage > 0 {
			reported = true
			if o.coverage > coverage {
				coverage = o.coverage
			}
		}
		if o.quality > qualityScore {
			qualityScore = o.quality
		}
	}
	if !reported {
		coverage = lastCoverage
	}

	rec := quality.IterationRecord{
		Iteration:        iteration,
		Coverage:         coverage,
		CoverageReported: reported,
		QualityScore:     qualityScore,
		TasksCompleted:   completed,
		Fingerprint:      quality.Fingerprint(summaries),
	}
	e.monitor.RecordIteration(rec)
	e.publish(events.TopicRun, events.ProgressEvent{Counts: e.queue.Snapshot(), Timestamp: time.Now()})
	return rec, coverage
}

// finishCancelled fails every in-progress task and finishes the run as
// terminated. Ready and pending tasks keep their status for inspection.
func (e *Executor) finishCancelled(ctx context.Context, started time.Time, iteration int) (Report, error) {
	for _, task := range e.queue.Graph().Tasks() {
		if task.Status != scheduler.StatusInProgress {
			continue
		}
		if err := e.queue.Fail(task.ID, cancelledTaskMessage); err != nil {
			log.Printf("Failing cancelled task %s: %v", task.ID, err)
		}
		if task.AgentID != "" {
			if err := e.pool.Release(task.AgentID, false); err != nil {
				log.Printf("Releasing agent %s: %v", task.AgentID, err)
			}
		}
	}

	e.setState(StateTerminated)
	e.publishRun(StateTerminated, ReasonCancelled)
	log.Printf("Run cancelled after %d iteration(s)", iteration)
	return e.report(started, StateTerminated, ReasonCancelled, iteration), ctx.Err()
}

func (e *Executor) publish(topic string, ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(topic, ev)
	}
}

func (e *Executor) publishRun(state State, reason string) {
	e.publish(events.TopicRun, events.RunFinishedEvent{
		State:     string(state),
		Reason:    reason,
		Counts:    e.queue.Snapshot(),
		Timestamp: time.Now(),
	})
}

func countFailed(outcomes []taskOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.err != nil {
			n++
		}
	}
	return n
}
