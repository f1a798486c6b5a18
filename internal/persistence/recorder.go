package persistence

import (
	"context"
	"log"

	"github.com/hivekit/hive/internal/events"
	"github.com/hivekit/hive/internal/pool"
	"github.com/hivekit/hive/internal/quality"
	"github.com/hivekit/hive/internal/scheduler"
)

// Recorder consumes run events and writes them to a Store. It runs off the
// scheduling path: a slow disk delays persistence, never dispatch.
type Recorder struct {
	store Store
	queue *scheduler.Queue
	pool  *pool.Pool
}

// NewRecorder creates a recorder over the given store.
func NewRecorder(store Store, queue *scheduler.Queue, agents *pool.Pool) *Recorder {
	return &Recorder{store: store, queue: queue, pool: agents}
}

// SaveAll persists the current state of every task in the graph.
func (r *Recorder) SaveAll(ctx context.Context) error {
	for _, task := range r.queue.Graph().Tasks() {
		if err := r.store.SaveTask(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

// Run consumes events until the channel closes or the context is cancelled.
// Persistence failures are logged, not fatal.
func (r *Recorder) Run(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			r.handle(ctx, ev)
		}
	}
}

func (r *Recorder) handle(ctx context.Context, ev events.Event) {
	switch e := ev.(type) {
	case events.TaskStartedEvent, events.TaskCompletedEvent, events.TaskFailedEvent:
		r.saveTask(ctx, ev.TaskID())

	case events.IterationFinishedEvent:
		rec := quality.IterationRecord{
			Iteration:        e.Iteration,
			Coverage:         e.Coverage,
			CoverageReported: e.CoverageReported,
			QualityScore:     e.QualityScore,
			TasksCompleted:   e.TasksCompleted,
			Fingerprint:      e.Fingerprint,
		}
		if err := r.store.SaveIteration(ctx, rec); err != nil {
			log.Printf("Persisting iteration %d: %v", e.Iteration, err)
		}

	case events.RunFinishedEvent:
		if err := r.SaveAll(ctx); err != nil {
			log.Printf("Persisting final task state: %v", err)
		}
		for _, agent := range r.pool.Agents() {
			stats := AgentStats{
				AgentID:        agent.ID,
				TasksCompleted: agent.TasksCompleted,
				TasksFailed:    agent.TasksFailed,
			}
			if err := r.store.SaveAgentStats(ctx, stats); err != nil {
				log.Printf("Persisting stats for agent %s: %v", agent.ID, err)
			}
		}
	}
}

func (r *Recorder) saveTask(ctx context.Context, taskID string) {
	task, ok := r.queue.Graph().Task(taskID)
	if !ok {
		return
	}
	if err := r.store.SaveTask(ctx, task); err != nil {
		log.Printf("Persisting task %s: %v", taskID, err)
	}
}
