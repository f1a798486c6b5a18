package persistence

import (
	"context"
	"reflect"
	"testing"

	"github.com/hivekit/hive/internal/events"
	"github.com/hivekit/hive/internal/pool"
	"github.com/hivekit/hive/internal/quality"
	"github.com/hivekit/hive/internal/scheduler"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("NewMemoryStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveTaskRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task := &scheduler.Task{
		ID:          "t1",
		Description: "implement the parser",
		Type:        "coding",
		Requires:    []string{"coding", "parsing"},
		DependsOn:   []string{"t0"},
		Status:      scheduler.StatusCompleted,
		AgentID:     "a1",
		Result:      "parser implemented",
	}
	if err := store.SaveTask(ctx, task); err != nil {
		t.Fatalf("SaveTask() error = %v", err)
	}

	got, err := store.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.Description != task.Description || got.Status != task.Status || got.AgentID != task.AgentID {
		t.Errorf("GetTask() = %+v", got)
	}
	if !reflect.DeepEqual(got.Requires, task.Requires) {
		t.Errorf("Requires = %v, want %v", got.Requires, task.Requires)
	}
	if !reflect.DeepEqual(got.DependsOn, task.DependsOn) {
		t.Errorf("DependsOn = %v, want %v", got.DependsOn, task.DependsOn)
	}
}

func TestSaveTaskUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task := &scheduler.Task{ID: "t1", Description: "x", Status: scheduler.StatusPending}
	if err := store.SaveTask(ctx, task); err != nil {
		t.Fatalf("SaveTask() error = %v", err)
	}

	task.Status = scheduler.StatusFailed
	task.Error = "tool crashed"
	if err := store.SaveTask(ctx, task); err != nil {
		t.Fatalf("SaveTask() second save error = %v", err)
	}

	got, err := store.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.Status != scheduler.StatusFailed || got.Error != "tool crashed" {
		t.Errorf("after upsert: %s/%q", got.Status, got.Error)
	}

	tasks, err := store.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("ListTasks() returned %d tasks, want 1", len(tasks))
	}
}

func TestGetTaskNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetTask(context.Background(), "ghost"); err == nil {
		t.Error("GetTask() returned nil error for missing task")
	}
}

func TestIterationsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records := []quality.IterationRecord{
		{Iteration: 1, Coverage: 0.4, CoverageReported: true, QualityScore: 0.7, TasksCompleted: 2, Fingerprint: "aa"},
		{Iteration: 2, Coverage: 0.4, QualityScore: 0.8, TasksCompleted: 1, Fingerprint: "bb"},
	}
	for _, rec := range records {
		if err := store.SaveIteration(ctx, rec); err != nil {
			t.Fatalf("SaveIteration(%d) error = %v", rec.Iteration, err)
		}
	}

	got, err := store.ListIterations(ctx)
	if err != nil {
		t.Fatalf("ListIterations() error = %v", err)
	}
	if !reflect.DeepEqual(got, records) {
		t.Errorf("ListIterations() = %+v, want %+v", got, records)
	}
}

func TestAgentStatsUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveAgentStats(ctx, AgentStats{AgentID: "a1", TasksCompleted: 1}); err != nil {
		t.Fatalf("SaveAgentStats() error = %v", err)
	}
	if err := store.SaveAgentStats(ctx, AgentStats{AgentID: "a1", TasksCompleted: 3, TasksFailed: 1}); err != nil {
		t.Fatalf("SaveAgentStats() second save error = %v", err)
	}

	stats, err := store.ListAgentStats(ctx)
	if err != nil {
		t.Fatalf("ListAgentStats() error = %v", err)
	}
	if len(stats) != 1 || stats[0].TasksCompleted != 3 || stats[0].TasksFailed != 1 {
		t.Errorf("ListAgentStats() = %+v", stats)
	}
}

func TestRecorder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	g := scheduler.NewGraph()
	if err := g.AddTask(&scheduler.Task{ID: "t1", Description: "x"}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	queue := scheduler.NewQueue(g)
	agents := pool.New()
	if err := agents.Register(pool.Agent{ID: "a1"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	rec := NewRecorder(store, queue, agents)
	if err := rec.SaveAll(ctx); err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}

	ch := make(chan events.Event, 8)
	done := make(chan struct{})
	go func() {
		rec.Run(ctx, ch)
		close(done)
	}()

	ch <- events.IterationFinishedEvent{Iteration: 1, Coverage: 0.5, CoverageReported: true, TasksCompleted: 1, Fingerprint: "ff"}
	ch <- events.RunFinishedEvent{State: "completed", Reason: "all tasks resolved"}
	close(ch)
	<-done

	iterations, err := store.ListIterations(ctx)
	if err != nil {
		t.Fatalf("ListIterations() error = %v", err)
	}
	if len(iterations) != 1 || iterations[0].Coverage != 0.5 || !iterations[0].CoverageReported {
		t.Errorf("iterations = %+v", iterations)
	}

	stats, err := store.ListAgentStats(ctx)
	if err != nil {
		t.Fatalf("ListAgentStats() error = %v", err)
	}
	if len(stats) != 1 || stats[0].AgentID != "a1" {
		t.Errorf("stats = %+v", stats)
	}

	if _, err := store.GetTask(ctx, "t1"); err != nil {
		t.Errorf("task not persisted: %v", err)
	}
}
