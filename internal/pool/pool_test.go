package pool

import (
	"errors"
	"testing"
)

func TestPoolRegister(t *testing.T) {
	p := New()
	if err := p.Register(Agent{ID: "a1", Capabilities: []string{"go"}}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := p.Register(Agent{ID: "a1"}); !errors.Is(err, ErrDuplicateAgent) {
		t.Errorf("duplicate Register error = %v, want ErrDuplicateAgent", err)
	}

	status := p.Status()
	if status.Total != 1 || status.Available != 1 || status.Busy != 0 {
		t.Errorf("Status() = %+v, want 1 total available", status)
	}
}

func TestPoolBestFit(t *testing.T) {
	tests := []struct {
		name     string
		agents   []Agent
		busy     []string
		requires []string
		wantID   string
		wantOK   bool
	}{
		{
			name: "highest overlap wins",
			agents: []Agent{
				{ID: "docs", Capabilities: []string{"documentation"}},
				{ID: "generalist", Capabilities: []string{"go"}},
				{ID: "specialist", Capabilities: []string{"go", "testing"}},
			},
			requires: []string{"go", "testing"},
			wantID:   "specialist",
			wantOK:   true,
		},
		{
			name: "zero overlap does not qualify",
			agents: []Agent{
				{ID: "docs", Capabilities: []string{"documentation"}},
			},
			requires: []string{"go"},
			wantOK:   false,
		},
		{
			name: "no required tags matches any available agent",
			agents: []Agent{
				{ID: "docs", Capabilities: []string{"documentation"}},
			},
			requires: nil,
			wantID:   "docs",
			wantOK:   true,
		},
		{
			name: "busy agents are skipped",
			agents: []Agent{
				{ID: "a1", Capabilities: []string{"go"}},
				{ID: "a2", Capabilities: []string{"go"}},
			},
			busy:     []string{"a1"},
			requires: []string{"go"},
			wantID:   "a2",
			wantOK:   true,
		},
		{
			name:     "empty pool",
			requires: []string{"go"},
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			for _, agent := range tt.agents {
				if err := p.Register(agent); err != nil {
					t.Fatalf("Register(%s): %v", agent.ID, err)
				}
			}
			for _, id := range tt.busy {
				if err := p.Assign(id, "task-x"); err != nil {
					t.Fatalf("Assign(%s): %v", id, err)
				}
			}

			got, ok := p.BestFit(tt.requires)
			if ok != tt.wantOK {
				t.Fatalf("BestFit ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.ID != tt.wantID {
				t.Errorf("BestFit = %s, want %s", got.ID, tt.wantID)
			}
		})
	}
}

// TestPoolBestFitLRUTieBreak verifies ties go to the least-recently-used
// agent so load spreads across equivalent agents.
func TestPoolBestFitLRUTieBreak(t *testing.T) {
	p := New()
	for _, id := range []string{"a1", "a2"} {
		if err := p.Register(Agent{ID: id, Capabilities: []string{"go"}}); err != nil {
			t.Fatalf("Register(%s): %v", id, err)
		}
	}

	// First pick goes to a1 (registration order, neither used yet).
	first, ok := p.BestFit([]string{"go"})
	if !ok || first.ID != "a1" {
		t.Fatalf("first BestFit = %v %v, want a1", first.ID, ok)
	}
	if err := p.Assign("a1", "t1"); err != nil {
		t.Fatal(err)
	}
	if err := p.Release("a1", true); err != nil {
		t.Fatal(err)
	}

	// a1 is now more recently used; the tie must go to a2.
	second, ok := p.BestFit([]string{"go"})
	if !ok || second.ID != "a2" {
		t.Errorf("second BestFit = %v %v, want a2", second.ID, ok)
	}
}

func TestPoolAssignRelease(t *testing.T) {
	p := New()
	if err := p.Register(Agent{ID: "a1", Capabilities: []string{"go"}}); err != nil {
		t.Fatal(err)
	}

	if err := p.Assign("a1", "t1"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := p.Assign("a1", "t2"); !errors.Is(err, ErrAlreadyBusy) {
		t.Errorf("second Assign error = %v, want ErrAlreadyBusy", err)
	}
	if _, ok := p.BestFit([]string{"go"}); ok {
		t.Error("busy agent returned by BestFit")
	}

	if err := p.Release("a1", true); err != nil {
		t.Fatalf("Release: %v", err)
	}
	agent, _ := p.Agent("a1")
	if !agent.Available || agent.TaskID != "" || agent.TasksCompleted != 1 {
		t.Errorf("released agent = %+v", agent)
	}

	if err := p.Assign("a1", "t2"); err != nil {
		t.Fatalf("Assign after release: %v", err)
	}
	if err := p.Release("a1", false); err != nil {
		t.Fatal(err)
	}
	agent, _ = p.Agent("a1")
	if agent.TasksFailed != 1 {
		t.Errorf("TasksFailed = %d, want 1", agent.TasksFailed)
	}

	if err := p.Release("ghost", true); !errors.Is(err, ErrUnknownAgent) {
		t.Errorf("Release(ghost) error = %v, want ErrUnknownAgent", err)
	}
}
