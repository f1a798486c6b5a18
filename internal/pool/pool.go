// Package pool maintains the registry of agents and selects the best-fit
// agent for a task based on capability tag overlap.
package pool

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrAlreadyBusy indicates an assignment was attempted on a busy agent.
	// The executor only assigns immediately after BestFit, so seeing this is
	// an invariant violation, not a recoverable condition.
	ErrAlreadyBusy = errors.New("agent already busy")

	// ErrDuplicateAgent indicates an agent ID was registered twice.
	ErrDuplicateAgent = errors.New("duplicate agent id")

	// ErrUnknownAgent indicates an operation referenced an unregistered agent.
	ErrUnknownAgent = errors.New("unknown agent")
)

// Agent describes a worker: its identity, what it can do, and whether it is
// currently free. Agents are registered once and never destroyed mid-run.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string `json:"id"`
	// Capabilities lists the capability tags this agent carries.
	Capabilities []string `json:"capabilities,omitempty"`
	// Available reports whether the agent can take a task.
	Available bool `json:"available"`
	// TaskID is the task currently assigned, empty when available.
	TaskID string `json:"task_id,omitempty"`
	// TasksCompleted counts successful task outcomes.
	TasksCompleted int `json:"tasks_completed"`
	// TasksFailed counts failed task outcomes.
	TasksFailed int `json:"tasks_failed"`

	// lastUsed is a logical clock value bumped on release, used to spread
	// load to the least-recently-used agent on score ties.
	lastUsed int64
}

// Status summarizes the pool.
type Status struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Busy      int `json:"busy"`
}

// Pool is a thread-safe registry of agents.
type Pool struct {
	mu     sync.Mutex
	agents map[string]*Agent
	order  []string // registration order, for deterministic selection
	clock  int64
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{agents: make(map[string]*Agent)}
}

// Register adds an agent to the pool. Agents start available.
func (p *Pool) Register(agent Agent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if agent.ID == "" {
		return fmt.Errorf("%w: empty id", ErrUnknownAgent)
	}
	if _, exists := p.agents[agent.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateAgent, agent.ID)
	}

	agent.Available = true
	agent.TaskID = ""
	p.agents[agent.ID] = &agent
	p.order = append(p.order, agent.ID)
	return nil
}

// BestFit returns the available agent whose capability tags have the highest
// overlap with the required tags. Ties go to the least-recently-used agent.
// When requires is non-empty, only agents sharing at least one tag qualify;
// a task with no required tags can be taken by any available agent. The
// second return value is false when no available agent qualifies; that is
// "not schedulable right now", never an error.
func (p *Pool) BestFit(requires []string) (Agent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var best *Agent
	bestScore := -1
	for _, id := range p.order {
		agent := p.agents[id]
		if !agent.Available {
			continue
		}

		score := overlap(agent.Capabilities, requires)
		if len(requires) > 0 && score == 0 {
			continue
		}
		if score > bestScore || (score == bestScore && best != nil && agent.lastUsed < best.lastUsed) {
			best = agent
			bestScore = score
		}
	}

	if best == nil {
		return Agent{}, false
	}
	return *best, true
}

// Assign marks an agent busy with the given task. Fails with ErrAlreadyBusy
// if the agent is not available.
func (p *Pool) Assign(agentID, taskID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	agent, exists := p.agents[agentID]
	if !exists {
		return fmt.Errorf("%w: %q", ErrUnknownAgent, agentID)
	}
	if !agent.Available {
		return fmt.Errorf("%w: %q (on task %q)", ErrAlreadyBusy, agentID, agent.TaskID)
	}

	agent.Available = false
	agent.TaskID = taskID
	return nil
}

// Release frees an agent after its task resolves, records the outcome, and
// updates the recency clock used for tie-breaking.
func (p *Pool) Release(agentID string, succeeded bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	agent, exists := p.agents[agentID]
	if !exists {
		return fmt.Errorf("%w: %q", ErrUnknownAgent, agentID)
	}

	agent.Available = true
	agent.TaskID = ""
	if succeeded {
		agent.TasksCompleted++
	} else {
		agent.TasksFailed++
	}
	p.clock++
	agent.lastUsed = p.clock
	return nil
}

// Agent returns a copy of the agent with the given ID.
func (p *Pool) Agent(agentID string) (Agent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	agent, exists := p.agents[agentID]
	if !exists {
		return Agent{}, false
	}
	return *agent, true
}

// Agents returns copies of all agents in registration order.
func (p *Pool) Agents() []Agent {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Agent, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, *p.agents[id])
	}
	return out
}

// Status returns pool-level counts.
func (p *Pool) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := Status{Total: len(p.agents)}
	for _, agent := range p.agents {
		if agent.Available {
			status.Available++
		} else {
			status.Busy++
		}
	}
	return status
}

// overlap counts how many required tags the agent's capabilities cover.
func overlap(capabilities, requires []string) int {
	if len(capabilities) == 0 || len(requires) == 0 {
		return 0
	}
	have := make(map[string]bool, len(capabilities))
	for _, tag := range capabilities {
		have[tag] = true
	}
	count := 0
	for _, tag := range requires {
		if have[tag] {
			count++
		}
	}
	return count
}
