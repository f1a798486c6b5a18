package config

// AgentConfig defines one agent: the command that runs it and the
// capability tags it advertises to the scheduler.
type AgentConfig struct {
	Command      string   `json:"command"`                // CLI binary name (e.g., "claude", "codex")
	Args         []string `json:"args,omitempty"`         // Default args prepended to every invocation
	Model        string   `json:"model,omitempty"`        // Model override passed to the command
	WorkDir      string   `json:"workdir,omitempty"`      // Working directory, "" for inherited
	Capabilities []string `json:"capabilities,omitempty"` // Tags matched against task requirements
}

// ExecutorConfig holds the scheduling loop tunables.
type ExecutorConfig struct {
	MaxParallel    int     `json:"max_parallel"`    // Concurrent task cap per iteration
	MaxIterations  int     `json:"max_iterations"`  // Hard iteration ceiling, 0 for unlimited
	MinImprovement float64 `json:"min_improvement"` // Minimum coverage gain per window step
	LoopWindow     int     `json:"loop_window"`     // Trailing iterations inspected for stagnation
}

// RetryConfig holds the optional retry layer knobs. Retries are off unless
// Enabled is set; the scheduler itself never re-runs a task.
type RetryConfig struct {
	Enabled        bool    `json:"enabled"`
	MaxElapsedSecs int     `json:"max_elapsed_secs,omitempty"`
	Multiplier     float64 `json:"multiplier,omitempty"`
}

// HiveConfig is the top-level configuration.
type HiveConfig struct {
	Executor  ExecutorConfig         `json:"executor"`
	Agents    map[string]AgentConfig `json:"agents"`
	Retry     RetryConfig            `json:"retry"`
	StorePath string                 `json:"store_path,omitempty"` // SQLite file, "" to disable persistence
}
