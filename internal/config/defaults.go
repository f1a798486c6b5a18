package config

// DefaultConfig returns the default configuration with built-in agents and
// executor settings.
func DefaultConfig() *HiveConfig {
	return &HiveConfig{
		Executor: ExecutorConfig{
			MaxParallel:    4,
			MaxIterations:  20,
			MinImprovement: 0.01,
			LoopWindow:     3,
		},
		Agents: map[string]AgentConfig{
			"coder": {
				Command:      "claude",
				Capabilities: []string{"coding", "refactoring"},
			},
			"reviewer": {
				Command:      "claude",
				Capabilities: []string{"review", "analysis"},
			},
			"tester": {
				Command:      "claude",
				Capabilities: []string{"testing", "coverage"},
			},
		},
		Retry: RetryConfig{
			Enabled:        false,
			MaxElapsedSecs: 120,
			Multiplier:     2.0,
		},
	}
}
