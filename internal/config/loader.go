package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config,
// defaults. Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*HiveConfig, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.hive/config.json
// Project: .hive/config.json (relative to cwd)
func LoadDefault() (*HiveConfig, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".hive", "config.json")
	projectPath := filepath.Join(".hive", "config.json")

	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and merges it into the base
// config. Missing files are silently skipped.
func mergeConfigFile(base *HiveConfig, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Missing file is not an error
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded HiveConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	// Merge agents by key; a loaded agent replaces the base entry whole.
	for key, agent := range loaded.Agents {
		base.Agents[key] = agent
	}

	// Executor fields merge individually so a file can set just one knob.
	if loaded.Executor.MaxParallel != 0 {
		base.Executor.MaxParallel = loaded.Executor.MaxParallel
	}
	if loaded.Executor.MaxIterations != 0 {
		base.Executor.MaxIterations = loaded.Executor.MaxIterations
	}
	if loaded.Executor.MinImprovement != 0 {
		base.Executor.MinImprovement = loaded.Executor.MinImprovement
	}
	if loaded.Executor.LoopWindow != 0 {
		base.Executor.LoopWindow = loaded.Executor.LoopWindow
	}

	if loaded.Retry.Enabled {
		base.Retry.Enabled = true
	}
	if loaded.Retry.MaxElapsedSecs != 0 {
		base.Retry.MaxElapsedSecs = loaded.Retry.MaxElapsedSecs
	}
	if loaded.Retry.Multiplier != 0 {
		base.Retry.Multiplier = loaded.Retry.Multiplier
	}

	if loaded.StorePath != "" {
		base.StorePath = loaded.StorePath
	}

	return nil
}

// Validate checks the merged configuration for values the executor cannot
// run with.
func (c *HiveConfig) Validate() error {
	if c.Executor.MaxParallel < 0 {
		return fmt.Errorf("executor.max_parallel must not be negative, got %d", c.Executor.MaxParallel)
	}
	if c.Executor.MaxIterations < 0 {
		return fmt.Errorf("executor.max_iterations must not be negative, got %d", c.Executor.MaxIterations)
	}
	if c.Executor.MinImprovement < 0 || c.Executor.MinImprovement >= 1 {
		return fmt.Errorf("executor.min_improvement must be in [0,1), got %g", c.Executor.MinImprovement)
	}
	for name, agent := range c.Agents {
		if agent.Command == "" {
			return fmt.Errorf("agent %q has no command", name)
		}
	}
	return nil
}
