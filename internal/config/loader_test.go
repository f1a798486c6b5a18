package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, name string, cfg *HiveConfig) string {
	t.Helper()
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshaling config: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name          string
		globalConfig  *HiveConfig
		projectConfig *HiveConfig
		expectAgents  int
		checkAgent    string
		expectCommand string
		checkParallel int
	}{
		{
			name:          "No config files - returns defaults",
			expectAgents:  3,
			checkParallel: 4,
		},
		{
			name: "Global only - adds new agent",
			globalConfig: &HiveConfig{
				Agents: map[string]AgentConfig{
					"doc-writer": {Command: "goose", Capabilities: []string{"docs"}},
				},
			},
			expectAgents:  4, // 3 defaults + 1 new
			checkAgent:    "doc-writer",
			expectCommand: "goose",
			checkParallel: 4,
		},
		{
			name: "Project only - overrides agent command",
			projectConfig: &HiveConfig{
				Agents: map[string]AgentConfig{
					"coder": {Command: "codex", Capabilities: []string{"coding"}},
				},
			},
			expectAgents:  3, // Same count, but coder modified
			checkAgent:    "coder",
			expectCommand: "codex",
			checkParallel: 4,
		},
		{
			name: "Project overrides global - project wins",
			globalConfig: &HiveConfig{
				Executor: ExecutorConfig{MaxParallel: 8},
				Agents: map[string]AgentConfig{
					"coder": {Command: "claude"},
				},
			},
			projectConfig: &HiveConfig{
				Executor: ExecutorConfig{MaxParallel: 2},
				Agents: map[string]AgentConfig{
					"coder": {Command: "codex"},
				},
			},
			expectAgents:  3,
			checkAgent:    "coder",
			expectCommand: "codex",
			checkParallel: 2,
		},
		{
			name: "Executor knobs merge individually",
			globalConfig: &HiveConfig{
				Executor: ExecutorConfig{MaxIterations: 50},
			},
			expectAgents:  3,
			checkParallel: 4, // Untouched knob keeps its default
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()

			globalPath := ""
			if tt.globalConfig != nil {
				globalPath = writeConfig(t, tmpDir, "global.json", tt.globalConfig)
			}
			projectPath := ""
			if tt.projectConfig != nil {
				projectPath = writeConfig(t, tmpDir, "project.json", tt.projectConfig)
			}

			cfg, err := Load(globalPath, projectPath)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got := len(cfg.Agents); got != tt.expectAgents {
				t.Errorf("agents count = %d, want %d", got, tt.expectAgents)
			}
			if cfg.Executor.MaxParallel != tt.checkParallel {
				t.Errorf("max_parallel = %d, want %d", cfg.Executor.MaxParallel, tt.checkParallel)
			}

			if tt.checkAgent != "" {
				agent, exists := cfg.Agents[tt.checkAgent]
				if !exists {
					t.Fatalf("expected agent %q not found", tt.checkAgent)
				}
				if agent.Command != tt.expectCommand {
					t.Errorf("agent %q command = %q, want %q", tt.checkAgent, agent.Command, tt.expectCommand)
				}
			}
		})
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	tmpDir := t.TempDir()

	globalPath := filepath.Join(tmpDir, "global.json")
	if err := os.WriteFile(globalPath, []byte("{invalid json"), 0644); err != nil {
		t.Fatalf("writing malformed config: %v", err)
	}

	if _, err := Load(globalPath, ""); err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

func TestLoad_MissingFilesNotError(t *testing.T) {
	cfg, err := Load("/nonexistent/global.json", "/nonexistent/project.json")
	if err != nil {
		t.Fatalf("expected no error for missing files, got: %v", err)
	}
	if len(cfg.Agents) != 3 {
		t.Errorf("agents count = %d, want 3", len(cfg.Agents))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*HiveConfig)
		wantErr bool
	}{
		{"defaults are valid", func(c *HiveConfig) {}, false},
		{"negative max_parallel", func(c *HiveConfig) { c.Executor.MaxParallel = -1 }, true},
		{"min_improvement out of range", func(c *HiveConfig) { c.Executor.MinImprovement = 1.5 }, true},
		{"agent without command", func(c *HiveConfig) { c.Agents["x"] = AgentConfig{} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
