package invoke

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hivekit/hive/internal/pool"
	"github.com/hivekit/hive/internal/scheduler"
)

// AgentCommand describes how to invoke one agent as a subprocess.
type AgentCommand struct {
	// Command is the binary to run.
	Command string
	// Args are prepended before the task arguments.
	Args []string
	// WorkDir is the working directory for the subprocess, "" for inherited.
	WorkDir string
}

// CommandInvoker executes tasks by running a configured command per agent.
// The task description is passed on stdin; task ID and type are appended as
// arguments. If stdout parses as a JSON Result it is used as-is, otherwise
// the trimmed stdout becomes the result summary.
type CommandInvoker struct {
	commands map[string]AgentCommand // agent ID -> command
	procMgr  *ProcessManager
}

// NewCommandInvoker creates an invoker over per-agent commands. The
// ProcessManager is optional; when nil, subprocesses are not tracked.
func NewCommandInvoker(commands map[string]AgentCommand, pm *ProcessManager) *CommandInvoker {
	return &CommandInvoker{commands: commands, procMgr: pm}
}

// Execute implements Invoker.
func (c *CommandInvoker) Execute(ctx context.Context, task scheduler.Task, agent pool.Agent) (Result, error) {
	spec, ok := c.commands[agent.ID]
	if !ok {
		return Result{}, fmt.Errorf("no command configured for agent %q", agent.ID)
	}

	args := append([]string(nil), spec.Args...)
	args = append(args, task.ID)
	if task.Type != "" {
		args = append(args, task.Type)
	}

	cmd := newCommand(ctx, spec.Command, args...)
	cmd.Dir = spec.WorkDir
	cmd.Stdin = strings.NewReader(task.Description)

	stdout, _, err := runCommand(cmd, c.procMgr)
	if err != nil {
		// Surface cancellation as the context error so callers can tell a
		// cancelled task apart from a failed one.
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, err
	}

	return parseResult(stdout), nil
}

// parseResult interprets agent output: structured JSON when available,
// plain text otherwise.
func parseResult(stdout []byte) Result {
	var res Result
	if err := json.Unmarshal(stdout, &res); err == nil && res.Summary != "" {
		return res
	}
	return Result{Summary: strings.TrimSpace(string(stdout))}
}
