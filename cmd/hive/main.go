// Command hive runs a task manifest across a pool of agent subprocesses.
//
// Usage:
//
//	hive [flags] manifest.json
//
// By default a live dashboard is shown; -headless runs with log output only.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hivekit/hive/internal/config"
	"github.com/hivekit/hive/internal/events"
	"github.com/hivekit/hive/internal/executor"
	"github.com/hivekit/hive/internal/invoke"
	"github.com/hivekit/hive/internal/manifest"
	"github.com/hivekit/hive/internal/persistence"
	"github.com/hivekit/hive/internal/pool"
	"github.com/hivekit/hive/internal/quality"
	"github.com/hivekit/hive/internal/scheduler"
	"github.com/hivekit/hive/internal/tui"
)

func main() {
	headless := flag.Bool("headless", false, "run without the dashboard")
	storePath := flag.String("store", "", "SQLite database path (overrides config)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] manifest.json\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	os.Exit(run(flag.Arg(0), *headless, *storePath))
}

func run(manifestPath string, headless bool, storeOverride string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}

	m, err := manifest.LoadFile(manifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	graph, err := m.Graph()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid manifest: %v\n", err)
		return 1
	}
	queue := scheduler.NewQueue(graph)

	agents, commands, err := buildPool(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	pm := invoke.NewProcessManager()
	defer func() {
		if err := pm.KillAll(); err != nil {
			log.Printf("Killing subprocesses: %v", err)
		}
	}()

	var invoker invoke.Invoker = invoke.NewCommandInvoker(commands, pm)
	if cfg.Retry.Enabled {
		rc := invoke.DefaultRetryConfig()
		if cfg.Retry.MaxElapsedSecs > 0 {
			rc.MaxElapsedTime = time.Duration(cfg.Retry.MaxElapsedSecs) * time.Second
		}
		if cfg.Retry.Multiplier > 0 {
			rc.Multiplier = cfg.Retry.Multiplier
		}
		invoker = invoke.NewRetryInvoker(invoker, rc)
	}

	monitor := quality.NewMonitor(quality.Config{
		MaxIterations:  cfg.Executor.MaxIterations,
		MinImprovement: cfg.Executor.MinImprovement,
		Window:         cfg.Executor.LoopWindow,
	})

	bus := events.NewBus()
	defer bus.Close()

	if storeOverride != "" {
		cfg.StorePath = storeOverride
	}
	if cfg.StorePath != "" {
		store, err := persistence.NewSQLiteStore(ctx, cfg.StorePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
			return 1
		}
		defer store.Close()

		recorder := persistence.NewRecorder(store, queue, agents)
		if err := recorder.SaveAll(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error persisting manifest: %v\n", err)
			return 1
		}
		go recorder.Run(ctx, bus.SubscribeAll(256))
	}

	exec := executor.New(queue, agents, invoker, monitor, bus, executor.Config{
		MaxParallel: cfg.Executor.MaxParallel,
	})

	if headless {
		return runHeadless(ctx, exec)
	}
	return runDashboard(ctx, stop, exec, bus, pm)
}

// buildPool registers agents from config in name order so registration
// order, and LRU tie-breaking, is deterministic.
func buildPool(cfg *config.HiveConfig) (*pool.Pool, map[string]invoke.AgentCommand, error) {
	names := make([]string, 0, len(cfg.Agents))
	for name := range cfg.Agents {
		names = append(names, name)
	}
	sort.Strings(names)

	agents := pool.New()
	commands := make(map[string]invoke.AgentCommand, len(names))
	for _, name := range names {
		ac := cfg.Agents[name]
		if err := agents.Register(pool.Agent{ID: name, Capabilities: ac.Capabilities}); err != nil {
			return nil, nil, fmt.Errorf("registering agent %s: %w", name, err)
		}

		args := append([]string(nil), ac.Args...)
		if ac.Model != "" {
			args = append(args, "--model", ac.Model)
		}
		commands[name] = invoke.AgentCommand{
			Command: ac.Command,
			Args:    args,
			WorkDir: ac.WorkDir,
		}
	}
	return agents, commands, nil
}

func runHeadless(ctx context.Context, exec *executor.Executor) int {
	report, err := exec.Run(ctx)
	fmt.Print(report.String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runDashboard(ctx context.Context, stop context.CancelFunc, exec *executor.Executor, bus *events.Bus, pm *invoke.ProcessManager) int {
	p := tea.NewProgram(tui.New(bus), tea.WithAltScreen(), tea.WithContext(ctx))

	tuiErr := make(chan error, 1)
	go func() {
		_, err := p.Run()
		tuiErr <- err
	}()

	type runResult struct {
		report executor.Report
		err    error
	}
	runDone := make(chan runResult, 1)
	go func() {
		report, err := exec.Run(ctx)
		runDone <- runResult{report, err}
	}()

	var result runResult
	haveResult := false

	for {
		select {
		case res := <-runDone:
			result = res
			haveResult = true
			runDone = nil // keep selecting on the TUI

		case err := <-tuiErr:
			// User quit or the context ended the program.
			if !haveResult {
				// Restore default signal handling so a second Ctrl+C
				// force-exits, then wait briefly for the run to unwind.
				stop()
				if killErr := pm.KillAll(); killErr != nil {
					log.Printf("Killing subprocesses: %v", killErr)
				}
				select {
				case result = <-runDone:
					haveResult = true
				case <-time.After(10 * time.Second):
					log.Println("Shutdown timeout exceeded, forcing exit")
				}
			}

			if haveResult {
				fmt.Print(result.report.String())
			}
			if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return 1
			}
			if haveResult && result.err != nil && !errors.Is(result.err, context.Canceled) {
				fmt.Fprintf(os.Stderr, "Error: %v\n", result.err)
				return 1
			}
			return 0
		}
	}
}
