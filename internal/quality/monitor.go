// Package quality decides whether continued iteration is worthwhile, based
// on coverage/quality trend and output-repetition detection.
package quality

import (
	"fmt"
	"sync"

	"github.com/mitchellh/hashstructure/v2"
)

// Termination reasons returned by ShouldContinue. These are deliberate,
// reported outcomes, not errors.
const (
	ReasonIterationLimit = "iteration_limit"
	ReasonNoImprovement  = "no_improvement"
	ReasonStalledOutput  = "stalled_duplicate_output"
	ReasonProgressing    = "progressing"
)

// DefaultWindow is the default number of trailing iterations inspected for
// improvement and loop detection.
const DefaultWindow = 3

// IterationRecord captures the outcome of one scheduling iteration.
// Records are append-only and never mutated.
type IterationRecord struct {
	// Iteration is the 1-based iteration number.
	Iteration int `json:"iteration"`
	// Coverage is the coverage signal reported for this iteration. Only
	// meaningful when CoverageReported is set.
	Coverage float64 `json:"coverage"`
	// CoverageReported marks whether any task actually reported coverage
	// this iteration. Iterations without a real signal never count toward
	// the no-improvement verdict.
	CoverageReported bool `json:"coverage_reported"`
	// QualityScore is the quality signal reported for this iteration.
	QualityScore float64 `json:"quality_score"`
	// TasksCompleted counts tasks completed during this iteration.
	TasksCompleted int `json:"tasks_completed"`
	// Fingerprint is a content hash of the outputs produced this iteration.
	Fingerprint string `json:"fingerprint"`
}

// Config holds the monitor's policy knobs.
type Config struct {
	// MaxIterations forces termination once reached, regardless of trend.
	MaxIterations int
	// MinImprovement is the minimum coverage gain per step within the window.
	MinImprovement float64
	// Window is the number of trailing records inspected (k).
	Window int
}

// Monitor records iteration outcomes and applies the stop policy. The
// verdict is a pure function of the recorded history, so it is deterministic
// and independently testable.
type Monitor struct {
	mu      sync.Mutex
	cfg     Config
	records []IterationRecord
}

// NewMonitor creates a monitor with the given policy. A non-positive window
// falls back to DefaultWindow.
func NewMonitor(cfg Config) *Monitor {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Monitor{cfg: cfg}
}

// RecordIteration appends an iteration record.
func (m *Monitor) RecordIteration(rec IterationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
}

// Records returns a copy of the recorded history.
func (m *Monitor) Records() []IterationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]IterationRecord(nil), m.records...)
}

// ShouldContinue reports whether execution should proceed past the given
// iteration, with a reason. The iteration limit is checked first: it applies
// even when every signal is improving.
func (m *Monitor) ShouldContinue(currentIteration int) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxIterations > 0 && currentIteration >= m.cfg.MaxIterations {
		return false, ReasonIterationLimit
	}

	k := m.cfg.Window
	if len(m.records) >= k {
		if stalled(m.records[len(m.records)-k:]) {
			return false, ReasonStalledOutput
		}
	}

	// The no-improvement rule only inspects iterations that carried a real
	// coverage signal; silent iterations are not evidence of stagnation.
	reported := m.coverageHistoryLocked()
	if len(reported) >= k {
		tail := reported[len(reported)-k:]
		improved := false
		for i := 1; i < len(tail); i++ {
			if tail[i]-tail[i-1] >= m.cfg.MinImprovement {
				improved = true
				break
			}
		}
		if !improved {
			return false, ReasonNoImprovement
		}
	}

	return true, ReasonProgressing
}

// coverageHistoryLocked returns the coverage values of iterations that
// reported one, in iteration order. Caller must hold the lock.
func (m *Monitor) coverageHistoryLocked() []float64 {
	var history []float64
	for _, rec := range m.records {
		if rec.CoverageReported {
			history = append(history, rec.Coverage)
		}
	}
	return history
}

// stalled reports whether every record in the window carries the same
// non-empty fingerprint.
func stalled(tail []IterationRecord) bool {
	first := tail[0].Fingerprint
	if first == "" {
		return false
	}
	for _, rec := range tail[1:] {
		if rec.Fingerprint != first {
			return false
		}
	}
	return true
}

// Trend classifications returned by Trend.
const (
	TrendImproving    = "improving"
	TrendDeclining    = "declining"
	TrendStable       = "stable"
	TrendInsufficient = "insufficient_data"
)

// Trend classifies the coverage direction over the trailing window of
// iterations that reported coverage.
func (m *Monitor) Trend() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	tail := m.coverageHistoryLocked()
	if len(tail) < 2 {
		return TrendInsufficient
	}
	if len(tail) > m.cfg.Window {
		tail = tail[len(tail)-m.cfg.Window:]
	}

	rising, falling := true, true
	for i := 1; i < len(tail); i++ {
		if tail[i] <= tail[i-1] {
			rising = false
		}
		if tail[i] >= tail[i-1] {
			falling = false
		}
	}
	switch {
	case rising:
		return TrendImproving
	case falling:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// Metrics summarizes the recorded history.
type Metrics struct {
	Iterations     int     `json:"iterations"`
	Coverage       float64 `json:"coverage"`
	QualityScore   float64 `json:"quality_score"`
	TasksCompleted int     `json:"tasks_completed"`
	Trend          string  `json:"trend"`
}

// Metrics returns the latest signals plus totals over all iterations.
func (m *Monitor) Metrics() Metrics {
	trend := m.Trend()

	m.mu.Lock()
	defer m.mu.Unlock()

	out := Metrics{Trend: trend, Iterations: len(m.records)}
	if len(m.records) == 0 {
		return out
	}
	latest := m.records[len(m.records)-1]
	out.QualityScore = latest.QualityScore
	for _, rec := range m.records {
		out.TasksCompleted += rec.TasksCompleted
		if rec.CoverageReported {
			out.Coverage = rec.Coverage
		}
	}
	return out
}

// Fingerprint computes a stable content hash of the outputs produced in one
// iteration, keyed by task ID. Identical output sets yield identical
// fingerprints regardless of map iteration order.
func Fingerprint(outputs map[string]string) string {
	if len(outputs) == 0 {
		return ""
	}
	h, err := hashstructure.Hash(outputs, hashstructure.FormatV2, nil)
	if err != nil {
		// Hashing a map[string]string cannot fail in practice; keep the
		// monitor usable if it ever does.
		return fmt.Sprintf("len:%d", len(outputs))
	}
	return fmt.Sprintf("%016x", h)
}
