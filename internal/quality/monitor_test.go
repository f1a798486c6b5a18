package quality

import "testing"

func TestShouldContinue(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		records    []IterationRecord
		iteration  int
		wantOK     bool
		wantReason string
	}{
		{
			name:       "no history continues",
			cfg:        Config{MaxIterations: 10, MinImprovement: 0.05, Window: 3},
			iteration:  1,
			wantOK:     true,
			wantReason: ReasonProgressing,
		},
		{
			name: "short history continues",
			cfg:  Config{MaxIterations: 10, MinImprovement: 0.05, Window: 3},
			records: []IterationRecord{
				{Iteration: 1, Coverage: 0.10, Fingerprint: "fp1"},
				{Iteration: 2, Coverage: 0.10, Fingerprint: "fp1"},
			},
			iteration:  2,
			wantOK:     true,
			wantReason: ReasonProgressing,
		},
		{
			name: "identical fingerprints across window stop the run",
			cfg:  Config{MaxIterations: 10, MinImprovement: 0.05, Window: 3},
			records: []IterationRecord{
				{Iteration: 1, Coverage: 0.10, Fingerprint: "abc"},
				{Iteration: 2, Coverage: 0.20, Fingerprint: "abc"},
				{Iteration: 3, Coverage: 0.30, Fingerprint: "abc"},
			},
			iteration:  3,
			wantOK:     false,
			wantReason: ReasonStalledOutput,
		},
		{
			name: "flat coverage stops the run",
			cfg:  Config{MaxIterations: 10, MinImprovement: 0.05, Window: 3},
			records: []IterationRecord{
				{Iteration: 1, Coverage: 0.50, CoverageReported: true, Fingerprint: "fp1"},
				{Iteration: 2, Coverage: 0.51, CoverageReported: true, Fingerprint: "fp2"},
				{Iteration: 3, Coverage: 0.51, CoverageReported: true, Fingerprint: "fp3"},
			},
			iteration:  3,
			wantOK:     false,
			wantReason: ReasonNoImprovement,
		},
		{
			name: "improving coverage continues",
			cfg:  Config{MaxIterations: 10, MinImprovement: 0.05, Window: 3},
			records: []IterationRecord{
				{Iteration: 1, Coverage: 0.10, CoverageReported: true, Fingerprint: "fp1"},
				{Iteration: 2, Coverage: 0.20, CoverageReported: true, Fingerprint: "fp2"},
				{Iteration: 3, Coverage: 0.30, CoverageReported: true, Fingerprint: "fp3"},
			},
			iteration:  3,
			wantOK:     true,
			wantReason: ReasonProgressing,
		},
		{
			name: "unreported coverage never counts as stagnation",
			cfg:  Config{MaxIterations: 10, MinImprovement: 0.01, Window: 3},
			records: []IterationRecord{
				{Iteration: 1, Coverage: 0.30, Fingerprint: "fp1"},
				{Iteration: 2, Coverage: 0.30, Fingerprint: "fp2"},
				{Iteration: 3, Coverage: 0.30, Fingerprint: "fp3"},
				{Iteration: 4, Coverage: 0.30, Fingerprint: "fp4"},
			},
			iteration:  4,
			wantOK:     true,
			wantReason: ReasonProgressing,
		},
		{
			name: "flat reported signal stops despite silent iterations between",
			cfg:  Config{MaxIterations: 10, MinImprovement: 0.05, Window: 3},
			records: []IterationRecord{
				{Iteration: 1, Coverage: 0.50, CoverageReported: true, Fingerprint: "fp1"},
				{Iteration: 2, Coverage: 0.50, Fingerprint: "fp2"},
				{Iteration: 3, Coverage: 0.50, CoverageReported: true, Fingerprint: "fp3"},
				{Iteration: 4, Coverage: 0.50, Fingerprint: "fp4"},
				{Iteration: 5, Coverage: 0.51, CoverageReported: true, Fingerprint: "fp5"},
			},
			iteration:  5,
			wantOK:     false,
			wantReason: ReasonNoImprovement,
		},
		{
			name: "iteration limit beats improvement",
			cfg:  Config{MaxIterations: 5, MinImprovement: 0.01, Window: 3},
			records: []IterationRecord{
				{Iteration: 1, Coverage: 0.10, CoverageReported: true, Fingerprint: "fp1"},
				{Iteration: 2, Coverage: 0.20, CoverageReported: true, Fingerprint: "fp2"},
				{Iteration: 3, Coverage: 0.30, CoverageReported: true, Fingerprint: "fp3"},
				{Iteration: 4, Coverage: 0.40, CoverageReported: true, Fingerprint: "fp4"},
				{Iteration: 5, Coverage: 0.50, CoverageReported: true, Fingerprint: "fp5"},
			},
			iteration:  5,
			wantOK:     false,
			wantReason: ReasonIterationLimit,
		},
		{
			name: "empty fingerprints never count as stalled",
			cfg:  Config{MaxIterations: 10, MinImprovement: 0.01, Window: 3},
			records: []IterationRecord{
				{Iteration: 1, Coverage: 0.10, CoverageReported: true},
				{Iteration: 2, Coverage: 0.20, CoverageReported: true},
				{Iteration: 3, Coverage: 0.30, CoverageReported: true},
			},
			iteration:  3,
			wantOK:     true,
			wantReason: ReasonProgressing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(tt.cfg)
			for _, rec := range tt.records {
				m.RecordIteration(rec)
			}

			ok, reason := m.ShouldContinue(tt.iteration)
			if ok != tt.wantOK || reason != tt.wantReason {
				t.Errorf("ShouldContinue(%d) = (%v, %q), want (%v, %q)",
					tt.iteration, ok, reason, tt.wantOK, tt.wantReason)
			}
		})
	}
}

// TestShouldContinueDeterministic verifies the verdict is a pure function of
// the recorded history.
func TestShouldContinueDeterministic(t *testing.T) {
	m := NewMonitor(Config{MaxIterations: 10, MinImprovement: 0.05, Window: 3})
	for i := 1; i <= 3; i++ {
		m.RecordIteration(IterationRecord{Iteration: i, Coverage: 0.5, CoverageReported: true, Fingerprint: "same"})
	}

	ok1, r1 := m.ShouldContinue(3)
	ok2, r2 := m.ShouldContinue(3)
	if ok1 != ok2 || r1 != r2 {
		t.Errorf("verdict changed between calls: (%v,%q) vs (%v,%q)", ok1, r1, ok2, r2)
	}
}

func TestTrend(t *testing.T) {
	tests := []struct {
		name     string
		coverage []float64
		want     string
	}{
		{"insufficient", []float64{0.5}, TrendInsufficient},
		{"improving", []float64{0.1, 0.2, 0.3}, TrendImproving},
		{"declining", []float64{0.3, 0.2, 0.1}, TrendDeclining},
		{"stable", []float64{0.2, 0.3, 0.2}, TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(Config{Window: 3})
			for i, c := range tt.coverage {
				m.RecordIteration(IterationRecord{Iteration: i + 1, Coverage: c, CoverageReported: true})
			}
			if got := m.Trend(); got != tt.want {
				t.Errorf("Trend() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	m := NewMonitor(Config{Window: 3})
	m.RecordIteration(IterationRecord{Iteration: 1, Coverage: 0.2, CoverageReported: true, QualityScore: 0.5, TasksCompleted: 2})
	m.RecordIteration(IterationRecord{Iteration: 2, Coverage: 0.4, CoverageReported: true, QualityScore: 0.7, TasksCompleted: 3})

	got := m.Metrics()
	if got.Iterations != 2 || got.Coverage != 0.4 || got.QualityScore != 0.7 || got.TasksCompleted != 5 {
		t.Errorf("Metrics() = %+v", got)
	}
	if got.Trend != TrendImproving {
		t.Errorf("Metrics().Trend = %q, want %q", got.Trend, TrendImproving)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint(map[string]string{"t1": "out1", "t2": "out2"})
	b := Fingerprint(map[string]string{"t2": "out2", "t1": "out1"})
	if a == "" || a != b {
		t.Errorf("fingerprints of identical output sets differ: %q vs %q", a, b)
	}

	c := Fingerprint(map[string]string{"t1": "out1", "t2": "changed"})
	if c == a {
		t.Error("fingerprint unchanged after output change")
	}

	if Fingerprint(nil) != "" {
		t.Error("empty output set should have empty fingerprint")
	}
}
