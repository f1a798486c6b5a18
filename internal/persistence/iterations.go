package persistence

import (
	"context"
	"fmt"

	"github.com/hivekit/hive/internal/quality"
)

// SaveIteration stores one iteration record. Saving the same iteration
// twice overwrites the earlier row.
func (s *SQLiteStore) SaveIteration(ctx context.Context, rec quality.IterationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO iterations (iteration, coverage, coverage_reported, quality_score, tasks_completed, fingerprint)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(iteration) DO UPDATE SET
			coverage = excluded.coverage,
			coverage_reported = excluded.coverage_reported,
			quality_score = excluded.quality_score,
			tasks_completed = excluded.tasks_completed,
			fingerprint = excluded.fingerprint
	`, rec.Iteration, rec.Coverage, rec.CoverageReported, rec.QualityScore, rec.TasksCompleted, rec.Fingerprint)
	if err != nil {
		return fmt.Errorf("saving iteration %d: %w", rec.Iteration, err)
	}
	return nil
}

// ListIterations returns all iteration records in iteration order.
func (s *SQLiteStore) ListIterations(ctx context.Context) ([]quality.IterationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT iteration, coverage, coverage_reported, quality_score, tasks_completed, fingerprint
		FROM iterations
		ORDER BY iteration
	`)
	if err != nil {
		return nil, fmt.Errorf("querying iterations: %w", err)
	}
	defer rows.Close()

	var records []quality.IterationRecord
	for rows.Next() {
		var rec quality.IterationRecord
		if err := rows.Scan(&rec.Iteration, &rec.Coverage, &rec.CoverageReported, &rec.QualityScore, &rec.TasksCompleted, &rec.Fingerprint); err != nil {
			return nil, fmt.Errorf("scanning iteration: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

// SaveAgentStats upserts one agent's performance counters.
func (s *SQLiteStore) SaveAgentStats(ctx context.Context, stats AgentStats) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_stats (agent_id, tasks_completed, tasks_failed)
		VALUES (?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET
			tasks_completed = excluded.tasks_completed,
			tasks_failed = excluded.tasks_failed,
			updated_at = CURRENT_TIMESTAMP
	`, stats.AgentID, stats.TasksCompleted, stats.TasksFailed)
	if err != nil {
		return fmt.Errorf("saving stats for agent %s: %w", stats.AgentID, err)
	}
	return nil
}

// ListAgentStats returns all persisted agent performance records.
func (s *SQLiteStore) ListAgentStats(ctx context.Context) ([]AgentStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id, tasks_completed, tasks_failed
		FROM agent_stats
		ORDER BY agent_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying agent stats: %w", err)
	}
	defer rows.Close()

	var all []AgentStats
	for rows.Next() {
		var st AgentStats
		if err := rows.Scan(&st.AgentID, &st.TasksCompleted, &st.TasksFailed); err != nil {
			return nil, fmt.Errorf("scanning agent stats: %w", err)
		}
		all = append(all, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating agent stats: %w", err)
	}
	return all, nil
}
