package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hivekit/hive/internal/scheduler"
)

// SaveTask saves or updates a task and its dependencies.
// Uses ON CONFLICT to make saves idempotent.
func (s *SQLiteStore) SaveTask(ctx context.Context, task *scheduler.Task) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	requires := strings.Join(task.Requires, ",")

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, description, type, requires, status, agent_id, result, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			type = excluded.type,
			requires = excluded.requires,
			status = excluded.status,
			agent_id = excluded.agent_id,
			result = excluded.result,
			error = excluded.error,
			updated_at = CURRENT_TIMESTAMP
	`, task.ID, task.Description, task.Type, requires, string(task.Status), task.AgentID, task.Result, task.Error)
	if err != nil {
		return fmt.Errorf("upserting task: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM task_dependencies WHERE task_id = ?`, task.ID)
	if err != nil {
		return fmt.Errorf("deleting old dependencies: %w", err)
	}

	for _, depID := range task.DependsOn {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_dependencies (task_id, depends_on_id)
			VALUES (?, ?)
		`, task.ID, depID)
		if err != nil {
			return fmt.Errorf("inserting dependency %s -> %s: %w", task.ID, depID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// GetTask retrieves a task by ID, including its dependencies.
func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*scheduler.Task, error) {
	task := &scheduler.Task{}
	var status, requires string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, description, type, requires, status, agent_id, result, error
		FROM tasks
		WHERE id = ?
	`, taskID).Scan(&task.ID, &task.Description, &task.Type, &requires, &status, &task.AgentID, &task.Result, &task.Error)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task not found: %s", taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying task: %w", err)
	}

	task.Status = scheduler.Status(status)
	if requires != "" {
		task.Requires = strings.Split(requires, ",")
	}

	deps, err := s.taskDependencies(ctx, taskID)
	if err != nil {
		return nil, err
	}
	task.DependsOn = deps

	return task, nil
}

// ListTasks returns all tasks with their dependencies, in insertion order.
func (s *SQLiteStore) ListTasks(ctx context.Context) ([]*scheduler.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, type, requires, status, agent_id, result, error
		FROM tasks
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*scheduler.Task
	for rows.Next() {
		task := &scheduler.Task{}
		var status, requires string

		err := rows.Scan(&task.ID, &task.Description, &task.Type, &requires, &status, &task.AgentID, &task.Result, &task.Error)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}

		task.Status = scheduler.Status(status)
		if requires != "" {
			task.Requires = strings.Split(requires, ",")
		}

		deps, err := s.taskDependencies(ctx, task.ID)
		if err != nil {
			return nil, err
		}
		task.DependsOn = deps

		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}

	return tasks, nil
}

func (s *SQLiteStore) taskDependencies(ctx context.Context, taskID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT depends_on_id
		FROM task_dependencies
		WHERE task_id = ?
		ORDER BY depends_on_id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("querying dependencies for task %s: %w", taskID, err)
	}
	defer rows.Close()

	var deps []string
	for rows.Next() {
		var depID string
		if err := rows.Scan(&depID); err != nil {
			return nil, fmt.Errorf("scanning dependency: %w", err)
		}
		deps = append(deps, depID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dependencies: %w", err)
	}
	return deps, nil
}
