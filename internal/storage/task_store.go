package storage

import (
	"database/sql"
	"fmt"
)

// CreateTask inserts a new task record.
func (d *DB) CreateTask(t *Task) error {
	_, err := d.db.Exec(
		`INSERT INTO tasks (id, requester_id, claimer_id, status, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.RequesterID, t.ClaimerID, t.Status, t.CreatedAt, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (d *DB) GetTask(id string) (*Task, error) {
	t := &Task{}
	var claimer sql.NullString
	err := d.db.QueryRow(
		`SELECT id, requester_id, claimer_id, status, created_at, completed_at
		 FROM tasks WHERE id = ?`, id,
	).Scan(&t.ID, &t.RequesterID, &claimer, &t.Status, &t.CreatedAt, &t.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	t.ClaimerID = claimer.String
	return t, nil
}

// ClaimTask assigns a claimer and moves the task to claimed.
func (d *DB) ClaimTask(id, claimerID string) error {
	res, err := d.db.Exec(
		`UPDATE tasks SET claimer_id = ?, status = ? WHERE id = ? AND status = ?`,
		claimerID, TaskClaimed, id, TaskOpen,
	)
	if err != nil {
		return fmt.Errorf("claim task: %w", err)
	}
	return requireRow(res, "claim task")
}

// FinishTask moves a claimed task to a terminal status.
func (d *DB) FinishTask(id, status string, at int64) error {
	res, err := d.db.Exec(
		`UPDATE tasks SET status = ?, completed_at = ? WHERE id = ? AND status = ?`,
		status, at, id, TaskClaimed,
	)
	if err != nil {
		return fmt.Errorf("finish task: %w", err)
	}
	return requireRow(res, "finish task")
}
