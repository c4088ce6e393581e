package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

const agentColumns = `id, verified, reputation_score, trust_tier,
	tasks_completed, tasks_failed, avg_review_rating, review_count,
	vouch_count, vouched_by_count, registered_at, last_activity_at,
	reputation_updated_at`

// CreateAgent inserts a new agent record.
func (d *DB) CreateAgent(a *Agent) error {
	_, err := d.db.Exec(
		`INSERT INTO agents (`+agentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, boolToInt(a.Verified), a.ReputationScore, a.TrustTier,
		a.TasksCompleted, a.TasksFailed, a.AvgReviewRating, a.ReviewCount,
		a.VouchCount, a.VouchedByCount, a.RegisteredAt, a.LastActivityAt,
		a.ReputationUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

// scanAgent scans one agent row from a row scanner.
func scanAgent(scan func(dest ...any) error) (*Agent, error) {
	a := &Agent{}
	var verified int
	err := scan(&a.ID, &verified, &a.ReputationScore, &a.TrustTier,
		&a.TasksCompleted, &a.TasksFailed, &a.AvgReviewRating, &a.ReviewCount,
		&a.VouchCount, &a.VouchedByCount, &a.RegisteredAt, &a.LastActivityAt,
		&a.ReputationUpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Verified = verified == 1
	return a, nil
}

// GetAgent retrieves an agent by ID.
func (d *DB) GetAgent(id string) (*Agent, error) {
	row := d.db.QueryRow(`SELECT `+agentColumns+` FROM agents WHERE id = ?`, id)
	a, err := scanAgent(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

// ListAgents returns all agents.
func (d *DB) ListAgents() ([]Agent, error) {
	rows, err := d.db.Query(`SELECT ` + agentColumns + ` FROM agents`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		a, err := scanAgent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

// UpdateAgentReputation writes the recomputed score, tier, and recompute
// timestamp in one statement.
func (d *DB) UpdateAgentReputation(id string, score int, tier string, updatedAt int64) error {
	res, err := d.db.Exec(
		`UPDATE agents SET reputation_score = ?, trust_tier = ?, reputation_updated_at = ?
		 WHERE id = ?`,
		score, tier, updatedAt, id,
	)
	if err != nil {
		return fmt.Errorf("update agent reputation: %w", err)
	}
	return requireRow(res, "update agent reputation")
}

// TouchAgentActivity updates last_activity_at for an agent.
func (d *DB) TouchAgentActivity(id string, at int64) error {
	res, err := d.db.Exec(
		`UPDATE agents SET last_activity_at = ? WHERE id = ?`, at, id,
	)
	if err != nil {
		return fmt.Errorf("touch agent activity: %w", err)
	}
	return requireRow(res, "touch agent activity")
}

// AdjustVouchCounts applies deltas to an agent's vouch counters, floored
// at zero.
func (d *DB) AdjustVouchCounts(id string, givenDelta, receivedDelta int) error {
	res, err := d.db.Exec(
		`UPDATE agents SET
		    vouch_count = MAX(vouch_count + ?, 0),
		    vouched_by_count = MAX(vouched_by_count + ?, 0)
		 WHERE id = ?`,
		givenDelta, receivedDelta, id,
	)
	if err != nil {
		return fmt.Errorf("adjust vouch counts: %w", err)
	}
	return requireRow(res, "adjust vouch counts")
}

// UpdateAgentReviewStats stores the recomputed review aggregate.
func (d *DB) UpdateAgentReviewStats(id string, avgRating float64, count int) error {
	res, err := d.db.Exec(
		`UPDATE agents SET avg_review_rating = ?, review_count = ? WHERE id = ?`,
		avgRating, count, id,
	)
	if err != nil {
		return fmt.Errorf("update agent review stats: %w", err)
	}
	return requireRow(res, "update agent review stats")
}

// RecordTaskOutcome increments the completed or failed counter for an agent.
func (d *DB) RecordTaskOutcome(id string, completed bool) error {
	col := "tasks_failed"
	if completed {
		col = "tasks_completed"
	}
	res, err := d.db.Exec(
		`UPDATE agents SET `+col+` = `+col+` + 1 WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("record task outcome: %w", err)
	}
	return requireRow(res, "record task outcome")
}

// IsNotFound reports whether err stems from a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// requireRow converts a zero-rows-affected result into sql.ErrNoRows.
func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, sql.ErrNoRows)
	}
	return nil
}
