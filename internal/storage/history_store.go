package storage

import "fmt"

// AppendReputationHistory writes an immutable recompute snapshot.
func (d *DB) AppendReputationHistory(h *ReputationHistory) error {
	_, err := d.db.Exec(
		`INSERT INTO reputation_history (id, agent_id, score, breakdown, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		h.ID, h.AgentID, h.Score, h.Breakdown, h.Trigger, h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append reputation history: %w", err)
	}
	return nil
}

// ListReputationHistory returns an agent's history, newest first, capped
// at limit entries.
func (d *DB) ListReputationHistory(agentID string, limit int) ([]ReputationHistory, error) {
	rows, err := d.db.Query(
		`SELECT id, agent_id, score, breakdown, reason, created_at
		 FROM reputation_history WHERE agent_id = ?
		 ORDER BY created_at DESC, id LIMIT ?`,
		agentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list reputation history: %w", err)
	}
	defer rows.Close()

	var entries []ReputationHistory
	for rows.Next() {
		var h ReputationHistory
		if err := rows.Scan(&h.ID, &h.AgentID, &h.Score, &h.Breakdown,
			&h.Trigger, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reputation history: %w", err)
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}
