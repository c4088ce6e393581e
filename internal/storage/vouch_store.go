package storage

import (
	"database/sql"
	"fmt"
)

const vouchColumns = `id, voucher_id, vouchee_id, strength, message, category,
	created_at, updated_at, expires_at, revoked_at`

// activeVouchCond is the SQL condition for an active (non-revoked,
// non-expired) vouch. Takes one bind parameter: the current unix time.
const activeVouchCond = `revoked_at IS NULL AND (expires_at IS NULL OR expires_at > ?)`

// CreateVouch inserts a new vouch edge. Fails if an unrevoked edge for
// the same (voucher, vouchee) pair already exists (partial unique index).
func (d *DB) CreateVouch(v *Vouch) error {
	_, err := d.db.Exec(
		`INSERT INTO vouches (`+vouchColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.VoucherID, v.VoucheeID, v.Strength, v.Message, v.Category,
		v.CreatedAt, v.UpdatedAt, nullableInt64(v.ExpiresAt), nullableInt64(v.RevokedAt),
	)
	if err != nil {
		return fmt.Errorf("create vouch: %w", err)
	}
	return nil
}

// scanVouch scans one vouch row.
func scanVouch(scan func(dest ...any) error) (*Vouch, error) {
	v := &Vouch{}
	var message, category sql.NullString
	var expiresAt, revokedAt sql.NullInt64
	err := scan(&v.ID, &v.VoucherID, &v.VoucheeID, &v.Strength, &message, &category,
		&v.CreatedAt, &v.UpdatedAt, &expiresAt, &revokedAt)
	if err != nil {
		return nil, err
	}
	v.Message = message.String
	v.Category = category.String
	if expiresAt.Valid {
		v.ExpiresAt = &expiresAt.Int64
	}
	if revokedAt.Valid {
		v.RevokedAt = &revokedAt.Int64
	}
	return v, nil
}

// GetUnrevokedVouch returns the unrevoked edge for the ordered pair, if
// any. An expired but unrevoked edge is still returned: a re-vouch
// updates that row rather than inserting a duplicate.
func (d *DB) GetUnrevokedVouch(voucherID, voucheeID string) (*Vouch, error) {
	row := d.db.QueryRow(
		`SELECT `+vouchColumns+` FROM vouches
		 WHERE voucher_id = ? AND vouchee_id = ? AND revoked_at IS NULL`,
		voucherID, voucheeID,
	)
	v, err := scanVouch(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("get unrevoked vouch: %w", err)
	}
	return v, nil
}

// GetActiveVouch returns the active edge for the ordered pair, if any.
func (d *DB) GetActiveVouch(voucherID, voucheeID string, now int64) (*Vouch, error) {
	row := d.db.QueryRow(
		`SELECT `+vouchColumns+` FROM vouches
		 WHERE voucher_id = ? AND vouchee_id = ? AND `+activeVouchCond,
		voucherID, voucheeID, now,
	)
	v, err := scanVouch(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("get active vouch: %w", err)
	}
	return v, nil
}

// UpdateVouch rewrites the mutable fields of an existing edge in place.
func (d *DB) UpdateVouch(id string, strength int, message, category string, expiresAt *int64, updatedAt int64) error {
	res, err := d.db.Exec(
		`UPDATE vouches SET strength = ?, message = ?, category = ?,
		    expires_at = ?, updated_at = ?
		 WHERE id = ?`,
		strength, message, category, nullableInt64(expiresAt), updatedAt, id,
	)
	if err != nil {
		return fmt.Errorf("update vouch: %w", err)
	}
	return requireRow(res, "update vouch")
}

// RevokeVouch soft-deletes the active edge for the ordered pair.
// Returns sql.ErrNoRows (wrapped) if no active edge exists.
func (d *DB) RevokeVouch(voucherID, voucheeID string, at int64) error {
	res, err := d.db.Exec(
		`UPDATE vouches SET revoked_at = ?
		 WHERE voucher_id = ? AND vouchee_id = ? AND `+activeVouchCond,
		at, voucherID, voucheeID, at,
	)
	if err != nil {
		return fmt.Errorf("revoke vouch: %w", err)
	}
	return requireRow(res, "revoke vouch")
}

// ListVouchesGiven returns vouches issued by the agent.
func (d *DB) ListVouchesGiven(agentID string, activeOnly bool, now int64) ([]Vouch, error) {
	return d.listVouches("voucher_id", agentID, activeOnly, now)
}

// ListVouchesReceived returns vouches received by the agent.
func (d *DB) ListVouchesReceived(agentID string, activeOnly bool, now int64) ([]Vouch, error) {
	return d.listVouches("vouchee_id", agentID, activeOnly, now)
}

func (d *DB) listVouches(col, agentID string, activeOnly bool, now int64) ([]Vouch, error) {
	query := `SELECT ` + vouchColumns + ` FROM vouches WHERE ` + col + ` = ?`
	args := []any{agentID}
	if activeOnly {
		query += ` AND ` + activeVouchCond
		args = append(args, now)
	}
	query += ` ORDER BY created_at`

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list vouches: %w", err)
	}
	defer rows.Close()

	var vouches []Vouch
	for rows.Next() {
		v, err := scanVouch(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan vouch: %w", err)
		}
		vouches = append(vouches, *v)
	}
	return vouches, rows.Err()
}

// CountVouchesCreatedSince counts edges the voucher has created (not
// updated) since the given unix time. Used for the daily vouch limit.
func (d *DB) CountVouchesCreatedSince(voucherID string, since int64) (int, error) {
	var n int
	err := d.db.QueryRow(
		`SELECT COUNT(*) FROM vouches WHERE voucher_id = ? AND created_at >= ?`,
		voucherID, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count vouches created since: %w", err)
	}
	return n, nil
}

// PruneVouches hard-deletes edges whose revocation or expiry is older
// than cutoff. Soft-deleted and soft-expired edges remain queryable for
// audit until then. Returns the number of rows removed.
func (d *DB) PruneVouches(cutoff int64) (int, error) {
	res, err := d.db.Exec(
		`DELETE FROM vouches
		 WHERE (revoked_at IS NOT NULL AND revoked_at < ?)
		    OR (expires_at IS NOT NULL AND expires_at < ?)`,
		cutoff, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("prune vouches: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune vouches rows affected: %w", err)
	}
	return int(n), nil
}

// ReconcileVouchCounts recomputes every agent's vouch_count and
// vouched_by_count from the active edges as of now. Incremental
// adjustments miss edges that expire on their own, so maintenance
// calls this to correct the drift. Returns the number of agents whose
// counters changed.
func (d *DB) ReconcileVouchCounts(now int64) (int, error) {
	res, err := d.db.Exec(
		`UPDATE agents SET
		    vouch_count = (
		        SELECT COUNT(*) FROM vouches v
		        WHERE v.voucher_id = agents.id
		          AND v.revoked_at IS NULL
		          AND (v.expires_at IS NULL OR v.expires_at > ?)),
		    vouched_by_count = (
		        SELECT COUNT(*) FROM vouches v
		        WHERE v.vouchee_id = agents.id
		          AND v.revoked_at IS NULL
		          AND (v.expires_at IS NULL OR v.expires_at > ?))
		 WHERE vouch_count != (
		        SELECT COUNT(*) FROM vouches v
		        WHERE v.voucher_id = agents.id
		          AND v.revoked_at IS NULL
		          AND (v.expires_at IS NULL OR v.expires_at > ?))
		    OR vouched_by_count != (
		        SELECT COUNT(*) FROM vouches v
		        WHERE v.vouchee_id = agents.id
		          AND v.revoked_at IS NULL
		          AND (v.expires_at IS NULL OR v.expires_at > ?))`,
		now, now, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("reconcile vouch counts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reconcile vouch counts rows affected: %w", err)
	}
	return int(n), nil
}

// VouchEdge is an outbound active vouch joined with the vouchee's trust
// fields, for graph traversal.
type VouchEdge struct {
	VoucheeID         string
	Strength          int
	VoucheeReputation int
	VoucheeVerified   bool
}

// OutboundVouchEdges returns the active edges leaving an agent, each
// joined with the vouchee's reputation and verified flag. One adjacency
// query per node keeps traversal memory bounded.
func (d *DB) OutboundVouchEdges(voucherID string, now int64) ([]VouchEdge, error) {
	rows, err := d.db.Query(
		`SELECT v.vouchee_id, v.strength, a.reputation_score, a.verified
		 FROM vouches v
		 JOIN agents a ON a.id = v.vouchee_id
		 WHERE v.voucher_id = ? AND `+activeVouchCond+`
		 ORDER BY v.created_at`,
		voucherID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("outbound vouch edges: %w", err)
	}
	defer rows.Close()

	var edges []VouchEdge
	for rows.Next() {
		var e VouchEdge
		var verified int
		if err := rows.Scan(&e.VoucheeID, &e.Strength, &e.VoucheeReputation, &verified); err != nil {
			return nil, fmt.Errorf("scan vouch edge: %w", err)
		}
		e.VoucheeVerified = verified == 1
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// nullableInt64 converts a *int64 to a sql.NullInt64.
func nullableInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}
