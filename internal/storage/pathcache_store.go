package storage

import "fmt"

// PutTrustPath upserts the cache entry for the ordered (from, to) pair.
func (d *DB) PutTrustPath(e *TrustPathCacheEntry) error {
	_, err := d.db.Exec(
		`INSERT INTO trust_path_cache (from_id, to_id, path, path_length, trust_score, calculated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(from_id, to_id) DO UPDATE SET
		    path = excluded.path,
		    path_length = excluded.path_length,
		    trust_score = excluded.trust_score,
		    calculated_at = excluded.calculated_at`,
		e.FromID, e.ToID, e.Path, e.PathLength, e.TrustScore, e.CalculatedAt,
	)
	if err != nil {
		return fmt.Errorf("put trust path: %w", err)
	}
	return nil
}

// GetTrustPath retrieves the cache entry for the ordered pair.
func (d *DB) GetTrustPath(fromID, toID string) (*TrustPathCacheEntry, error) {
	e := &TrustPathCacheEntry{}
	err := d.db.QueryRow(
		`SELECT from_id, to_id, path, path_length, trust_score, calculated_at
		 FROM trust_path_cache WHERE from_id = ? AND to_id = ?`,
		fromID, toID,
	).Scan(&e.FromID, &e.ToID, &e.Path, &e.PathLength, &e.TrustScore, &e.CalculatedAt)
	if err != nil {
		return nil, fmt.Errorf("get trust path: %w", err)
	}
	return e, nil
}

// PruneTrustPaths deletes cache entries calculated before cutoff.
// Returns the number of rows removed.
func (d *DB) PruneTrustPaths(cutoff int64) (int, error) {
	res, err := d.db.Exec(
		`DELETE FROM trust_path_cache WHERE calculated_at < ?`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("prune trust paths: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune trust paths rows affected: %w", err)
	}
	return int(n), nil
}
