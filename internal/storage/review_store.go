package storage

import "fmt"

// CreateReview inserts a new review. The UNIQUE(task_id, reviewer_id)
// constraint rejects a second review by the same reviewer on the same
// task, including under concurrent requests.
func (d *DB) CreateReview(r *Review) error {
	_, err := d.db.Exec(
		`INSERT INTO reviews (id, task_id, reviewer_id, reviewee_id, rating, comment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TaskID, r.ReviewerID, r.RevieweeID, r.Rating, r.Comment, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// HasReview reports whether the reviewer has already reviewed the task.
func (d *DB) HasReview(taskID, reviewerID string) (bool, error) {
	var n int
	err := d.db.QueryRow(
		`SELECT COUNT(*) FROM reviews WHERE task_id = ? AND reviewer_id = ?`,
		taskID, reviewerID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has review: %w", err)
	}
	return n > 0, nil
}

// ReviewStats recomputes the reviewee's rating aggregate from the full
// ledger. A full scan rather than an incremental update keeps the
// average drift-free.
func (d *DB) ReviewStats(revieweeID string) (avg float64, count int, err error) {
	err = d.db.QueryRow(
		`SELECT COALESCE(AVG(rating), 0), COUNT(*) FROM reviews WHERE reviewee_id = ?`,
		revieweeID,
	).Scan(&avg, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("review stats: %w", err)
	}
	return avg, count, nil
}

// ListReviewsReceived returns all reviews received by an agent.
func (d *DB) ListReviewsReceived(revieweeID string) ([]Review, error) {
	rows, err := d.db.Query(
		`SELECT id, task_id, reviewer_id, reviewee_id, rating, comment, created_at
		 FROM reviews WHERE reviewee_id = ? ORDER BY created_at`,
		revieweeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reviews received: %w", err)
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.TaskID, &r.ReviewerID, &r.RevieweeID,
			&r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}
