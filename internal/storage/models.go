package storage

// Trust tiers, derived from reputation score. Never stored independently
// of a recompute.
const (
	TierNewcomer    = "newcomer"
	TierTrusted     = "trusted"
	TierEstablished = "established"
	TierElite       = "elite"
)

// Reputation recompute triggers, recorded on every history entry.
const (
	TriggerTask   = "task"
	TriggerVouch  = "vouch"
	TriggerReview = "review"
	TriggerDecay  = "decay"
	TriggerManual = "manual"
)

// Task statuses. Reviews are only accepted against terminal tasks
// (complete or disputed).
const (
	TaskOpen     = "open"
	TaskClaimed  = "claimed"
	TaskComplete = "complete"
	TaskDisputed = "disputed"
)

// Agent is a registered agent with its trust-relevant signals.
type Agent struct {
	ID                  string  `json:"id"`
	Verified            bool    `json:"verified"`
	ReputationScore     int     `json:"reputation_score"`
	TrustTier           string  `json:"trust_tier"`
	TasksCompleted      int     `json:"tasks_completed"`
	TasksFailed         int     `json:"tasks_failed"`
	AvgReviewRating     float64 `json:"avg_review_rating"`
	ReviewCount         int     `json:"review_count"`
	VouchCount          int     `json:"vouch_count"`
	VouchedByCount      int     `json:"vouched_by_count"`
	RegisteredAt        int64   `json:"registered_at"`
	LastActivityAt      int64   `json:"last_activity_at"`
	ReputationUpdatedAt int64   `json:"reputation_updated_at"`
}

// Vouch is a directed, strength-weighted endorsement from one agent to
// another. Revocation is a soft delete; the row is kept for audit until
// the maintenance retention window passes.
type Vouch struct {
	ID        string `json:"id"`
	VoucherID string `json:"voucher_id"`
	VoucheeID string `json:"vouchee_id"`
	Strength  int    `json:"strength"`
	Message   string `json:"message,omitempty"`
	Category  string `json:"category,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	ExpiresAt *int64 `json:"expires_at,omitempty"`
	RevokedAt *int64 `json:"revoked_at,omitempty"`
}

// Active reports whether the vouch is neither revoked nor expired at
// the given unix time.
func (v *Vouch) Active(now int64) bool {
	if v.RevokedAt != nil {
		return false
	}
	if v.ExpiresAt != nil && *v.ExpiresAt <= now {
		return false
	}
	return true
}

// Review is a task-scoped peer rating. One per (task, reviewer).
type Review struct {
	ID         string `json:"id"`
	TaskID     string `json:"task_id"`
	ReviewerID string `json:"reviewer_id"`
	RevieweeID string `json:"reviewee_id"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

// Task carries the minimum the trust subsystem needs from the task
// lifecycle: who took part and whether it reached a terminal state.
type Task struct {
	ID          string `json:"id"`
	RequesterID string `json:"requester_id"`
	ClaimerID   string `json:"claimer_id"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"created_at"`
	CompletedAt int64  `json:"completed_at"`
}

// Terminal reports whether the task has finished (complete or disputed).
func (t *Task) Terminal() bool {
	return t.Status == TaskComplete || t.Status == TaskDisputed
}

// ReputationHistory is an immutable snapshot written on every recompute.
// Breakdown is the JSON-encoded component breakdown.
type ReputationHistory struct {
	ID        string `json:"id"`
	AgentID   string `json:"agent_id"`
	Score     int    `json:"score"`
	Breakdown string `json:"breakdown"`
	Trigger   string `json:"trigger"`
	CreatedAt int64  `json:"created_at"`
}

// TrustPathCacheEntry caches a computed trust path for an ordered
// (from, to) pair. Path is the JSON-encoded sequence of agent ids.
type TrustPathCacheEntry struct {
	FromID       string  `json:"from_id"`
	ToID         string  `json:"to_id"`
	Path         string  `json:"path"`
	PathLength   int     `json:"path_length"`
	TrustScore   float64 `json:"trust_score"`
	CalculatedAt int64   `json:"calculated_at"`
}
