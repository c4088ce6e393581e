package trust

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hikmah-systems/isnad/internal/storage"
)

// Vouch issuing gates.
const (
	minVoucherReputation = 10
	minVoucherAccountAge = 24 * time.Hour
	dailyVouchLimit      = 10
	defaultVouchStrength = 50
)

// DefaultRetentionDays is how long revoked and expired vouches stay
// queryable for audit before the maintenance job hard-deletes them.
const DefaultRetentionDays = 90

// Event is a trust change broadcast to feed subscribers.
type Event struct {
	AgentID string `json:"agent_id"`
	Score   int    `json:"score"`
	Tier    string `json:"tier"`
	Trigger string `json:"trigger"`
}

// Publisher receives trust events for fan-out. Implementations must not
// block.
type Publisher interface {
	Publish(e Event)
}

// Service wires the ledgers, the reputation calculator, the decay
// engine, the path finder, and the circular detector together.
type Service struct {
	db            *storage.DB
	feed          Publisher
	now           func() time.Time
	finder        *PathFinder
	detector      *Detector
	retentionDays int
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the service clock (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPublisher attaches a trust-event publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.feed = p }
}

// WithRetentionDays overrides the audit retention window.
func WithRetentionDays(days int) Option {
	return func(s *Service) { s.retentionDays = days }
}

// NewService creates a Service on top of db.
func NewService(db *storage.DB, opts ...Option) *Service {
	s := &Service{
		db:            db,
		now:           time.Now,
		retentionDays: DefaultRetentionDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	edges := &dbEdgeSource{db: db, now: s.now}
	s.finder = NewPathFinder(edges, &dbPathCache{db: db}, s.now)
	s.detector = NewDetector(edges)
	return s
}

// dbEdgeSource adapts the vouch store to the traversal EdgeSource.
type dbEdgeSource struct {
	db  *storage.DB
	now func() time.Time
}

func (e *dbEdgeSource) OutboundEdges(agentID string) ([]Edge, error) {
	rows, err := e.db.OutboundVouchEdges(agentID, e.now().Unix())
	if err != nil {
		return nil, err
	}
	edges := make([]Edge, len(rows))
	for i, r := range rows {
		edges[i] = Edge{
			VoucheeID:         r.VoucheeID,
			Strength:          r.Strength,
			VoucheeReputation: r.VoucheeReputation,
			VoucheeVerified:   r.VoucheeVerified,
		}
	}
	return edges, nil
}

// dbPathCache adapts the trust_path_cache table to the PathCache
// interface, JSON-encoding the path sequence.
type dbPathCache struct {
	db *storage.DB
}

func (c *dbPathCache) GetPath(fromID, toID string) (*CachedPath, bool, error) {
	entry, err := c.db.GetTrustPath(fromID, toID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var path []string
	if err := json.Unmarshal([]byte(entry.Path), &path); err != nil {
		return nil, false, fmt.Errorf("decode cached path: %w", err)
	}
	return &CachedPath{
		Path:         path,
		Length:       entry.PathLength,
		Trust:        entry.TrustScore,
		CalculatedAt: entry.CalculatedAt,
	}, true, nil
}

func (c *dbPathCache) PutPath(fromID, toID string, p *CachedPath) error {
	encoded, err := json.Marshal(p.Path)
	if err != nil {
		return fmt.Errorf("encode path: %w", err)
	}
	return c.db.PutTrustPath(&storage.TrustPathCacheEntry{
		FromID:       fromID,
		ToID:         toID,
		Path:         string(encoded),
		PathLength:   p.Length,
		TrustScore:   p.Trust,
		CalculatedAt: p.CalculatedAt,
	})
}

// ---------------------------------------------------------------------------
// Agent registration and tasks (collaborator surface)
// ---------------------------------------------------------------------------

// RegisterAgent creates an agent record. The verified flag is asserted
// by the caller; identity verification itself happens upstream.
func (s *Service) RegisterAgent(id string, verified bool) (*storage.Agent, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: agent id required", ErrValidation)
	}
	if _, err := s.db.GetAgent(id); err == nil {
		return nil, fmt.Errorf("%w: agent %s already registered", ErrValidation, id)
	}
	now := s.now().Unix()
	a := &storage.Agent{
		ID:             id,
		Verified:       verified,
		TrustTier:      storage.TierNewcomer,
		RegisteredAt:   now,
		LastActivityAt: now,
	}
	if err := s.db.CreateAgent(a); err != nil {
		return nil, err
	}
	return a, nil
}

// GetAgent looks up an agent record.
func (s *Service) GetAgent(id string) (*storage.Agent, error) {
	a, err := s.db.GetAgent(id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("%w: agent %s", ErrNotFound, id)
		}
		return nil, err
	}
	return a, nil
}

// PostTask records a task posted by requester.
func (s *Service) PostTask(requesterID string) (*storage.Task, error) {
	if _, err := s.GetAgent(requesterID); err != nil {
		return nil, err
	}
	t := &storage.Task{
		ID:          uuid.New().String(),
		RequesterID: requesterID,
		Status:      storage.TaskOpen,
		CreatedAt:   s.now().Unix(),
	}
	if err := s.db.CreateTask(t); err != nil {
		return nil, err
	}
	return t, nil
}

// ClaimTask assigns an open task to claimer.
func (s *Service) ClaimTask(taskID, claimerID string) error {
	if _, err := s.GetAgent(claimerID); err != nil {
		return err
	}
	if err := s.db.ClaimTask(taskID, claimerID); err != nil {
		if storage.IsNotFound(err) {
			return fmt.Errorf("%w: open task %s", ErrNotFound, taskID)
		}
		return err
	}
	return nil
}

// CompleteTask moves a claimed task to its terminal state and updates
// the claimer's task counters. success=false records a dispute and a
// failed task.
func (s *Service) CompleteTask(taskID string, success bool) error {
	task, err := s.db.GetTask(taskID)
	if err != nil {
		if storage.IsNotFound(err) {
			return fmt.Errorf("%w: task %s", ErrNotFound, taskID)
		}
		return err
	}
	if task.ClaimerID == "" || task.Status != storage.TaskClaimed {
		return fmt.Errorf("%w: task %s is %s", ErrInvalidTaskState, taskID, task.Status)
	}

	status := storage.TaskDisputed
	if success {
		status = storage.TaskComplete
	}
	now := s.now().Unix()
	if err := s.db.FinishTask(taskID, status, now); err != nil {
		return err
	}
	if err := s.db.RecordTaskOutcome(task.ClaimerID, success); err != nil {
		return err
	}
	if err := s.db.TouchAgentActivity(task.ClaimerID, now); err != nil {
		return err
	}
	s.recompute(task.ClaimerID, storage.TriggerTask)
	return nil
}

// ---------------------------------------------------------------------------
// Vouch ledger
// ---------------------------------------------------------------------------

// GiveVouch creates or refreshes the unique active edge voucher->vouchee.
// The returned CircularResult is advisory: a detected pattern discounts
// the vouch's scoring weight but does not block it.
func (s *Service) GiveVouch(voucherID, voucheeID string, strength int, message, category string, expiresInDays int) (*storage.Vouch, *CircularResult, error) {
	if strength == 0 {
		strength = defaultVouchStrength
	}
	if strength < 1 || strength > 100 {
		return nil, nil, fmt.Errorf("%w: strength must be 1-100", ErrValidation)
	}
	if expiresInDays < 0 {
		return nil, nil, fmt.Errorf("%w: expires_in_days cannot be negative", ErrValidation)
	}
	if voucherID == voucheeID {
		return nil, nil, ErrSelfVouch
	}

	voucher, err := s.GetAgent(voucherID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.GetAgent(voucheeID); err != nil {
		return nil, nil, err
	}

	now := s.now()
	if voucher.ReputationScore < minVoucherReputation {
		return nil, nil, fmt.Errorf("%w: score %d, need %d", ErrInsufficientReputation, voucher.ReputationScore, minVoucherReputation)
	}
	if now.Unix()-voucher.RegisteredAt < int64(minVoucherAccountAge.Seconds()) {
		return nil, nil, ErrAccountTooNew
	}

	dayStart := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), 0, 0, 0, 0, time.UTC).Unix()
	issuedToday, err := s.db.CountVouchesCreatedSince(voucherID, dayStart)
	if err != nil {
		return nil, nil, err
	}
	if issuedToday >= dailyVouchLimit {
		return nil, nil, fmt.Errorf("%w: %d vouches issued today", ErrRateLimited, issuedToday)
	}

	var expiresAt *int64
	if expiresInDays > 0 {
		exp := now.Add(time.Duration(expiresInDays) * 24 * time.Hour).Unix()
		expiresAt = &exp
	}

	existing, err := s.db.GetUnrevokedVouch(voucherID, voucheeID)
	var vouch *storage.Vouch
	switch {
	case err == nil:
		// Re-vouch: update the edge in place; counters untouched.
		if err := s.db.UpdateVouch(existing.ID, strength, message, category, expiresAt, now.Unix()); err != nil {
			return nil, nil, err
		}
		existing.Strength = strength
		existing.Message = message
		existing.Category = category
		existing.ExpiresAt = expiresAt
		existing.UpdatedAt = now.Unix()
		vouch = existing
	case storage.IsNotFound(err):
		vouch = &storage.Vouch{
			ID:        uuid.New().String(),
			VoucherID: voucherID,
			VoucheeID: voucheeID,
			Strength:  strength,
			Message:   message,
			Category:  category,
			CreatedAt: now.Unix(),
			UpdatedAt: now.Unix(),
			ExpiresAt: expiresAt,
		}
		if err := s.db.CreateVouch(vouch); err != nil {
			return nil, nil, err
		}
		if err := s.db.AdjustVouchCounts(voucherID, 1, 0); err != nil {
			return nil, nil, err
		}
		if err := s.db.AdjustVouchCounts(voucheeID, 0, 1); err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, err
	}

	if err := s.db.TouchAgentActivity(voucherID, now.Unix()); err != nil {
		return nil, nil, err
	}
	if err := s.db.TouchAgentActivity(voucheeID, now.Unix()); err != nil {
		return nil, nil, err
	}

	circular, err := s.detector.DetectCircular(voucherID, voucheeID)
	if err != nil {
		// Detection is advisory; failure must not undo the vouch.
		log.Printf("[trust] circular detection %s->%s: %v", voucherID, voucheeID, err)
		circular = &CircularResult{Retained: 1}
	}

	s.recompute(voucheeID, storage.TriggerVouch)
	return vouch, circular, nil
}

// RevokeVouch soft-deletes the active edge voucher->vouchee.
func (s *Service) RevokeVouch(voucherID, voucheeID string) error {
	now := s.now().Unix()
	if err := s.db.RevokeVouch(voucherID, voucheeID, now); err != nil {
		if storage.IsNotFound(err) {
			return fmt.Errorf("%w: no active vouch %s->%s", ErrNotFound, voucherID, voucheeID)
		}
		return err
	}
	if err := s.db.AdjustVouchCounts(voucherID, -1, 0); err != nil {
		return err
	}
	if err := s.db.AdjustVouchCounts(voucheeID, 0, -1); err != nil {
		return err
	}
	if err := s.db.TouchAgentActivity(voucherID, now); err != nil {
		return err
	}
	if err := s.db.TouchAgentActivity(voucheeID, now); err != nil {
		return err
	}
	s.recompute(voucheeID, storage.TriggerVouch)
	return nil
}

// ListVouches lists an agent's vouches. direction is "given" or
// "received".
func (s *Service) ListVouches(agentID, direction string, activeOnly bool) ([]storage.Vouch, error) {
	if _, err := s.GetAgent(agentID); err != nil {
		return nil, err
	}
	now := s.now().Unix()
	switch direction {
	case "given":
		return s.db.ListVouchesGiven(agentID, activeOnly, now)
	case "received":
		return s.db.ListVouchesReceived(agentID, activeOnly, now)
	default:
		return nil, fmt.Errorf("%w: direction must be given or received", ErrValidation)
	}
}

// ---------------------------------------------------------------------------
// Review ledger
// ---------------------------------------------------------------------------

// SubmitReview records a task-scoped peer rating. The reviewer must be a
// participant of a terminal task; the reviewee is the other participant.
func (s *Service) SubmitReview(taskID, reviewerID string, rating int, comment string) (*storage.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be 1-5", ErrValidation)
	}

	task, err := s.db.GetTask(taskID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
		}
		return nil, err
	}
	if !task.Terminal() {
		return nil, fmt.Errorf("%w: task %s is %s", ErrInvalidTaskState, taskID, task.Status)
	}

	var revieweeID string
	switch reviewerID {
	case task.RequesterID:
		revieweeID = task.ClaimerID
	case task.ClaimerID:
		revieweeID = task.RequesterID
	default:
		return nil, ErrNotParticipant
	}

	already, err := s.db.HasReview(taskID, reviewerID)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, ErrDuplicateReview
	}

	now := s.now().Unix()
	review := &storage.Review{
		ID:         uuid.New().String(),
		TaskID:     taskID,
		ReviewerID: reviewerID,
		RevieweeID: revieweeID,
		Rating:     rating,
		Comment:    comment,
		CreatedAt:  now,
	}
	if err := s.db.CreateReview(review); err != nil {
		return nil, err
	}

	avg, count, err := s.db.ReviewStats(revieweeID)
	if err != nil {
		return nil, err
	}
	if err := s.db.UpdateAgentReviewStats(revieweeID, avg, count); err != nil {
		return nil, err
	}
	if err := s.db.TouchAgentActivity(reviewerID, now); err != nil {
		return nil, err
	}
	if err := s.db.TouchAgentActivity(revieweeID, now); err != nil {
		return nil, err
	}

	s.recompute(revieweeID, storage.TriggerReview)
	return review, nil
}

// ---------------------------------------------------------------------------
// Reputation
// ---------------------------------------------------------------------------

// ReputationReport is the full reputation view for an agent.
type ReputationReport struct {
	AgentID        string    `json:"agent_id"`
	Score          int       `json:"score"`
	Tier           string    `json:"tier"`
	Breakdown      Breakdown `json:"breakdown"`
	LastCalculated int64     `json:"last_calculated"`
}

// GetReputation computes a fresh score and breakdown from the agent's
// stored signals without persisting anything.
func (s *Service) GetReputation(agentID string) (*ReputationReport, error) {
	agent, err := s.GetAgent(agentID)
	if err != nil {
		return nil, err
	}
	signals, err := s.collectSignals(agent)
	if err != nil {
		return nil, err
	}
	score, tier, bd := Compute(*signals)
	return &ReputationReport{
		AgentID:        agentID,
		Score:          score,
		Tier:           tier,
		Breakdown:      bd,
		LastCalculated: agent.ReputationUpdatedAt,
	}, nil
}

// FindTrustPath answers an isnad query between two registered agents.
func (s *Service) FindTrustPath(fromID, toID string, maxDepth int) (*PathResult, error) {
	if _, err := s.GetAgent(fromID); err != nil {
		return nil, err
	}
	if _, err := s.GetAgent(toID); err != nil {
		return nil, err
	}
	return s.finder.FindPath(fromID, toID, maxDepth)
}

// ReputationHistory returns an agent's recompute audit trail, newest
// first.
func (s *Service) ReputationHistory(agentID string, limit int) ([]storage.ReputationHistory, error) {
	if _, err := s.GetAgent(agentID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.db.ListReputationHistory(agentID, limit)
}

// collectSignals gathers the scoring inputs for an agent: stored
// counters plus each active received vouch with potency decay and
// circular discount applied.
func (s *Service) collectSignals(agent *storage.Agent) (*Signals, error) {
	now := s.now().Unix()
	received, err := s.db.ListVouchesReceived(agent.ID, true, now)
	if err != nil {
		return nil, err
	}

	var vouchSignals []VouchSignal
	for _, v := range received {
		voucher, err := s.db.GetAgent(v.VoucherID)
		if err != nil {
			return nil, fmt.Errorf("load voucher %s: %w", v.VoucherID, err)
		}

		// Potency decays from the last refresh of the edge; circularity
		// is re-evaluated per vouch, never cached.
		ageDays := float64(now-v.UpdatedAt) / 86400
		effective := EffectiveStrength(v.Strength, ageDays)
		circ, err := s.detector.DetectCircular(v.VoucherID, v.VoucheeID)
		if err != nil {
			return nil, err
		}
		effective *= circ.Retained

		vouchSignals = append(vouchSignals, VouchSignal{
			EffectiveStrength: effective,
			VoucherReputation: voucher.ReputationScore,
			VoucherVerified:   voucher.Verified,
		})
	}

	return &Signals{
		TasksCompleted:        agent.TasksCompleted,
		TasksFailed:           agent.TasksFailed,
		AvgReviewRating:       agent.AvgReviewRating,
		ReviewCount:           agent.ReviewCount,
		Vouches:               vouchSignals,
		DaysSinceRegistration: float64(now-agent.RegisteredAt) / 86400,
		DaysSinceLastActivity: float64(now-agent.LastActivityAt) / 86400,
	}, nil
}

// recompute recalculates and persists an agent's reputation, appending
// a history snapshot and publishing a feed event. Failures are logged
// and swallowed: the triggering mutation already succeeded, and the
// next maintenance run reconciles.
func (s *Service) recompute(agentID, trigger string) {
	if _, err := s.recomputeScore(agentID, trigger, false); err != nil {
		log.Printf("[trust] recompute %s (%s): %v", agentID, trigger, err)
	}
}

// recomputeScore runs the full calculation for one agent and persists
// the result. When applyDecay is set (maintenance path only), the
// inactivity decay multiplier is applied to the computed score as a
// separate pass; the live recompute path never decays.
func (s *Service) recomputeScore(agentID, trigger string, applyDecay bool) (int, error) {
	agent, err := s.db.GetAgent(agentID)
	if err != nil {
		return 0, fmt.Errorf("load agent: %w", err)
	}
	signals, err := s.collectSignals(agent)
	if err != nil {
		return 0, err
	}

	score, tier, bd := Compute(*signals)
	if applyDecay {
		score = DecayScore(score, signals.DaysSinceLastActivity)
		tier = TierForScore(score)
	}

	now := s.now().Unix()
	if err := s.db.UpdateAgentReputation(agentID, score, tier, now); err != nil {
		return 0, err
	}

	encoded, err := json.Marshal(bd)
	if err != nil {
		return 0, fmt.Errorf("encode breakdown: %w", err)
	}
	if err := s.db.AppendReputationHistory(&storage.ReputationHistory{
		ID:        uuid.New().String(),
		AgentID:   agentID,
		Score:     score,
		Breakdown: string(encoded),
		Trigger:   trigger,
		CreatedAt: now,
	}); err != nil {
		return 0, err
	}

	if s.feed != nil {
		s.feed.Publish(Event{AgentID: agentID, Score: score, Tier: tier, Trigger: trigger})
	}
	return score, nil
}

// ---------------------------------------------------------------------------
// Maintenance
// ---------------------------------------------------------------------------

// MaintenanceResult summarizes one maintenance run.
type MaintenanceResult struct {
	AgentsUpdated      int `json:"agents_updated"`
	VouchesPruned      int `json:"vouches_pruned"`
	CacheEntriesPruned int `json:"cache_entries_pruned"`
	CountersReconciled int `json:"counters_reconciled"`
}

// RunMaintenance performs the daily idempotent passes: recompute with
// decay for every agent, prune vouches past the audit retention window,
// drop stale path cache entries, and reconcile vouch counters against
// the edges still active. A failure on one agent does not abort the
// rest.
func (s *Service) RunMaintenance() (*MaintenanceResult, error) {
	res := &MaintenanceResult{}

	agents, err := s.db.ListAgents()
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	for _, a := range agents {
		if _, err := s.recomputeScore(a.ID, storage.TriggerDecay, true); err != nil {
			log.Printf("[maintenance] agent %s: %v", a.ID, err)
			continue
		}
		res.AgentsUpdated++
	}

	now := s.now().Unix()
	retention := int64(s.retentionDays) * 86400
	pruned, err := s.db.PruneVouches(now - retention)
	if err != nil {
		log.Printf("[maintenance] prune vouches: %v", err)
	} else {
		res.VouchesPruned = pruned
	}

	cachePruned, err := s.db.PruneTrustPaths(now - int64(PathCacheTTL.Seconds()))
	if err != nil {
		log.Printf("[maintenance] prune trust paths: %v", err)
	} else {
		res.CacheEntriesPruned = cachePruned
	}

	reconciled, err := s.db.ReconcileVouchCounts(now)
	if err != nil {
		log.Printf("[maintenance] reconcile vouch counts: %v", err)
	} else {
		res.CountersReconciled = reconciled
	}

	return res, nil
}
