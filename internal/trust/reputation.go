package trust

import (
	"math"

	"github.com/hikmah-systems/isnad/internal/storage"
)

// Component weights. They sum to 1.0.
const (
	WeightTask   = 0.40
	WeightReview = 0.30
	WeightVouch  = 0.20
	WeightAge    = 0.10
)

// Trust tier thresholds.
const (
	TierEliteMin       = 75
	TierEstablishedMin = 50
	TierTrustedMin     = 25
)

// VouchSignal is one active received vouch, with its voucher's trust
// fields and the effective strength after potency decay and any
// circular-vouch discount.
type VouchSignal struct {
	EffectiveStrength float64
	VoucherReputation int
	VoucherVerified   bool
}

// Signals are the stored inputs a reputation score is computed from.
type Signals struct {
	TasksCompleted        int
	TasksFailed           int
	AvgReviewRating       float64
	ReviewCount           int
	Vouches               []VouchSignal
	DaysSinceRegistration float64
	DaysSinceLastActivity float64
}

// Component is one weighted slice of the reputation breakdown.
type Component struct {
	Weight   float64            `json:"weight"`
	Raw      float64            `json:"raw"`
	Weighted float64            `json:"weighted"`
	Details  map[string]float64 `json:"details,omitempty"`
}

// Breakdown is the per-component decomposition of a reputation score.
type Breakdown struct {
	Task   Component `json:"task"`
	Review Component `json:"review"`
	Vouch  Component `json:"vouch"`
	Age    Component `json:"age"`
}

// Compute is the pure reputation function: four independently clamped
// component scores, weighted and summed, rounded, clamped to [0,100].
func Compute(in Signals) (score int, tier string, bd Breakdown) {
	taskRaw, taskDet := taskScore(in)
	reviewRaw, reviewDet := reviewScore(in)
	vouchRaw, vouchDet := vouchScore(in)
	ageRaw, ageDet := ageScore(in)
	bd.Task = component(WeightTask, taskRaw, taskDet)
	bd.Review = component(WeightReview, reviewRaw, reviewDet)
	bd.Vouch = component(WeightVouch, vouchRaw, vouchDet)
	bd.Age = component(WeightAge, ageRaw, ageDet)

	total := bd.Task.Weighted + bd.Review.Weighted + bd.Vouch.Weighted + bd.Age.Weighted
	score = int(math.Round(total))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, TierForScore(score), bd
}

// TierForScore maps a score to its trust tier.
func TierForScore(score int) string {
	switch {
	case score >= TierEliteMin:
		return storage.TierElite
	case score >= TierEstablishedMin:
		return storage.TierEstablished
	case score >= TierTrustedMin:
		return storage.TierTrusted
	default:
		return storage.TierNewcomer
	}
}

func component(weight float64, raw float64, details map[string]float64) Component {
	return Component{Weight: weight, Raw: raw, Weighted: raw * weight, Details: details}
}

// taskScore rewards success rate (up to 80 points) plus a volume bonus
// that saturates at 50 tasks (up to 20 points).
func taskScore(in Signals) (float64, map[string]float64) {
	total := in.TasksCompleted + in.TasksFailed
	if total == 0 {
		return 0, nil
	}
	successRate := float64(in.TasksCompleted) / float64(total)
	volumeBonus := math.Min(float64(total)/50, 1) * 20
	score := clamp100(successRate*80 + volumeBonus)
	return score, map[string]float64{
		"completed":    float64(in.TasksCompleted),
		"failed":       float64(in.TasksFailed),
		"success_rate": successRate,
		"volume_bonus": volumeBonus,
	}
}

// reviewScore maps the 1-5 star average onto 0-100 and blends it toward
// a neutral 50 while the review count is below 20.
func reviewScore(in Signals) (float64, map[string]float64) {
	if in.ReviewCount == 0 {
		return 0, nil
	}
	ratingScore := (in.AvgReviewRating - 1) / 4 * 100
	confidence := math.Min(float64(in.ReviewCount)/20, 1)
	score := clamp100(ratingScore*confidence + 50*(1-confidence))
	return score, map[string]float64{
		"avg_rating":   in.AvgReviewRating,
		"review_count": float64(in.ReviewCount),
		"confidence":   confidence,
	}
}

// vouchScore sums voucher-reputation-weighted effective strengths, with
// a 1.5x boost for verified vouchers, scaled against a 75-point
// reference ceiling.
func vouchScore(in Signals) (float64, map[string]float64) {
	if len(in.Vouches) == 0 {
		return 0, nil
	}
	var totalWeight float64
	for _, v := range in.Vouches {
		w := v.EffectiveStrength * (float64(v.VoucherReputation) / 100)
		if v.VoucherVerified {
			w *= 1.5
		}
		totalWeight += w
	}
	score := clamp100(totalWeight / 15 * 100 / 75)
	return score, map[string]float64{
		"active_vouches": float64(len(in.Vouches)),
		"total_weight":   totalWeight,
	}
}

// ageScore combines account age (saturating at 180 days, up to 50
// points) with recency of activity (full 50 points at zero days idle,
// linearly down to 0 at 25 days).
func ageScore(in Signals) (float64, map[string]float64) {
	ageComponent := math.Min(in.DaysSinceRegistration/180, 1) * 50
	activityComponent := math.Max(0, 50-2*in.DaysSinceLastActivity)
	score := clamp100(ageComponent + activityComponent)
	return score, map[string]float64{
		"days_registered":     in.DaysSinceRegistration,
		"days_since_activity": in.DaysSinceLastActivity,
	}
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
