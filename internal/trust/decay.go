package trust

import "math"

const (
	// decayGraceDays is how long an agent can be idle before reputation
	// decay begins.
	decayGraceDays = 30

	// weeklyDecayFactor is the multiplier applied per week of inactivity
	// past the grace period (2% weekly decay).
	weeklyDecayFactor = 0.98

	// decayFloor is the score reputation never decays below.
	decayFloor = 10

	// vouchHalfLifeDays is the half-life of a vouch's effective strength.
	vouchHalfLifeDays = 180
)

// DecayScore applies inactivity decay to a stored reputation score.
// Inside the grace period the score is unchanged. Past it, the score
// shrinks by 2% per week of excess inactivity, floored at 10. The
// result never exceeds the input.
func DecayScore(score int, daysSinceLastActivity float64) int {
	if daysSinceLastActivity <= decayGraceDays {
		return score
	}
	if score <= decayFloor {
		return score
	}
	weeksInactive := (daysSinceLastActivity - decayGraceDays) / 7
	multiplier := math.Pow(weeklyDecayFactor, weeksInactive)
	decayed := int(math.Round(float64(score) * multiplier))
	if decayed < decayFloor {
		return decayFloor
	}
	return decayed
}

// EffectiveStrength is a vouch's strength attenuated by its age with a
// 180-day half-life. Evaluated at scoring time; the stored strength is
// never rewritten by decay. A re-vouch refreshes the edge and restarts
// the clock.
func EffectiveStrength(strength int, daysSinceVouch float64) float64 {
	if daysSinceVouch <= 0 {
		return float64(strength)
	}
	return float64(strength) * math.Pow(0.5, daysSinceVouch/vouchHalfLifeDays)
}
