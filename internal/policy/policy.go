// Package policy maps raw similarity scores to confidence tiers and decides
// when a request should escalate to the external recognizer.
package policy

// Tier is a coarse confidence bucket derived from a similarity score.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Fixed tier thresholds.
const (
	highThreshold   = 0.85
	mediumThreshold = 0.50
)

// Classify buckets a raw similarity score.
func Classify(score float64) Tier {
	switch {
	case score >= highThreshold:
		return TierHigh
	case score >= mediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// ShouldEscalate reports whether a result in the given tier warrants a call
// to the external fallback provider. The caller decides whether escalation is
// permitted at all for its context (regional/cost rules live in the
// orchestrator's configuration, not here).
func ShouldEscalate(tier Tier, allowed bool) bool {
	if !allowed {
		return false
	}
	return tier == TierLow || tier == TierMedium
}
