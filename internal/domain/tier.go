package domain

import "time"

// SubscriptionTier bounds the maximum scheduling interval a user's cards
// may receive.
type SubscriptionTier string

// Known subscription tiers. TierEnterprise is a higher-privilege value that
// receives the power ceiling.
const (
	TierFree       SubscriptionTier = "free"
	TierPro        SubscriptionTier = "pro"
	TierPower      SubscriptionTier = "power"
	TierEnterprise SubscriptionTier = "enterprise"
)

// Per-tier interval ceilings.
const (
	freeMaxInterval  = 30 * 24 * time.Hour
	proMaxInterval   = 180 * 24 * time.Hour
	powerMaxInterval = 365 * 24 * time.Hour
)

// MaxInterval returns the tier's scheduling-interval ceiling. A tier outside
// the known set falls back to the free ceiling; higher-privilege values are
// treated as power.
func (t SubscriptionTier) MaxInterval() time.Duration {
	switch t {
	case TierPro:
		return proMaxInterval
	case TierPower, TierEnterprise:
		return powerMaxInterval
	default:
		return freeMaxInterval
	}
}
