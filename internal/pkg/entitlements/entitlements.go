package entitlements

import (
	"time"

	"github.com/ServiAPP/serviapp/app/models"
)

type Plan string

const (
	PlanFree Plan = "free"
	PlanPlus Plan = "plus"
)

// PlusOneTimeDuration is granted by a one-time Plus order.
const PlusOneTimeDuration = 30 * 24 * time.Hour

// Active applies read-time expiry to a flag plus optional expiry. A stored
// flag whose expiry has passed is treated as cleared without a write.
func Active(flag bool, until *time.Time, now time.Time) bool {
	if !flag {
		return false
	}
	if until == nil {
		return true
	}
	return until.After(now)
}

// PlusActive reports whether the profile currently holds Plus.
func PlusActive(p *models.Profile, now time.Time) bool {
	if p == nil {
		return false
	}
	return Active(p.IsPlus, p.PlusExpiresAt, now)
}

// PromotionActive reports whether the listing is currently boosted. A
// promotion always carries an expiry, so a missing one means not promoted.
func PromotionActive(s *models.ServiceListing, now time.Time) bool {
	if s == nil || s.PromotedUntil == nil {
		return false
	}
	return Active(s.IsPromoted, s.PromotedUntil, now)
}

// PlanFor maps the profile to its effective plan at now.
func PlanFor(p *models.Profile, now time.Time) Plan {
	if PlusActive(p, now) {
		return PlanPlus
	}
	return PlanFree
}
