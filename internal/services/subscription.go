package services

import (
	"time"

	"github.com/AnshRaj112/coursely-backend/internal/models"
)

// IsSubscriptionActive reports whether sub grants premium access at now.
// A nil subscription, a cleared flag, or a missing end date all evaluate to false.
// The result depends on the wall clock, so callers evaluate it per request and never cache it.
func IsSubscriptionActive(sub *models.Subscription, now time.Time) bool {
	if sub == nil || !sub.IsActive || sub.EndDate == nil {
		return false
	}
	return sub.EndDate.After(now)
}

// ExtendSubscription returns the new start/end window for a paid plan period.
// An active subscription is extended from its current end date, otherwise from now.
func ExtendSubscription(sub *models.Subscription, plan models.Plan, now time.Time) (start, end time.Time) {
	start = now
	base := now
	if IsSubscriptionActive(sub, now) {
		base = *sub.EndDate
		if sub.StartDate != nil {
			start = *sub.StartDate
		}
	}
	return start, base.Add(plan.Duration())
}
