package subscriptions

import (
	"time"

	"github.com/google/uuid"

	"github.com/billforge/billforge-backend/pkg/db/models"
	"github.com/billforge/billforge-backend/pkg/enums"
)

// State is the effective lifecycle position of a subscription, derived from
// the stored row rather than persisted as its own column so it can never
// drift from the data it summarizes.
type State string

const (
	// StateFreeActive means the tenant is on the free tier with no pending
	// cleanup.
	StateFreeActive State = "free_active"
	// StatePaidActive means a paid window is open and has not expired.
	StatePaidActive State = "paid_active"
	// StatePaidExpired means the paid window has closed but the sweeper has
	// not yet renewed or downgraded the row.
	StatePaidExpired State = "paid_expired"
	// StateGrace means the tenant was downgraded to free and over-quota
	// resources have not been trimmed yet.
	StateGrace State = "grace"
)

// StateOf classifies a subscription at the given instant. The free plan is
// identified by the plan row, not by price, so a zero-cost promotional paid
// plan still counts as paid.
func StateOf(sub *models.Subscription, plan *models.Plan, now time.Time) State {
	if sub.InGrace() {
		return StateGrace
	}
	if plan != nil && plan.IsFree {
		return StateFreeActive
	}
	if sub.Expired(now) {
		return StatePaidExpired
	}
	return StatePaidActive
}

// RenewalWindow is how long one paid billing period runs when no other
// window is configured.
const RenewalWindow = 30 * 24 * time.Hour

// ApplyPaidPlan moves the row onto a paid plan with a fresh billing window.
// A non-positive window falls back to RenewalWindow. Applying a plan always
// clears any pending grace window: the tenant just paid, so nothing should
// be trimmed out from under them.
func ApplyPaidPlan(sub *models.Subscription, plan *models.Plan, paymentID uuid.UUID, now time.Time, window time.Duration) {
	if window <= 0 {
		window = RenewalWindow
	}
	sub.PlanID = plan.ID
	sub.Status = enums.SubscriptionStatusActive
	sub.StartDate = now
	sub.EndDate = now.Add(window)
	sub.AutoRenew = true
	sub.DowngradeAt = nil
	sub.LastPaymentID = &paymentID
}

// Renew extends the current paid window by one period from its scheduled
// end, so a sweep that runs late does not shorten the next window. A
// non-positive window falls back to RenewalWindow.
func Renew(sub *models.Subscription, now time.Time, window time.Duration) {
	if window <= 0 {
		window = RenewalWindow
	}
	from := sub.EndDate
	if from.Before(now) {
		from = now
	}
	sub.StartDate = sub.EndDate
	sub.EndDate = from.Add(window)
	sub.DowngradeAt = nil
}

// StartGrace drops the row to the free plan and opens the grace window. The
// old paid window is closed at the downgrade instant.
func StartGrace(sub *models.Subscription, freePlan *models.Plan, now time.Time) {
	sub.PlanID = freePlan.ID
	sub.Status = enums.SubscriptionStatusActive
	sub.StartDate = now
	sub.EndDate = now
	sub.AutoRenew = false
	at := now
	sub.DowngradeAt = &at
}

// EndGrace closes the grace window after enforcement has trimmed over-quota
// resources.
func EndGrace(sub *models.Subscription) {
	sub.DowngradeAt = nil
}

// CancelAutoRenew flags the subscription to lapse at the end of the current
// window. The paid window itself stays open; cancellation never takes
// anything away early.
func CancelAutoRenew(sub *models.Subscription) {
	sub.AutoRenew = false
	sub.Status = enums.SubscriptionStatusCanceled
}
