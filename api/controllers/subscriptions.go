package controllers

import (
	"net/http"
	"time"

	"github.com/billforge/billforge-backend/api/responses"
	subscriptionsvc "github.com/billforge/billforge-backend/internal/subscriptions"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
	"github.com/billforge/billforge-backend/pkg/logger"
)

type subscriptionView struct {
	ID          string     `json:"id"`
	State       string     `json:"state"`
	Status      string     `json:"status"`
	Plan        planView   `json:"plan"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     time.Time  `json:"end_date"`
	AutoRenew   bool       `json:"auto_renew"`
	DowngradeAt *time.Time `json:"downgrade_at,omitempty"`
}

func toSubscriptionView(sub *subscriptionsvc.Subscription) subscriptionView {
	return subscriptionView{
		ID:          sub.Row.ID.String(),
		State:       string(sub.State),
		Status:      string(sub.Row.Status),
		Plan:        toPlanView(sub.Plan),
		StartDate:   sub.Row.StartDate,
		EndDate:     sub.Row.EndDate,
		AutoRenew:   sub.Row.AutoRenew,
		DowngradeAt: sub.Row.DowngradeAt,
	}
}

// GetSubscription returns the tenant's subscription, provisioning the free
// tier on first touch.
func GetSubscription(svc subscriptionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.GetOrProvision(r.Context(), tid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toSubscriptionView(sub))
	}
}

// CancelSubscription turns off auto-renew; the paid window runs to its end.
func CancelSubscription(svc subscriptionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.Cancel(r.Context(), tid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toSubscriptionView(sub))
	}
}
