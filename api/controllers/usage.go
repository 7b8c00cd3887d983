package controllers

import (
	"net/http"
	"time"

	"github.com/billforge/billforge-backend/api/responses"
	authsvc "github.com/billforge/billforge-backend/internal/auth"
	quotasvc "github.com/billforge/billforge-backend/internal/quota"
	subscriptionsvc "github.com/billforge/billforge-backend/internal/subscriptions"
	dbtypes "github.com/billforge/billforge-backend/pkg/db/types"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
	"github.com/billforge/billforge-backend/pkg/logger"
)

type usageView struct {
	Metric      string    `json:"metric"`
	Current     int64     `json:"current"`
	Limit       int64     `json:"limit"`
	Unlimited   bool      `json:"unlimited"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

type usageResponse struct {
	Plan    planView    `json:"plan"`
	Metrics []usageView `json:"metrics"`
}

// GetUsage reports the tenant's quota counters for the current billing month.
func GetUsage(auths authsvc.Service, subs subscriptionsvc.Service, quotas quotasvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auths == nil || subs == nil || quotas == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "usage services unavailable"))
			return
		}

		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tenant, err := auths.Tenant(r.Context(), tid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if tenant == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found"))
			return
		}

		sub, err := subs.GetOrProvision(r.Context(), tid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		records, err := quotas.Usage(r.Context(), tenant, sub.Plan)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]usageView, 0, len(records))
		for _, record := range records {
			views = append(views, usageView{
				Metric:      string(record.Metric),
				Current:     record.CurrentValue,
				Limit:       record.LimitValue,
				Unlimited:   record.LimitValue == dbtypes.UnlimitedLimit,
				PeriodStart: record.PeriodStart,
				PeriodEnd:   record.PeriodEnd,
			})
		}
		responses.WriteSuccess(w, usageResponse{
			Plan:    toPlanView(sub.Plan),
			Metrics: views,
		})
	}
}
