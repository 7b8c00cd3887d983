package controllers

import (
	"net/http"

	"github.com/billforge/billforge-backend/api/responses"
	plansvc "github.com/billforge/billforge-backend/internal/plans"
	"github.com/billforge/billforge-backend/pkg/db/models"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
	"github.com/billforge/billforge-backend/pkg/logger"
)

type planView struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	DisplayName string           `json:"display_name"`
	IsFree      bool             `json:"is_free"`
	Price       string           `json:"price"`
	Currency    string           `json:"currency"`
	Features    []string         `json:"features"`
	Limits      map[string]int64 `json:"limits"`
}

func toPlanView(plan *models.Plan) planView {
	view := planView{
		ID:          plan.ID,
		Name:        plan.Name,
		DisplayName: plan.DisplayName,
		IsFree:      plan.IsFree,
		Price:       plan.PriceAmount.StringFixed(2),
		Currency:    plan.CurrencyCode,
		Features:    []string(plan.Features),
		Limits:      map[string]int64(plan.Limits),
	}
	if view.Features == nil {
		view.Features = []string{}
	}
	if view.Limits == nil {
		view.Limits = map[string]int64{}
	}
	return view
}

// ListPlans returns the active catalog tiers a tenant can subscribe to.
func ListPlans(svc plansvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		plans, err := svc.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]planView, 0, len(plans))
		for i := range plans {
			views = append(views, toPlanView(&plans[i]))
		}
		responses.WriteSuccess(w, views)
	}
}
