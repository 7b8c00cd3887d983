package controllers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/billforge/billforge-backend/api/responses"
	"github.com/billforge/billforge-backend/api/validators"
	authsvc "github.com/billforge/billforge-backend/internal/auth"
	billsvc "github.com/billforge/billforge-backend/internal/bills"
	"github.com/billforge/billforge-backend/pkg/db/models"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
	"github.com/billforge/billforge-backend/pkg/logger"
	"github.com/billforge/billforge-backend/pkg/pagination"
)

type createBillRequest struct {
	Number       string          `json:"number" validate:"required"`
	Total        decimal.Decimal `json:"total"`
	CustomerName string          `json:"customer_name"`
}

type billView struct {
	ID           string    `json:"id"`
	Number       string    `json:"number"`
	Total        string    `json:"total"`
	CustomerName string    `json:"customer_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toBillView(bill *models.Bill) billView {
	return billView{
		ID:           bill.ID.String(),
		Number:       bill.Number,
		Total:        bill.Total.StringFixed(2),
		CustomerName: bill.CustomerName,
		CreatedAt:    bill.CreatedAt,
	}
}

// CreateBill records a finalized sale, consuming one unit of bill quota.
func CreateBill(auths authsvc.Service, svc billsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auths == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bill service unavailable"))
			return
		}

		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createBillRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
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

		bill, err := svc.Create(r.Context(), tenant, billsvc.CreateBillInput{
			Number:       payload.Number,
			Total:        payload.Total,
			CustomerName: payload.CustomerName,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toBillView(bill))
	}
}

type billListView struct {
	Bills      []billView `json:"bills"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// ListBills returns one page of the tenant's bills, newest first.
func ListBills(svc billsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bill service unavailable"))
			return
		}

		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), tid, r.URL.Query().Get("cursor"), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]billView, 0, len(page.Bills))
		for i := range page.Bills {
			views = append(views, toBillView(&page.Bills[i]))
		}
		responses.WriteSuccess(w, billListView{Bills: views, NextCursor: page.NextCursor})
	}
}
