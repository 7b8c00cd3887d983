package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/billforge/billforge-backend/api/responses"
	"github.com/billforge/billforge-backend/api/validators"
	authsvc "github.com/billforge/billforge-backend/internal/auth"
	accountsvc "github.com/billforge/billforge-backend/internal/billingaccounts"
	"github.com/billforge/billforge-backend/pkg/db/models"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
	"github.com/billforge/billforge-backend/pkg/logger"
	"github.com/billforge/billforge-backend/pkg/pagination"
)

type createAccountRequest struct {
	Label   string `json:"label" validate:"required"`
	AdminID string `json:"admin_id"`
}

type accountView struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	AdminID   string    `json:"admin_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toAccountView(account *models.BillingAccount) accountView {
	view := accountView{
		ID:        account.ID.String(),
		Label:     account.Label,
		CreatedAt: account.CreatedAt,
	}
	if account.AdminID != nil {
		view.AdminID = account.AdminID.String()
	}
	return view
}

// CreateBillingAccount opens a cashier seat, consuming one unit of seat quota.
func CreateBillingAccount(auths authsvc.Service, svc accountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auths == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing account service unavailable"))
			return
		}

		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createAccountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var adminID *uuid.UUID
		if payload.AdminID != "" {
			parsed, err := uuid.Parse(payload.AdminID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid admin id"))
				return
			}
			adminID = &parsed
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

		account, err := svc.Create(r.Context(), tenant, accountsvc.CreateAccountInput{
			Label:   payload.Label,
			AdminID: adminID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toAccountView(account))
	}
}

type accountListView struct {
	Accounts   []accountView `json:"accounts"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// ListBillingAccounts returns one page of the tenant's cashier seats.
func ListBillingAccounts(svc accountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing account service unavailable"))
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

		views := make([]accountView, 0, len(page.Accounts))
		for i := range page.Accounts {
			views = append(views, toAccountView(&page.Accounts[i]))
		}
		responses.WriteSuccess(w, accountListView{Accounts: views, NextCursor: page.NextCursor})
	}
}

// DeleteBillingAccount closes a cashier seat.
func DeleteBillingAccount(svc accountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing account service unavailable"))
			return
		}

		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid account id"))
			return
		}

		if err := svc.Delete(r.Context(), tid, accountID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
