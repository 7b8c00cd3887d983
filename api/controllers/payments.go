package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/billforge/billforge-backend/api/responses"
	"github.com/billforge/billforge-backend/api/validators"
	authsvc "github.com/billforge/billforge-backend/internal/auth"
	paymentsvc "github.com/billforge/billforge-backend/internal/payments"
	"github.com/billforge/billforge-backend/pkg/db/models"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
	"github.com/billforge/billforge-backend/pkg/logger"
)

type createOrderRequest struct {
	PlanID string `json:"plan_id" validate:"required"`
}

type checkoutOrderView struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"key_id"`
	PlanID   string `json:"plan_id"`
}

type verifyPaymentRequest struct {
	OrderID   string `json:"order_id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

type paymentView struct {
	ID              string    `json:"id"`
	OrderID         string    `json:"order_id"`
	PaymentID       string    `json:"payment_id,omitempty"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	Status          string    `json:"status"`
	PlanID          string    `json:"plan_id,omitempty"`
	RefundRequested bool      `json:"refund_requested"`
	CreatedAt       time.Time `json:"created_at"`
}

func toPaymentView(payment *models.Payment) paymentView {
	view := paymentView{
		ID:              payment.ID.String(),
		OrderID:         payment.OrderID,
		PaymentID:       payment.PaymentID,
		Amount:          payment.Amount.StringFixed(2),
		Currency:        payment.CurrencyCode,
		Status:          string(payment.Status),
		RefundRequested: payment.RefundRequested,
		CreatedAt:       payment.CreatedAt,
	}
	if payment.PlanID != nil {
		view.PlanID = *payment.PlanID
	}
	return view
}

// CreatePaymentOrder opens a gateway order for a plan upgrade.
func CreatePaymentOrder(auths authsvc.Service, svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auths == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
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

		order, err := svc.CreateOrder(r.Context(), tenant, payload.PlanID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutOrderView{
			OrderID:  order.OrderID,
			Amount:   order.Amount,
			Currency: order.Currency,
			KeyID:    order.KeyID,
			PlanID:   order.PlanID,
		})
	}
}

// VerifyPayment checks the checkout callback signature and applies the
// payment to the tenant's subscription.
func VerifyPayment(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload verifyPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.VerifyAndApply(r.Context(), payload.OrderID, payload.PaymentID, payload.Signature); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Status(r.Context(), tid, payload.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payment == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found"))
			return
		}

		responses.WriteSuccess(w, toPaymentView(payment))
	}
}

// SyncPayment forces a reconciliation pass for one order against the
// gateway's records. Safe to call repeatedly.
func SyncPayment(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID := chi.URLParam(r, "orderID")
		if orderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id required"))
			return
		}

		if err := svc.ApplyOutcome(r.Context(), orderID, ""); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Status(r.Context(), tid, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payment == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found"))
			return
		}

		responses.WriteSuccess(w, toPaymentView(payment))
	}
}

// PaymentStatus reports one of the tenant's payments, nudging pending orders
// against the gateway before answering.
func PaymentStatus(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID := chi.URLParam(r, "orderID")
		if orderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id required"))
			return
		}

		payment, err := svc.Status(r.Context(), tid, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payment == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found"))
			return
		}

		responses.WriteSuccess(w, toPaymentView(payment))
	}
}
