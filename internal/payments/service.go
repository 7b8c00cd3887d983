package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/billforge/billforge-backend/internal/notifications"
	"github.com/billforge/billforge-backend/internal/plans"
	"github.com/billforge/billforge-backend/internal/subscriptions"
	"github.com/billforge/billforge-backend/pkg/db/models"
	"github.com/billforge/billforge-backend/pkg/enums"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
	"github.com/billforge/billforge-backend/pkg/logger"
	"github.com/billforge/billforge-backend/pkg/razorpay"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type tenantRepository interface {
	SetPaidWithTx(tx *gorm.DB, tenantID uuid.UUID, paid bool) error
}

// CheckoutOrder is what the client needs to open the gateway's checkout.
type CheckoutOrder struct {
	OrderID  string
	Amount   int64
	Currency string
	KeyID    string
	PlanID   string
}

// Service coordinates gateway payments and subscription reconciliation.
type Service interface {
	CreateOrder(ctx context.Context, tenant *models.Tenant, planID string) (*CheckoutOrder, error)
	VerifyAndApply(ctx context.Context, orderID, paymentID, signature string) error
	ApplyOutcome(ctx context.Context, orderID, gatewayPaymentID string) error
	HandleFailure(ctx context.Context, orderID string, moneyMoved bool) error
	Status(ctx context.Context, tenantID uuid.UUID, orderID string) (*models.Payment, error)
}

// ServiceParams groups dependencies for the payment service.
type ServiceParams struct {
	Repo              Repository
	SubscriptionRepo  subscriptions.Repository
	Plans             plans.Service
	Gateway           razorpay.Gateway
	Tenants           tenantRepository
	Notifier          notifications.Sender
	TransactionRunner txRunner
	Logger            *logger.Logger
	KeyID             string
	RenewalPeriod     time.Duration
	Now               func() time.Time
}

type service struct {
	repo     Repository
	subRepo  subscriptions.Repository
	plans    plans.Service
	gateway  razorpay.Gateway
	tenants  tenantRepository
	notifier notifications.Sender
	txRunner txRunner
	log      *logger.Logger
	keyID    string
	renewal  time.Duration
	now      func() time.Time
}

// NewService builds a payment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payment repo required")
	}
	if params.SubscriptionRepo == nil {
		return nil, fmt.Errorf("subscription repo required")
	}
	if params.Plans == nil {
		return nil, fmt.Errorf("plan service required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if params.Tenants == nil {
		return nil, fmt.Errorf("tenant repo required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		subRepo:  params.SubscriptionRepo,
		plans:    params.Plans,
		gateway:  params.Gateway,
		tenants:  params.Tenants,
		notifier: params.Notifier,
		txRunner: params.TransactionRunner,
		log:      params.Logger,
		keyID:    params.KeyID,
		renewal:  params.RenewalPeriod,
		now:      now,
	}, nil
}

// CreateOrder opens a gateway order for a paid plan and records a PENDING
// payment row keyed by the gateway order id. The plan id rides along in the
// order notes so reconciliation can resolve it without guessing by price.
func (s *service) CreateOrder(ctx context.Context, tenant *models.Tenant, planID string) (*CheckoutOrder, error) {
	if tenant == nil || tenant.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant is required")
	}
	plan, err := s.plans.Get(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.IsFree {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "free plan cannot be purchased")
	}
	if plan.Status != enums.PlanStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan is not available")
	}

	paise := plan.PriceAmount.Mul(decimal.NewFromInt(100)).IntPart()
	order, err := s.gateway.CreateOrder(ctx, paise, plan.CurrencyCode, map[string]string{
		"plan_id":   plan.ID,
		"tenant_id": tenant.ID.String(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create gateway order")
	}

	payment := &models.Payment{
		TenantID:     tenant.ID,
		OrderID:      order.ID,
		Amount:       plan.PriceAmount,
		CurrencyCode: plan.CurrencyCode,
		Status:       enums.PaymentStatusPending,
		PlanID:       &plan.ID,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment")
	}

	return &CheckoutOrder{
		OrderID:  order.ID,
		Amount:   paise,
		Currency: plan.CurrencyCode,
		KeyID:    s.keyID,
		PlanID:   plan.ID,
	}, nil
}

// VerifyAndApply checks the checkout callback signature before reconciling.
// A bad signature mutates nothing. The payment is re-read from the gateway
// so a signed callback for an uncaptured attempt cannot activate anything.
func (s *service) VerifyAndApply(ctx context.Context, orderID, paymentID, signature string) error {
	if orderID == "" || paymentID == "" || signature == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id, payment id and signature are required")
	}
	if !s.gateway.VerifyPaymentSignature(orderID, paymentID, signature) {
		return pkgerrors.New(pkgerrors.CodeSignatureInvalid, "payment signature mismatch")
	}

	attempt, err := s.gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch gateway payment")
	}
	switch attempt.Status {
	case "captured", "authorized":
		return s.ApplyOutcome(ctx, orderID, paymentID)
	case "failed":
		if err := s.HandleFailure(ctx, orderID, false); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment attempt failed at the gateway")
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not captured yet").WithDetails(map[string]any{
			"gateway_status": attempt.Status,
		})
	}
}

// ApplyOutcome is the single reconciliation path every entry point funnels
// through: webhook, checkout verify, status polling and manual sync. It is
// idempotent; replaying a processed order is a no-op.
func (s *service) ApplyOutcome(ctx context.Context, orderID, gatewayPaymentID string) error {
	if orderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	payment, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find payment")
	}
	if payment == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "unknown order")
	}
	if payment.Status == enums.PaymentStatusSuccess && payment.SubscriptionID != nil {
		return nil
	}

	// Without a captured payment id we only have the order to go on; an
	// unpaid order means the money has not landed and nothing may change.
	// For a paid order the captured attempt is backfilled from the gateway
	// so the payment row carries the real gateway payment id.
	if gatewayPaymentID == "" {
		order, err := s.gateway.FetchOrder(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch gateway order")
		}
		if order.Status != "paid" {
			return nil
		}
		attempts, err := s.gateway.PaymentsForOrder(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list gateway payments")
		}
		for _, attempt := range attempts {
			if attempt.Status == "captured" {
				gatewayPaymentID = attempt.ID
				break
			}
		}
	}

	plan, err := s.resolvePlan(ctx, payment)
	if err != nil {
		return err
	}

	var (
		applied bool
		tenant  = payment.TenantID
		written *models.Payment
		sub     *models.Subscription
		now     time.Time
	)
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		subRepo := s.subRepo.WithTx(tx)

		locked, err := repo.FindByOrderIDForUpdate(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock payment")
		}
		if locked == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "unknown order")
		}
		if locked.Status == enums.PaymentStatusSuccess && locked.SubscriptionID != nil {
			return nil
		}

		now = s.now()
		sub, err = subRepo.FindByTenantForUpdate(ctx, locked.TenantID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock subscription")
		}
		if sub == nil {
			sub = &models.Subscription{TenantID: locked.TenantID}
			subscriptions.ApplyPaidPlan(sub, plan, locked.ID, now, s.renewal)
			if err := subRepo.Create(ctx, sub); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create subscription")
			}
		} else {
			subscriptions.ApplyPaidPlan(sub, plan, locked.ID, now, s.renewal)
			if err := subRepo.Update(ctx, sub); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update subscription")
			}
		}

		locked.Status = enums.PaymentStatusSuccess
		if gatewayPaymentID != "" {
			locked.PaymentID = gatewayPaymentID
		}
		locked.PlanID = &plan.ID
		locked.SubscriptionID = &sub.ID
		if err := repo.Update(ctx, locked); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update payment")
		}
		if err := s.tenants.SetPaidWithTx(tx, locked.TenantID, true); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark tenant paid")
		}

		written = locked
		applied = true
		return nil
	})
	if err != nil {
		return err
	}

	if applied {
		// Verification must see committed state, so it runs outside the
		// transaction. A re-read inside the same tx would always agree
		// with the writes it just made.
		if err := s.verifyApplied(ctx, written, plan, sub, now); err != nil {
			return err
		}
		s.notifyUpgrade(ctx, tenant, plan)
	}
	return nil
}

// verifyApplied re-reads the subscription after commit and attempts one
// corrective rewrite before declaring the reconciliation broken.
func (s *service) verifyApplied(ctx context.Context, payment *models.Payment, plan *models.Plan, sub *models.Subscription, now time.Time) error {
	check, err := s.subRepo.FindByTenant(ctx, payment.TenantID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify subscription")
	}
	if subscriptionConverged(check, plan, now) {
		return nil
	}

	subscriptions.ApplyPaidPlan(sub, plan, payment.ID, now, s.renewal)
	if err := s.subRepo.Update(ctx, sub); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rewrite subscription")
	}
	check, err = s.subRepo.FindByTenant(ctx, payment.TenantID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify subscription")
	}
	if subscriptionConverged(check, plan, now) {
		return nil
	}

	logCtx := s.log.WithTenantID(ctx, payment.TenantID.String())
	mismatch := pkgerrors.New(pkgerrors.CodeReconciliationMismatch, "subscription state did not converge after payment").WithDetails(map[string]any{
		"order_id": payment.OrderID,
		"plan_id":  plan.ID,
	})
	s.log.Error(logCtx, "reconciliation mismatch", mismatch)
	return mismatch
}

func subscriptionConverged(sub *models.Subscription, plan *models.Plan, now time.Time) bool {
	return sub != nil && sub.PlanID == plan.ID && sub.EndDate.After(now) && sub.DowngradeAt == nil
}

// HandleFailure records a failed attempt. moneyMoved flags attempts where
// the gateway may have captured funds, so support can refund.
func (s *service) HandleFailure(ctx context.Context, orderID string, moneyMoved bool) error {
	if orderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := repo.FindByOrderIDForUpdate(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock payment")
		}
		if payment == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "unknown order")
		}
		if payment.Status == enums.PaymentStatusSuccess {
			// The happy path already won; a late failure signal is stale.
			return nil
		}
		payment.Status = enums.PaymentStatusFailed
		if moneyMoved {
			payment.RefundRequested = true
		}
		return repo.Update(ctx, payment)
	})
}

// Status returns the payment row for polling clients, nudging a pending
// order through reconciliation first so the poll can observe the result.
func (s *service) Status(ctx context.Context, tenantID uuid.UUID, orderID string) (*models.Payment, error) {
	payment, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find payment")
	}
	if payment == nil || payment.TenantID != tenantID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown order")
	}
	if payment.Status == enums.PaymentStatusPending {
		if err := s.ApplyOutcome(ctx, orderID, ""); err != nil {
			appErr := pkgerrors.As(err)
			if appErr == nil || appErr.Code() != pkgerrors.CodePlanUnresolvable {
				return nil, err
			}
			// Unresolvable stays pending for manual sync; surface the row.
			s.log.Warn(s.log.WithTenantID(ctx, tenantID.String()), "payment pending: plan unresolvable")
		}
		payment, err = s.repo.FindByOrderID(ctx, orderID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload payment")
		}
	}
	return payment, nil
}

// resolvePlan maps a payment to the plan it buys: the note captured at order
// creation wins, then the gateway order's notes, then a unique price match.
func (s *service) resolvePlan(ctx context.Context, payment *models.Payment) (*models.Plan, error) {
	if payment.PlanID != nil && *payment.PlanID != "" {
		plan, err := s.plans.Get(ctx, *payment.PlanID)
		if err == nil {
			return plan, nil
		}
	}
	order, err := s.gateway.FetchOrder(ctx, payment.OrderID)
	if err == nil && order.Notes["plan_id"] != "" {
		plan, err := s.plans.Get(ctx, order.Notes["plan_id"])
		if err == nil {
			return plan, nil
		}
	}
	return s.plans.ResolveByPrice(ctx, payment.Amount)
}

func (s *service) notifyUpgrade(ctx context.Context, tenantID uuid.UUID, plan *models.Plan) {
	msg := notifications.Message{
		TenantID: tenantID,
		Subject:  "Subscription activated",
		Body:     fmt.Sprintf("Your %s plan is now active.", plan.DisplayName),
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.log.Warn(s.log.WithTenantID(ctx, tenantID.String()), "upgrade notification failed")
	}
}
