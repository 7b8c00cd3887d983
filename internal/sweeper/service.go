package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/billforge/billforge-backend/internal/notifications"
	"github.com/billforge/billforge-backend/internal/plans"
	"github.com/billforge/billforge-backend/internal/products"
	"github.com/billforge/billforge-backend/internal/subscriptions"
	"github.com/billforge/billforge-backend/pkg/db/models"
	"github.com/billforge/billforge-backend/pkg/enums"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
	"github.com/billforge/billforge-backend/pkg/logger"
	"github.com/billforge/billforge-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type tenantRepository interface {
	SetPaidWithTx(tx *gorm.DB, tenantID uuid.UUID, paid bool) error
}

type paymentReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
}

// SweepResult summarizes one sweep pass. Err aggregates per-subscription
// failures; a non-nil Err never means the whole pass was abandoned.
type SweepResult struct {
	Renewed    int
	Downgraded int
	Enforced   int
	Failed     int
	Err        error
}

// Service runs the renewal/downgrade sweep and the grace-period enforcement
// that follows it.
type Service interface {
	Sweep(ctx context.Context, now time.Time) (*SweepResult, error)
}

// ServiceParams groups dependencies for the sweeper.
type ServiceParams struct {
	Subscriptions     subscriptions.Repository
	Payments          paymentReader
	Products          products.Repository
	Plans             plans.Service
	Tenants           tenantRepository
	Notifier          notifications.Sender
	TransactionRunner txRunner
	Logger            *logger.Logger
	Metrics           *metrics.SweepMetrics
	GracePeriod       time.Duration
	RenewalPeriod     time.Duration
	BatchLimit        int
}

type service struct {
	subRepo     subscriptions.Repository
	payments    paymentReader
	products    products.Repository
	plans       plans.Service
	tenants     tenantRepository
	notifier    notifications.Sender
	txRunner    txRunner
	log         *logger.Logger
	metrics     *metrics.SweepMetrics
	gracePeriod time.Duration
	renewal     time.Duration
	batchLimit  int
}

// NewService builds a sweeper service.
func NewService(params ServiceParams) (Service, error) {
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription repo required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment reader required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product repo required")
	}
	if params.Plans == nil {
		return nil, fmt.Errorf("plan service required")
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
	grace := params.GracePeriod
	if grace <= 0 {
		grace = 5 * 24 * time.Hour
	}
	limit := params.BatchLimit
	if limit <= 0 {
		limit = 500
	}
	return &service{
		subRepo:     params.Subscriptions,
		payments:    params.Payments,
		products:    params.Products,
		plans:       params.Plans,
		tenants:     params.Tenants,
		notifier:    params.Notifier,
		txRunner:    params.TransactionRunner,
		log:         params.Logger,
		metrics:     params.Metrics,
		gracePeriod: grace,
		renewal:     params.RenewalPeriod,
		batchLimit:  limit,
	}, nil
}

// Sweep walks expired paid subscriptions, renewing or downgrading each, then
// enforces grace windows that have run out. One broken subscription never
// stops the rest of the batch.
func (s *service) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	result := &SweepResult{}

	freePlan, err := s.plans.FreePlan(ctx)
	if err != nil {
		return nil, err
	}

	expired, err := s.subRepo.ListExpired(ctx, now, s.batchLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list expired subscriptions")
	}
	for i := range expired {
		sub := expired[i]
		if err := s.sweepOne(ctx, &sub, freePlan, now, result); err != nil {
			result.Failed++
			s.metrics.IncOutcome("failed")
			result.Err = multierr.Append(result.Err, fmt.Errorf("tenant %s: %w", sub.TenantID, err))
			s.log.Error(s.log.WithTenantID(ctx, sub.TenantID.String()), "sweep subscription failed", err)
		}
	}

	cutoff := now.Add(-s.gracePeriod)
	graced, err := s.subRepo.ListGraceElapsed(ctx, cutoff, s.batchLimit)
	if err != nil {
		result.Err = multierr.Append(result.Err, err)
		return result, nil
	}
	for i := range graced {
		sub := graced[i]
		enforced, err := s.enforceOne(ctx, &sub, freePlan, now)
		if err != nil {
			result.Failed++
			s.metrics.IncOutcome("failed")
			result.Err = multierr.Append(result.Err, fmt.Errorf("tenant %s: %w", sub.TenantID, err))
			s.log.Error(s.log.WithTenantID(ctx, sub.TenantID.String()), "enforce grace window failed", err)
			continue
		}
		if enforced {
			result.Enforced++
			s.metrics.IncOutcome("enforced")
		}
	}

	return result, nil
}

// sweepOne renews or downgrades a single expired subscription under its row
// lock, re-checking expiry inside the transaction in case a payment landed
// between listing and locking.
func (s *service) sweepOne(ctx context.Context, candidate *models.Subscription, freePlan *models.Plan, now time.Time, result *SweepResult) error {
	var outcome string
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.subRepo.WithTx(tx)
		sub, err := repo.FindByTenantForUpdate(ctx, candidate.TenantID)
		if err != nil {
			return err
		}
		if sub == nil || !sub.Expired(now) || sub.InGrace() {
			return nil
		}

		if s.shouldRenew(ctx, sub) {
			subscriptions.Renew(sub, now, s.renewal)
			if err := repo.Update(ctx, sub); err != nil {
				return err
			}
			outcome = "renewed"
			return nil
		}

		subscriptions.StartGrace(sub, freePlan, now)
		if err := repo.Update(ctx, sub); err != nil {
			return err
		}
		if err := s.tenants.SetPaidWithTx(tx, sub.TenantID, false); err != nil {
			return err
		}
		outcome = "downgraded"
		return nil
	})
	if err != nil {
		return err
	}

	switch outcome {
	case "renewed":
		result.Renewed++
		s.metrics.IncOutcome("renewed")
	case "downgraded":
		result.Downgraded++
		s.metrics.IncOutcome("downgraded")
		s.notifyDowngrade(ctx, candidate.TenantID, freePlan)
	}
	return nil
}

// shouldRenew requires both the tenant's standing instruction and a settled
// last payment. A missing or failed last payment means the money is not
// there to renew on.
func (s *service) shouldRenew(ctx context.Context, sub *models.Subscription) bool {
	if !sub.AutoRenew || sub.LastPaymentID == nil {
		return false
	}
	payment, err := s.payments.FindByID(ctx, *sub.LastPaymentID)
	if err != nil || payment == nil {
		return false
	}
	return payment.Status == enums.PaymentStatusSuccess
}

// enforceOne trims the tenant's catalog down to the free plan's product
// limit, keeping the earliest-created rows, then closes the grace window.
func (s *service) enforceOne(ctx context.Context, candidate *models.Subscription, freePlan *models.Plan, now time.Time) (bool, error) {
	var enforced bool
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.subRepo.WithTx(tx)
		sub, err := repo.FindByTenantForUpdate(ctx, candidate.TenantID)
		if err != nil {
			return err
		}
		if sub == nil || !sub.InGrace() {
			return nil
		}
		if now.Sub(*sub.DowngradeAt) <= s.gracePeriod {
			return nil
		}

		limit := freePlan.LimitFor(enums.MetricProducts)
		if limit >= 0 {
			productRepo := s.products.WithTx(tx)
			excess, err := productRepo.ListNewestBeyond(ctx, sub.TenantID, limit)
			if err != nil {
				return err
			}
			if len(excess) > 0 {
				ids := make([]uuid.UUID, 0, len(excess))
				for i := range excess {
					ids = append(ids, excess[i].ID)
				}
				if _, err := productRepo.DeleteByIDs(ctx, sub.TenantID, ids); err != nil {
					return err
				}
			}
		}

		subscriptions.EndGrace(sub)
		if err := repo.Update(ctx, sub); err != nil {
			return err
		}
		enforced = true
		return nil
	})
	return enforced, err
}

func (s *service) notifyDowngrade(ctx context.Context, tenantID uuid.UUID, freePlan *models.Plan) {
	msg := notifications.Message{
		TenantID: tenantID,
		Subject:  "Subscription expired",
		Body:     fmt.Sprintf("Your subscription has lapsed; your account is now on the %s plan.", freePlan.DisplayName),
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.log.Warn(s.log.WithTenantID(ctx, tenantID.String()), "downgrade notification failed")
	}
}
