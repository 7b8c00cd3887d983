package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/billforge/billforge-backend/internal/plans"
	"github.com/billforge/billforge-backend/pkg/db/models"
	"github.com/billforge/billforge-backend/pkg/enums"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Subscription pairs the stored row with its plan and derived state for
// callers that render or gate on it.
type Subscription struct {
	Row   *models.Subscription
	Plan  *models.Plan
	State State
}

// Service owns the subscription lifecycle for a tenant.
type Service interface {
	GetOrProvision(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)
	Cancel(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo              Repository
	Plans             plans.Service
	TransactionRunner txRunner
	Now               func() time.Time
}

type service struct {
	repo     Repository
	plans    plans.Service
	txRunner txRunner
	now      func() time.Time
}

// NewService builds a subscription service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repo required")
	}
	if params.Plans == nil {
		return nil, fmt.Errorf("plan service required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		plans:    params.Plans,
		txRunner: params.TransactionRunner,
		now:      now,
	}, nil
}

// GetOrProvision returns the tenant's subscription, creating a free-plan row
// on first touch so every tenant always has exactly one.
func (s *service) GetOrProvision(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	sub, err := s.repo.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find subscription")
	}
	if sub == nil {
		sub, err = s.provisionFree(ctx, tenantID)
		if err != nil {
			return nil, err
		}
	}
	return s.decorate(ctx, sub)
}

// Cancel turns auto-renew off. The paid window stays open until its end
// date; the sweeper handles the downgrade when it lapses. Cancelling an
// already-canceled or free subscription is a no-op, not an error.
func (s *service) Cancel(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}

	var updated *models.Subscription
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sub, err := repo.FindByTenantForUpdate(ctx, tenantID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find subscription")
		}
		if sub == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		if sub.AutoRenew || sub.Status != enums.SubscriptionStatusCanceled {
			CancelAutoRenew(sub)
			if err := repo.Update(ctx, sub); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update subscription")
			}
		}
		updated = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, updated)
}

func (s *service) provisionFree(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	freePlan, err := s.plans.FreePlan(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	sub := &models.Subscription{
		TenantID:  tenantID,
		PlanID:    freePlan.ID,
		Status:    enums.SubscriptionStatusActive,
		StartDate: now,
		EndDate:   now,
		AutoRenew: false,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		// Two first touches can race; the loser reads the winner's row.
		existing, findErr := s.repo.FindByTenant(ctx, tenantID)
		if findErr == nil && existing != nil {
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "provision subscription")
	}
	return sub, nil
}

func (s *service) decorate(ctx context.Context, sub *models.Subscription) (*Subscription, error) {
	plan, err := s.plans.Get(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	return &Subscription{
		Row:   sub,
		Plan:  plan,
		State: StateOf(sub, plan, s.now()),
	}, nil
}
