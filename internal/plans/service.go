package plans

import (
	"context"
	"fmt"

	"github.com/billforge/billforge-backend/pkg/db/models"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// Service exposes the plan catalog.
type Service interface {
	Get(ctx context.Context, id string) (*models.Plan, error)
	ListActive(ctx context.Context) ([]models.Plan, error)
	FreePlan(ctx context.Context) (*models.Plan, error)
	ResolveByPrice(ctx context.Context, amount decimal.Decimal) (*models.Plan, error)
}

// ServiceParams groups dependencies for the plan service.
type ServiceParams struct {
	Repo Repository
}

type service struct {
	repo Repository
}

// NewService builds a plan service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("plan repo required")
	}
	return &service{repo: params.Repo}, nil
}

func (s *service) Get(ctx context.Context, id string) (*models.Plan, error) {
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id is required")
	}
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find plan")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	return plan, nil
}

func (s *service) ListActive(ctx context.Context) ([]models.Plan, error) {
	plans, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list plans")
	}
	return plans, nil
}

// FreePlan returns the active free plan every tenant lands on by default.
func (s *service) FreePlan(ctx context.Context) (*models.Plan, error) {
	plan, err := s.repo.FindFreePlan(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find free plan")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "free plan is not configured")
	}
	return plan, nil
}

// ResolveByPrice maps a captured payment amount back to a paid plan. The
// match must be unique: zero or multiple candidates mean the payment cannot
// be attributed to a plan and must not activate anything.
func (s *service) ResolveByPrice(ctx context.Context, amount decimal.Decimal) (*models.Plan, error) {
	candidates, err := s.repo.FindActiveByPrice(ctx, amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find plans by price")
	}
	switch len(candidates) {
	case 0:
		return nil, pkgerrors.New(pkgerrors.CodePlanUnresolvable, "no active plan matches the paid amount")
	case 1:
		return &candidates[0], nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodePlanUnresolvable, "multiple plans match the paid amount")
	}
}
