package plans

import (
	"context"
	"testing"

	"github.com/billforge/billforge-backend/pkg/db/models"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type stubPlanRepo struct {
	plans      map[string]*models.Plan
	active     []models.Plan
	free       *models.Plan
	byPrice    []models.Plan
	findErr    error
	listErr    error
	freeErr    error
	byPriceErr error
	lastAmount decimal.Decimal
}

func (s *stubPlanRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubPlanRepo) FindByID(ctx context.Context, id string) (*models.Plan, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.plans[id], nil
}

func (s *stubPlanRepo) ListActive(ctx context.Context) ([]models.Plan, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.active, nil
}

func (s *stubPlanRepo) FindFreePlan(ctx context.Context) (*models.Plan, error) {
	if s.freeErr != nil {
		return nil, s.freeErr
	}
	return s.free, nil
}

func (s *stubPlanRepo) FindActiveByPrice(ctx context.Context, amount decimal.Decimal) ([]models.Plan, error) {
	s.lastAmount = amount
	if s.byPriceErr != nil {
		return nil, s.byPriceErr
	}
	return s.byPrice, nil
}

func TestGetPlanNotFound(t *testing.T) {
	svc, err := NewService(ServiceParams{Repo: &stubPlanRepo{plans: map[string]*models.Plan{}}})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.Get(context.Background(), "ghost")
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestResolveByPriceUniqueMatch(t *testing.T) {
	starter := models.Plan{ID: "starter", PriceAmount: decimal.NewFromInt(499)}
	repo := &stubPlanRepo{byPrice: []models.Plan{starter}}
	svc, err := NewService(ServiceParams{Repo: repo})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	plan, err := svc.ResolveByPrice(context.Background(), decimal.NewFromInt(499))
	if err != nil {
		t.Fatalf("ResolveByPrice: %v", err)
	}
	if plan.ID != "starter" {
		t.Fatalf("expected starter, got %s", plan.ID)
	}
	if !repo.lastAmount.Equal(decimal.NewFromInt(499)) {
		t.Fatalf("repo queried with %s", repo.lastAmount)
	}
}

func TestResolveByPriceNoMatch(t *testing.T) {
	svc, err := NewService(ServiceParams{Repo: &stubPlanRepo{}})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.ResolveByPrice(context.Background(), decimal.NewFromInt(42))
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodePlanUnresolvable {
		t.Fatalf("expected plan unresolvable, got %v", err)
	}
}

func TestResolveByPriceAmbiguousMatch(t *testing.T) {
	price := decimal.NewFromInt(999)
	repo := &stubPlanRepo{byPrice: []models.Plan{
		{ID: "legacy", PriceAmount: price},
		{ID: "growth", PriceAmount: price},
	}}
	svc, err := NewService(ServiceParams{Repo: repo})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.ResolveByPrice(context.Background(), price)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodePlanUnresolvable {
		t.Fatalf("expected plan unresolvable on ambiguity, got %v", err)
	}
}

func TestFreePlanMissingIsInternal(t *testing.T) {
	svc, err := NewService(ServiceParams{Repo: &stubPlanRepo{}})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.FreePlan(context.Background())
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}
