package bills

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/billforge/billforge-backend/internal/quota"
	"github.com/billforge/billforge-backend/internal/subscriptions"
	"github.com/billforge/billforge-backend/pkg/db/models"
	"github.com/billforge/billforge-backend/pkg/enums"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
	"github.com/billforge/billforge-backend/pkg/pagination"
)

// CreateBillInput captures a finalized sale.
type CreateBillInput struct {
	Number       string
	Total        decimal.Decimal
	CustomerName string
}

// BillPage is one page of a tenant's bills, newest first. NextCursor is
// empty on the last page.
type BillPage struct {
	Bills      []models.Bill
	NextCursor string
}

// Service records tenant bills, with creation gated on the monthly bill quota.
type Service interface {
	Create(ctx context.Context, tenant *models.Tenant, input CreateBillInput) (*models.Bill, error)
	List(ctx context.Context, tenantID uuid.UUID, cursor string, limit int) (*BillPage, error)
}

// ServiceParams groups dependencies for the bill service.
type ServiceParams struct {
	Repo          Repository
	Quota         quota.Service
	Subscriptions subscriptions.Service
}

type service struct {
	repo  Repository
	quota quota.Service
	subs  subscriptions.Service
}

// NewService builds a bill service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("bill repo required")
	}
	if params.Quota == nil {
		return nil, fmt.Errorf("quota service required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription service required")
	}
	return &service{repo: params.Repo, quota: params.Quota, subs: params.Subscriptions}, nil
}

func (s *service) Create(ctx context.Context, tenant *models.Tenant, input CreateBillInput) (*models.Bill, error) {
	if tenant == nil || tenant.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant is required")
	}
	number := strings.TrimSpace(input.Number)
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bill number is required")
	}
	if input.Total.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total cannot be negative")
	}

	sub, err := s.subs.GetOrProvision(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}
	if err := s.quota.CheckAndIncrement(ctx, tenant, sub.Plan, enums.MetricBills, 1); err != nil {
		return nil, err
	}

	bill := &models.Bill{
		TenantID:     tenant.ID,
		Number:       number,
		Total:        input.Total,
		CustomerName: strings.TrimSpace(input.CustomerName),
	}
	if err := s.repo.Create(ctx, bill); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create bill")
	}
	return bill, nil
}

func (s *service) List(ctx context.Context, tenantID uuid.UUID, cursor string, limit int) (*BillPage, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	parsed, err := pagination.ParseCursor(cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	pageSize := pagination.NormalizeLimit(limit)
	bills, err := s.repo.ListByTenant(ctx, tenantID, parsed, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list bills")
	}

	next := ""
	if len(bills) > pageSize {
		bills = bills[:pageSize]
		last := bills[len(bills)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return &BillPage{Bills: bills, NextCursor: next}, nil
}
