package products

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

// CreateProductInput captures the data required to add a catalog entry.
type CreateProductInput struct {
	Name  string
	SKU   string
	Price decimal.Decimal
	Stock int64
}

// ProductPage is one page of a tenant's catalog, newest first. NextCursor is
// empty on the last page.
type ProductPage struct {
	Products   []models.Product
	NextCursor string
}

// Service owns tenant product catalogs, with creation gated on plan quota.
type Service interface {
	Create(ctx context.Context, tenant *models.Tenant, input CreateProductInput) (*models.Product, error)
	List(ctx context.Context, tenantID uuid.UUID, cursor string, limit int) (*ProductPage, error)
	Delete(ctx context.Context, tenantID, productID uuid.UUID) error
}

// ServiceParams groups dependencies for the product service.
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

// NewService builds a product service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("product repo required")
	}
	if params.Quota == nil {
		return nil, fmt.Errorf("quota service required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription service required")
	}
	return &service{repo: params.Repo, quota: params.Quota, subs: params.Subscriptions}, nil
}

func (s *service) Create(ctx context.Context, tenant *models.Tenant, input CreateProductInput) (*models.Product, error) {
	if tenant == nil || tenant.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}

	sub, err := s.subs.GetOrProvision(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}
	if err := s.quota.CheckAndIncrement(ctx, tenant, sub.Plan, enums.MetricProducts, 1); err != nil {
		return nil, err
	}

	product := &models.Product{
		TenantID: tenant.ID,
		Name:     name,
		SKU:      strings.TrimSpace(input.SKU),
		Price:    input.Price,
		Stock:    input.Stock,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
	}
	return product, nil
}

func (s *service) List(ctx context.Context, tenantID uuid.UUID, cursor string, limit int) (*ProductPage, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	parsed, err := pagination.ParseCursor(cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	pageSize := pagination.NormalizeLimit(limit)
	products, err := s.repo.ListByTenant(ctx, tenantID, parsed, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}

	next := ""
	if len(products) > pageSize {
		products = products[:pageSize]
		last := products[len(products)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return &ProductPage{Products: products, NextCursor: next}, nil
}

func (s *service) Delete(ctx context.Context, tenantID, productID uuid.UUID) error {
	if tenantID == uuid.Nil || productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id and product id are required")
	}
	product, err := s.repo.FindByID(ctx, tenantID, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find product")
	}
	if product == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err := s.repo.Delete(ctx, tenantID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete product")
	}
	return nil
}
