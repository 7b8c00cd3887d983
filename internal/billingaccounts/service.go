package billingaccounts

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/billforge/billforge-backend/internal/quota"
	"github.com/billforge/billforge-backend/internal/subscriptions"
	"github.com/billforge/billforge-backend/pkg/db/models"
	"github.com/billforge/billforge-backend/pkg/enums"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
	"github.com/billforge/billforge-backend/pkg/pagination"
)

// CreateAccountInput captures a cashier seat request.
type CreateAccountInput struct {
	Label   string
	AdminID *uuid.UUID
}

// AccountPage is one page of a tenant's cashier seats, newest first.
// NextCursor is empty on the last page.
type AccountPage struct {
	Accounts   []models.BillingAccount
	NextCursor string
}

// Service manages cashier seats, with creation gated on the seat quota.
type Service interface {
	Create(ctx context.Context, tenant *models.Tenant, input CreateAccountInput) (*models.BillingAccount, error)
	List(ctx context.Context, tenantID uuid.UUID, cursor string, limit int) (*AccountPage, error)
	Delete(ctx context.Context, tenantID, accountID uuid.UUID) error
}

// ServiceParams groups dependencies for the billing account service.
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

// NewService builds a billing account service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("billing account repo required")
	}
	if params.Quota == nil {
		return nil, fmt.Errorf("quota service required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription service required")
	}
	return &service{repo: params.Repo, quota: params.Quota, subs: params.Subscriptions}, nil
}

func (s *service) Create(ctx context.Context, tenant *models.Tenant, input CreateAccountInput) (*models.BillingAccount, error) {
	if tenant == nil || tenant.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant is required")
	}
	label := strings.TrimSpace(input.Label)
	if label == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account label is required")
	}

	sub, err := s.subs.GetOrProvision(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}
	if err := s.quota.CheckAndIncrement(ctx, tenant, sub.Plan, enums.MetricBillingAccounts, 1); err != nil {
		return nil, err
	}

	account := &models.BillingAccount{
		TenantID: tenant.ID,
		Label:    label,
		AdminID:  input.AdminID,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create billing account")
	}
	return account, nil
}

func (s *service) List(ctx context.Context, tenantID uuid.UUID, cursor string, limit int) (*AccountPage, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	parsed, err := pagination.ParseCursor(cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	pageSize := pagination.NormalizeLimit(limit)
	accounts, err := s.repo.ListByTenant(ctx, tenantID, parsed, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list billing accounts")
	}

	next := ""
	if len(accounts) > pageSize {
		accounts = accounts[:pageSize]
		last := accounts[len(accounts)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return &AccountPage{Accounts: accounts, NextCursor: next}, nil
}

func (s *service) Delete(ctx context.Context, tenantID, accountID uuid.UUID) error {
	if tenantID == uuid.Nil || accountID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id and account id are required")
	}
	account, err := s.repo.FindByID(ctx, tenantID, accountID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find billing account")
	}
	if account == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "billing account not found")
	}
	if err := s.repo.Delete(ctx, tenantID, accountID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete billing account")
	}
	return nil
}
