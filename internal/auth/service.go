package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgauth "github.com/billforge/billforge-backend/pkg/auth"
	"github.com/billforge/billforge-backend/pkg/config"
	"github.com/billforge/billforge-backend/pkg/db/models"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
	"github.com/billforge/billforge-backend/pkg/security"
)

// LoginInput captures an admin login attempt.
type LoginInput struct {
	Email    string
	Password string
}

// LoginResult is the issued token plus the identity it represents.
type LoginResult struct {
	AccessToken string
	Admin       *models.Admin
	Tenant      *models.Tenant
}

// Service authenticates tenant admins.
type Service interface {
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	Tenant(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error)
}

// ServiceParams groups dependencies for the auth service.
type ServiceParams struct {
	Repo Repository
	JWT  config.JWTConfig
	Now  func() time.Time
}

type service struct {
	repo Repository
	jwt  config.JWTConfig
	now  func() time.Time
}

// NewService builds an auth service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("identity repo required")
	}
	if params.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt config required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, jwt: params.JWT, now: now}, nil
}

// Login verifies credentials and mints an access token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	admin, err := s.repo.FindAdminByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find admin")
	}
	if admin == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	ok, err := security.VerifyPassword(input.Password, admin.PasswordHash)
	if err != nil || !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	tenant, err := s.repo.FindTenantByID(ctx, admin.TenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find tenant")
	}
	if tenant == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	token, err := pkgauth.MintAccessToken(s.jwt, s.now(), pkgauth.AccessTokenPayload{
		AdminID:  admin.ID,
		TenantID: tenant.ID,
		Role:     admin.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint token")
	}

	return &LoginResult{AccessToken: token, Admin: admin, Tenant: tenant}, nil
}

func (s *service) Tenant(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	tenant, err := s.repo.FindTenantByID(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find tenant")
	}
	if tenant == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found")
	}
	return tenant, nil
}
