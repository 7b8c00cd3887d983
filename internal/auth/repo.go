package auth

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/billforge/billforge-backend/pkg/db/models"
	"github.com/billforge/billforge-backend/pkg/enums"
)

// Repository handles admin and tenant identity persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindAdminByEmail(ctx context.Context, email string) (*models.Admin, error)
	FindOwnerByTenant(ctx context.Context, tenantID uuid.UUID) (*models.Admin, error)
	FindTenantByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	SetPaidWithTx(tx *gorm.DB, tenantID uuid.UUID, paid bool) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an identity repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	if email == "" {
		return nil, nil
	}
	var admin models.Admin
	if err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&admin).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &admin, nil
}

// FindOwnerByTenant resolves the tenant's owner login, which anchors
// outbound notifications for the account.
func (r *repository) FindOwnerByTenant(ctx context.Context, tenantID uuid.UUID) (*models.Admin, error) {
	if tenantID == uuid.Nil {
		return nil, nil
	}
	var admin models.Admin
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND role = ?", tenantID, enums.AdminRoleOwner).
		First(&admin).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &admin, nil
}

func (r *repository) FindTenantByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var tenant models.Tenant
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&tenant).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &tenant, nil
}

// SetPaidWithTx flips the tenant's paid flag, joining the caller's
// transaction when one is passed.
func (r *repository) SetPaidWithTx(tx *gorm.DB, tenantID uuid.UUID, paid bool) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	return db.Model(&models.Tenant{}).
		Where("id = ?", tenantID).
		Update("paid", paid).Error
}
