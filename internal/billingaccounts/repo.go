package billingaccounts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/billforge/billforge-backend/pkg/db/models"
	"github.com/billforge/billforge-backend/pkg/pagination"
)

// Repository handles billing account persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, account *models.BillingAccount) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.BillingAccount, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.BillingAccount, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing account repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, account *models.BillingAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.BillingAccount, error) {
	var account models.BillingAccount
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// ListByTenant pages seats newest-first. A nil cursor starts at the top;
// limit is applied as given, so callers pass the buffered page size.
func (r *repository) ListByTenant(ctx context.Context, tenantID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.BillingAccount, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	query = query.Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var accounts []models.BillingAccount
	if err := query.Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.BillingAccount{}).Error
}
