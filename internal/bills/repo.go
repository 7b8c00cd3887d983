package bills

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/billforge/billforge-backend/pkg/db/models"
	"github.com/billforge/billforge-backend/pkg/pagination"
)

// Repository handles bill persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, bill *models.Bill) error
	ListByTenant(ctx context.Context, tenantID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Bill, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a bill repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, bill *models.Bill) error {
	return r.db.WithContext(ctx).Create(bill).Error
}

// ListByTenant pages bills newest-first. A nil cursor starts at the top;
// limit is applied as given, so callers pass the buffered page size.
func (r *repository) ListByTenant(ctx context.Context, tenantID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Bill, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	query = query.Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var bills []models.Bill
	if err := query.Find(&bills).Error; err != nil {
		return nil, err
	}
	return bills, nil
}
