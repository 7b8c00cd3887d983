package quota

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/billforge/billforge-backend/pkg/db/models"
	dbtypes "github.com/billforge/billforge-backend/pkg/db/types"
	"github.com/billforge/billforge-backend/pkg/enums"
)

// Repository handles usage counter persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindForPeriod(ctx context.Context, tenantID uuid.UUID, metric enums.Metric, periodStart time.Time) (*models.UsageRecord, error)
	ListForPeriod(ctx context.Context, tenantID uuid.UUID, periodStart time.Time) ([]models.UsageRecord, error)
	Create(ctx context.Context, record *models.UsageRecord) error
	UpdateLimit(ctx context.Context, recordID uuid.UUID, limit int64) error
	IncrementWithCeiling(ctx context.Context, recordID uuid.UUID, delta int64) (bool, error)
	IncrementUnconditional(ctx context.Context, recordID uuid.UUID, delta int64) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a usage repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindForPeriod(ctx context.Context, tenantID uuid.UUID, metric enums.Metric, periodStart time.Time) (*models.UsageRecord, error) {
	var record models.UsageRecord
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND metric = ? AND period_start = ?", tenantID, metric, periodStart).
		First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repository) ListForPeriod(ctx context.Context, tenantID uuid.UUID, periodStart time.Time) ([]models.UsageRecord, error) {
	var records []models.UsageRecord
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND period_start = ?", tenantID, periodStart).
		Order("metric ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) Create(ctx context.Context, record *models.UsageRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) UpdateLimit(ctx context.Context, recordID uuid.UUID, limit int64) error {
	return r.db.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Where("id = ?", recordID).
		Update("limit_value", limit).Error
}

// IncrementWithCeiling bumps the counter in a single conditional UPDATE so
// two concurrent writers can never both land past the cap. A false return
// means the ceiling would have been breached and nothing changed.
func (r *repository) IncrementWithCeiling(ctx context.Context, recordID uuid.UUID, delta int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Where("id = ?", recordID).
		Where("limit_value = ? OR current_value + ? <= limit_value", dbtypes.UnlimitedLimit, delta).
		Update("current_value", gorm.Expr("current_value + ?", delta))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) IncrementUnconditional(ctx context.Context, recordID uuid.UUID, delta int64) error {
	return r.db.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Where("id = ?", recordID).
		Update("current_value", gorm.Expr("current_value + ?", delta)).Error
}
