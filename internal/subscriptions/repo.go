package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/billforge/billforge-backend/pkg/db/models"
)

// Repository handles subscription persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.Subscription) error
	Update(ctx context.Context, sub *models.Subscription) error
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
	FindByTenantForUpdate(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error)
	ListGraceElapsed(ctx context.Context, cutoff time.Time, limit int) ([]models.Subscription, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) Update(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

func (r *repository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// FindByTenantForUpdate takes a row lock so reconciliation runs serialize
// per tenant. Must be called inside a transaction.
func (r *repository) FindByTenantForUpdate(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ?", tenantID).
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// ListExpired returns paid subscriptions whose window has closed, oldest
// expiry first so the sweeper never starves a long-overdue tenant.
func (r *repository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error) {
	if limit <= 0 {
		limit = 250
	}
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Joins("JOIN plans ON plans.id = subscriptions.plan_id").
		Where("plans.is_free = ?", false).
		Where("subscriptions.end_date < ?", now).
		Where("subscriptions.downgrade_at IS NULL").
		Order("subscriptions.end_date ASC").
		Limit(limit).
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// ListGraceElapsed returns subscriptions whose grace window opened at or
// before the cutoff and still awaits enforcement.
func (r *repository) ListGraceElapsed(ctx context.Context, cutoff time.Time, limit int) ([]models.Subscription, error) {
	if limit <= 0 {
		limit = 250
	}
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("downgrade_at IS NOT NULL AND downgrade_at <= ?", cutoff).
		Order("downgrade_at ASC").
		Limit(limit).
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
