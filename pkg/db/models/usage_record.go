package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/billforge/billforge-backend/pkg/enums"
)

// UsageRecord is one counter per (tenant, metric, calendar month). Counters
// only ever move up within a period; a new month opens a fresh row and the
// old one is kept for history.
type UsageRecord struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey"`
	TenantID     uuid.UUID    `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:idx_usage_tenant_metric_period"`
	Metric       enums.Metric `gorm:"column:metric;not null;uniqueIndex:idx_usage_tenant_metric_period"`
	PeriodStart  time.Time    `gorm:"column:period_start;not null;uniqueIndex:idx_usage_tenant_metric_period"`
	PeriodEnd    time.Time    `gorm:"column:period_end;not null"`
	CurrentValue int64        `gorm:"column:current_value;not null;default:0"`
	LimitValue   int64        `gorm:"column:limit_value;not null"`
	CreatedAt    time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *UsageRecord) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
