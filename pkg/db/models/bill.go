package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Bill is a finalized cashier sale. Only its per-period count matters to the
// quota engine; line items live outside this core.
type Bill struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID     uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index"`
	Number       string          `gorm:"column:number;not null"`
	Total        decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	CustomerName string          `gorm:"column:customer_name"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *Bill) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
