package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BillingAccount is a cashier seat on a tenant; seat count is quota-gated.
type BillingAccount struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID  `gorm:"column:tenant_id;type:uuid;not null;index"`
	Label     string     `gorm:"column:label;not null"`
	AdminID   *uuid.UUID `gorm:"column:admin_id;type:uuid"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *BillingAccount) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
