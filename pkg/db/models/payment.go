package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/billforge/billforge-backend/pkg/enums"
)

// Payment is one row per gateway transaction attempt. A SUCCESS payment must
// end up linked to exactly one Subscription; an unlinked SUCCESS row is a
// reconciliation defect awaiting a sync pass.
type Payment struct {
	ID              uuid.UUID           `gorm:"type:uuid;primaryKey"`
	TenantID        uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;index"`
	OrderID         string              `gorm:"column:order_id;not null;uniqueIndex"`
	PaymentID       string              `gorm:"column:payment_id"`
	Amount          decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	CurrencyCode    string              `gorm:"column:currency_code;not null;default:'INR'"`
	Status          enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	PlanID          *string             `gorm:"column:plan_id"`
	SubscriptionID  *uuid.UUID          `gorm:"column:subscription_id;type:uuid"`
	RefundRequested bool                `gorm:"column:refund_requested;not null;default:false"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
