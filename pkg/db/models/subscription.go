package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/billforge/billforge-backend/pkg/enums"
)

// Subscription tracks which plan a tenant is on and how it got there.
// DowngradeAt is non-null only inside a post-downgrade grace window; the
// enforcer clears it after trimming over-quota resources.
type Subscription struct {
	ID            uuid.UUID                `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID                `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex"`
	PlanID        string                   `gorm:"column:plan_id;not null;index"`
	Status        enums.SubscriptionStatus `gorm:"column:status;not null;default:'active'"`
	StartDate     time.Time                `gorm:"column:start_date;not null"`
	EndDate       time.Time                `gorm:"column:end_date;not null"`
	AutoRenew     bool                     `gorm:"column:auto_renew;not null;default:false"`
	DowngradeAt   *time.Time               `gorm:"column:downgrade_at"`
	LastPaymentID *uuid.UUID               `gorm:"column:last_payment_id;type:uuid"`
	CreatedAt     time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Expired reports whether the billing window has closed at the given instant.
func (s *Subscription) Expired(now time.Time) bool {
	return s != nil && now.After(s.EndDate)
}

// InGrace reports whether the subscription is inside a downgrade grace window.
func (s *Subscription) InGrace() bool {
	return s != nil && s.DowngradeAt != nil
}
