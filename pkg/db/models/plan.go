package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	dbtypes "github.com/billforge/billforge-backend/pkg/db/types"
	"github.com/billforge/billforge-backend/pkg/enums"
)

// Plan is an immutable catalog tier. Rows are seeded out-of-band and never
// mutated at runtime; a tenant references them through its Subscription.
type Plan struct {
	ID           string           `gorm:"column:id;primaryKey"`
	Name         string           `gorm:"column:name;not null"`
	DisplayName  string           `gorm:"column:display_name;not null"`
	Status       enums.PlanStatus `gorm:"column:status;not null;default:'active'"`
	IsFree       bool             `gorm:"column:is_free;not null;default:false"`
	PriceAmount  decimal.Decimal  `gorm:"column:price_amount;type:numeric(12,2);not null"`
	CurrencyCode string           `gorm:"column:currency_code;not null;default:'INR'"`
	Features     pq.StringArray   `gorm:"column:features;type:text[]"`
	Limits       dbtypes.LimitMap `gorm:"column:limits;type:jsonb"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// LimitFor returns the plan's cap for a metric, -1 meaning unlimited.
func (p *Plan) LimitFor(metric enums.Metric) int64 {
	if p == nil {
		return dbtypes.UnlimitedLimit
	}
	return p.Limits.Limit(string(metric))
}
