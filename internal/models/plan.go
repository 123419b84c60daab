package models

import (
	"time"

	"gorm.io/gorm"
)

// BillingCycle is the renewal period of a subscription.
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleAnnual  BillingCycle = "annual"
)

// Valid reports whether the cycle is one of the supported values.
func (c BillingCycle) Valid() bool {
	return c == BillingCycleMonthly || c == BillingCycleAnnual
}

// Length returns the subscription period granted per payment.
func (c BillingCycle) Length() time.Duration {
	if c == BillingCycleAnnual {
		return 365 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}

// Plan is one row of the read-only plan catalog.
type Plan struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Slug         string `gorm:"type:varchar(100);uniqueIndex" json:"slug"`
	Name         string `gorm:"type:varchar(255)" json:"name"`
	MonthlyPrice int64  `json:"monthly_price"` // paise
	AnnualPrice  int64  `json:"annual_price"`  // paise
	IsActive     bool   `gorm:"default:true" json:"is_active"`
}

// PriceFor returns the catalog price for a billing cycle.
func (p Plan) PriceFor(cycle BillingCycle) int64 {
	if cycle == BillingCycleAnnual {
		return p.AnnualPrice
	}
	return p.MonthlyPrice
}
