package models

import (
	"time"
)

// SubscriptionStatus is the lifecycle state of a subscription.
// Subscriptions are never deleted, only status-flipped.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Subscription grants a user access for a billing period. It is created
// or extended by exactly one transition per completed payment; the
// originating payment id records the last payment that touched it.
type Subscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID       string             `gorm:"type:varchar(128);index;not null" json:"user_id"`
	PlanID       uint               `gorm:"index" json:"plan_id"`
	Status       SubscriptionStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	BillingCycle BillingCycle       `gorm:"type:varchar(20);not null" json:"billing_cycle"`

	CurrentPeriodStart time.Time `json:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end"`

	OriginatingPaymentID *uint      `gorm:"index" json:"originating_payment_id,omitempty"`
	CanceledAt           *time.Time `json:"canceled_at,omitempty"`
}

// ActiveAt reports whether the subscription grants access at t.
func (s Subscription) ActiveAt(t time.Time) bool {
	return s.Status == SubscriptionStatusActive && s.CurrentPeriodEnd.After(t)
}
