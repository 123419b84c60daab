package models

import (
	"encoding/json"
	"time"
)

// PaymentStatus is the lifecycle state of a payment order.
// Allowed transitions: PENDING -> PROCESSING -> {COMPLETED | FAILED | CANCELLED},
// COMPLETED -> REFUNDED. Everything else is rejected.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

// Terminal reports whether no further callback-driven transition is
// allowed from this status. REFUNDED is reachable from COMPLETED, but
// only through the refund flow, never through a callback.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

// PaymentOrder records one payment attempt against the gateway.
// The merchant transaction id is generated by us, globally unique, and
// serves as the idempotency key across creation and callback delivery.
// Rows are never deleted and the amount never changes after creation.
type PaymentOrder struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	MerchantTransactionID string        `gorm:"type:varchar(100);uniqueIndex;not null" json:"merchant_transaction_id"`
	UserID                string        `gorm:"type:varchar(128);index;not null" json:"user_id"`
	PlanID                uint          `gorm:"index" json:"plan_id"`
	BillingCycle          BillingCycle  `gorm:"type:varchar(20);not null" json:"billing_cycle"`
	Amount                int64         `gorm:"not null" json:"amount"` // minor currency units (paise)
	Currency              string        `gorm:"type:varchar(10);default:'INR'" json:"currency"`
	Status                PaymentStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	GatewayTransactionID  *string       `gorm:"type:varchar(100)" json:"gateway_transaction_id,omitempty"`

	RawRequest  json.RawMessage `gorm:"type:jsonb" json:"raw_request,omitempty"`
	RawResponse json.RawMessage `gorm:"type:jsonb" json:"raw_response,omitempty"`

	FailureReason *string    `gorm:"type:text" json:"failure_reason,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`

	// SubscriptionActivated guards at-most-one subscription transition
	// per completed payment. Flipped inside the same transaction that
	// writes the subscription row.
	SubscriptionActivated bool `gorm:"default:false" json:"subscription_activated"`
}
