package models

import (
	"encoding/json"
	"time"
)

// Refund records a refund issued against a completed payment order.
type Refund struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PaymentOrderID   uint    `gorm:"index;not null" json:"payment_order_id"`
	MerchantRefundID string  `gorm:"type:varchar(100);uniqueIndex;not null" json:"merchant_refund_id"`
	GatewayRefundID  *string `gorm:"type:varchar(100)" json:"gateway_refund_id,omitempty"`
	Amount           int64   `gorm:"not null" json:"amount"` // paise
	Reason           string  `gorm:"type:text" json:"reason"`
	State            string  `gorm:"type:varchar(50)" json:"state"`

	RawResponse json.RawMessage `gorm:"type:jsonb" json:"raw_response,omitempty"`

	// Relationships
	PaymentOrder PaymentOrder `gorm:"foreignKey:PaymentOrderID" json:"payment_order,omitempty"`
}
