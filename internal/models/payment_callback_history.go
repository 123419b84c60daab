package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// PaymentCallbackHistory is the audit trail of every webhook delivery
// received from the gateway, recorded before processing. Gateways
// redeliver at least once, so duplicates are expected here.
type PaymentCallbackHistory struct {
	ID                    uint            `gorm:"primaryKey" json:"id"`
	MerchantTransactionID string          `gorm:"type:varchar(100);index" json:"merchant_transaction_id"`
	Metadata              json.RawMessage `gorm:"type:jsonb" json:"metadata"`
	Outcome               string          `gorm:"type:varchar(50)" json:"outcome"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	DeletedAt             gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`
}
