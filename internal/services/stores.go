package services

import (
	"context"
	"time"

	"healthplan_billing/internal/gateway"
	"healthplan_billing/internal/models"
)

// Store and gateway contracts consumed by the payment services.
// Implemented by internal/repository and internal/gateway; service tests
// substitute fakes.

type PaymentStore interface {
	Create(ctx context.Context, order *models.PaymentOrder) error
	FindByMerchantTransactionID(ctx context.Context, merchantTransactionID string) (*models.PaymentOrder, error)
	TransitionStatus(ctx context.Context, merchantTransactionID string, from, to models.PaymentStatus, extra map[string]interface{}) (bool, error)
	RecordFailureReason(ctx context.Context, orderID uint, reason string) error
	ListStuckProcessing(ctx context.Context, createdBefore time.Time, limit int) ([]models.PaymentOrder, error)
	RecordCallback(ctx context.Context, entry *models.PaymentCallbackHistory) error
}

type SubscriptionStore interface {
	FindActiveByUser(ctx context.Context, userID string) (*models.Subscription, error)
	ActivateFromPayment(ctx context.Context, order *models.PaymentOrder, apply func(current *models.Subscription) *models.Subscription) (*models.Subscription, bool, error)
	ApplyRefund(ctx context.Context, order *models.PaymentOrder, refund *models.Refund) (bool, error)
}

type PlanStore interface {
	FindBySlug(ctx context.Context, slug string) (*models.Plan, error)
}

type PaymentGateway interface {
	CreateOrder(ctx context.Context, base64Payload, checksum string) (*gateway.CreateOrderResult, error)
	QueryStatus(ctx context.Context, merchantTransactionID string) (*gateway.StatusResult, error)
	Refund(ctx context.Context, base64Payload, checksum string) (*gateway.RefundResult, error)
}
