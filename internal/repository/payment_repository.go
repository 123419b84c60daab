package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"healthplan_billing/internal/models"
)

// PaymentRepository persists payment orders. Status changes go through
// TransitionStatus so that every forward move is a single conditional
// update; concurrent webhook deliveries then race on the database row,
// and exactly one wins.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, order *models.PaymentOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByMerchantTransactionID returns (nil, nil) when no order exists.
func (r *PaymentRepository) FindByMerchantTransactionID(ctx context.Context, merchantTransactionID string) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	err := r.db.WithContext(ctx).Where("merchant_transaction_id = ?", merchantTransactionID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// TransitionStatus moves an order from one status to another with a
// status-guarded update. Returns false when the row was not in the
// expected source status, which is how a lost race surfaces.
func (r *PaymentRepository) TransitionStatus(ctx context.Context, merchantTransactionID string, from, to models.PaymentStatus, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.PaymentOrder{}).
		Where("merchant_transaction_id = ? AND status = ?", merchantTransactionID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RecordFailureReason stores a human-readable reason without touching
// the status, e.g. a refund attempt the gateway rejected.
func (r *PaymentRepository) RecordFailureReason(ctx context.Context, orderID uint, reason string) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentOrder{}).
		Where("id = ?", orderID).
		Update("failure_reason", reason).Error
}

// ListStuckProcessing returns PROCESSING orders created before the
// cutoff, for the reconciliation job.
func (r *PaymentRepository) ListStuckProcessing(ctx context.Context, createdBefore time.Time, limit int) ([]models.PaymentOrder, error) {
	var orders []models.PaymentOrder
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.PaymentStatusProcessing, createdBefore).
		Order("created_at asc").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// RecordCallback appends one row to the webhook audit trail.
func (r *PaymentRepository) RecordCallback(ctx context.Context, entry *models.PaymentCallbackHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
