package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"healthplan_billing/internal/models"
)

// SubscriptionRepository persists subscriptions. The money-affecting
// writes (activation, refund) are transactions that cover both the
// payment order and the subscription row.
type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// FindActiveByUser returns the user's active subscription, or (nil, nil).
func (r *SubscriptionRepository) FindActiveByUser(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.SubscriptionStatusActive).
		Order("current_period_end desc").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// ActivateFromPayment performs the subscription transition for a
// completed payment in one transaction: flip the order's activation
// flag with a guarded update, then create or update the subscription
// row computed by apply. If the flag was already set the transaction is
// a no-op and activated is false — a payment activates at most once.
func (r *SubscriptionRepository) ActivateFromPayment(ctx context.Context, order *models.PaymentOrder, apply func(current *models.Subscription) *models.Subscription) (*models.Subscription, bool, error) {
	var result *models.Subscription
	activated := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PaymentOrder{}).
			Where("id = ? AND subscription_activated = ?", order.ID, false).
			Update("subscription_activated", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // already activated by a concurrent delivery
		}

		var current models.Subscription
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND status = ?", order.UserID, models.SubscriptionStatusActive).
			Order("current_period_end desc").
			First(&current).Error

		var next *models.Subscription
		switch {
		case err == nil:
			next = apply(&current)
		case errors.Is(err, gorm.ErrRecordNotFound):
			next = apply(nil)
		default:
			return err
		}

		if err := tx.Save(next).Error; err != nil {
			return err
		}
		result = next
		activated = true
		return nil
	})

	return result, activated, err
}

// ApplyRefund moves a completed order to REFUNDED, records the refund
// row and cancels the user's active subscription, atomically. Returns
// false when the order was no longer COMPLETED.
func (r *SubscriptionRepository) ApplyRefund(ctx context.Context, order *models.PaymentOrder, refund *models.Refund) (bool, error) {
	applied := false
	now := time.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PaymentOrder{}).
			Where("id = ? AND status = ?", order.ID, models.PaymentStatusCompleted).
			Updates(map[string]interface{}{
				"status":       models.PaymentStatusRefunded,
				"processed_at": &now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		refund.PaymentOrderID = order.ID
		if err := tx.Create(refund).Error; err != nil {
			return err
		}

		// No grace period: a refund cancels access immediately.
		if err := tx.Model(&models.Subscription{}).
			Where("user_id = ? AND status = ?", order.UserID, models.SubscriptionStatusActive).
			Updates(map[string]interface{}{
				"status":      models.SubscriptionStatusCanceled,
				"canceled_at": &now,
			}).Error; err != nil {
			return err
		}

		applied = true
		return nil
	})

	return applied, err
}
