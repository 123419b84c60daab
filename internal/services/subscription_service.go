package services

import (
	"context"
	"log"
	"time"

	"healthplan_billing/internal/models"
)

// SubscriptionService turns completed payments into subscription time.
type SubscriptionService struct {
	subs SubscriptionStore
	now  func() time.Time
}

func NewSubscriptionService(subs SubscriptionStore) *SubscriptionService {
	return &SubscriptionService{subs: subs, now: time.Now}
}

// Activate creates or extends the user's subscription for a payment that
// just completed. Safe to call more than once per payment: the order's
// activation flag is checked-and-set inside the store transaction, so at
// most one call performs the transition. Renewals stack on top of
// unexpired time instead of resetting from now.
func (s *SubscriptionService) Activate(ctx context.Context, order *models.PaymentOrder) (*models.Subscription, bool, error) {
	now := s.now()
	cycle := order.BillingCycle.Length()

	sub, activated, err := s.subs.ActivateFromPayment(ctx, order, func(current *models.Subscription) *models.Subscription {
		if current == nil {
			return &models.Subscription{
				UserID:               order.UserID,
				PlanID:               order.PlanID,
				Status:               models.SubscriptionStatusActive,
				BillingCycle:         order.BillingCycle,
				CurrentPeriodStart:   now,
				CurrentPeriodEnd:     now.Add(cycle),
				OriginatingPaymentID: &order.ID,
			}
		}

		base := current.CurrentPeriodEnd
		if base.Before(now) {
			base = now
		}
		current.CurrentPeriodEnd = base.Add(cycle)
		current.PlanID = order.PlanID
		current.BillingCycle = order.BillingCycle
		current.OriginatingPaymentID = &order.ID
		return current
	})
	if err != nil {
		return nil, false, err
	}

	if activated {
		log.Printf("Subscription %d for user %s active until %s (payment %s)",
			sub.ID, order.UserID, sub.CurrentPeriodEnd.Format(time.RFC3339), order.MerchantTransactionID)
	}
	return sub, activated, nil
}

// Current returns the user's active subscription, or nil.
func (s *SubscriptionService) Current(ctx context.Context, userID string) (*models.Subscription, error) {
	return s.subs.FindActiveByUser(ctx, userID)
}
