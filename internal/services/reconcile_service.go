package services

import (
	"context"
	"log"
	"time"
)

// ReconcileService is the safety net for missed webhooks. It polls the
// gateway's status API for orders stuck in PROCESSING and feeds the
// result through the same conditional-transition path as the webhook, so
// both paths share one set of idempotency guarantees. The webhook stays
// the primary trigger; this runs low-frequency from the worker.
type ReconcileService struct {
	store     PaymentStore
	gw        PaymentGateway
	callbacks *CallbackService
}

func NewReconcileService(store PaymentStore, gw PaymentGateway, callbacks *CallbackService) *ReconcileService {
	return &ReconcileService{store: store, gw: gw, callbacks: callbacks}
}

// Run reconciles PROCESSING orders older than the cutoff, at most limit
// of them. Per-order failures are logged and skipped; a later run picks
// the order up again.
func (s *ReconcileService) Run(ctx context.Context, olderThan time.Duration, limit int) (map[CallbackOutcome]int, error) {
	cutoff := time.Now().Add(-olderThan)
	orders, err := s.store.ListStuckProcessing(ctx, cutoff, limit)
	if err != nil {
		return nil, err
	}

	counts := make(map[CallbackOutcome]int)
	for _, order := range orders {
		if ctx.Err() != nil {
			return counts, ctx.Err()
		}

		status, err := s.gw.QueryStatus(ctx, order.MerchantTransactionID)
		if err != nil {
			log.Printf("Reconcile: status query for order %s failed: %v", order.MerchantTransactionID, err)
			continue
		}

		outcome, err := s.callbacks.ApplyState(ctx, order.MerchantTransactionID, status.State, status.GatewayTransactionID, status.Amount)
		if err != nil {
			log.Printf("Reconcile: applying state %s to order %s failed: %v", status.State, order.MerchantTransactionID, err)
			continue
		}
		counts[outcome]++
	}

	if len(orders) > 0 {
		log.Printf("Reconciled %d stuck orders: %v", len(orders), counts)
	}
	return counts, nil
}
