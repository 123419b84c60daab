package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"healthplan_billing/internal/gateway"
	"healthplan_billing/internal/models"
)

// In-memory fakes for the store and gateway contracts. They mirror the
// repository semantics that matter to the services: lookups return row
// snapshots, status transitions are conditional, and activation happens
// at most once per payment.

type fakePaymentStore struct {
	mu          sync.Mutex
	nextID      uint
	orders      map[string]*models.PaymentOrder
	callbacks   []*models.PaymentCallbackHistory
	createCalls int
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{orders: make(map[string]*models.PaymentOrder)}
}

// seed inserts an order directly, bypassing the Create counter.
func (f *fakePaymentStore) seed(order models.PaymentOrder) *models.PaymentOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	order.ID = f.nextID
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	f.orders[order.MerchantTransactionID] = &order
	return &order
}

// get returns a snapshot of a seeded order; panics on a bad test id.
func (f *fakePaymentStore) get(merchantTransactionID string) models.PaymentOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.orders[merchantTransactionID]
}

func (f *fakePaymentStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func (f *fakePaymentStore) Create(ctx context.Context, order *models.PaymentOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if _, exists := f.orders[order.MerchantTransactionID]; exists {
		return fmt.Errorf("duplicate merchant transaction id %s", order.MerchantTransactionID)
	}
	f.nextID++
	order.ID = f.nextID
	order.CreatedAt = time.Now()
	stored := *order
	f.orders[order.MerchantTransactionID] = &stored
	return nil
}

func (f *fakePaymentStore) FindByMerchantTransactionID(ctx context.Context, merchantTransactionID string) (*models.PaymentOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[merchantTransactionID]
	if !ok {
		return nil, nil
	}
	snapshot := *o
	return &snapshot, nil
}

func (f *fakePaymentStore) TransitionStatus(ctx context.Context, merchantTransactionID string, from, to models.PaymentStatus, extra map[string]interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[merchantTransactionID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	for k, v := range extra {
		switch k {
		case "processed_at":
			if ts, ok := v.(*time.Time); ok {
				o.ProcessedAt = ts
			}
		case "gateway_transaction_id":
			if s, ok := v.(string); ok {
				o.GatewayTransactionID = &s
			}
		case "failure_reason":
			if s, ok := v.(string); ok {
				o.FailureReason = &s
			}
		}
	}
	return true, nil
}

func (f *fakePaymentStore) RecordFailureReason(ctx context.Context, orderID uint, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.ID == orderID {
			r := reason
			o.FailureReason = &r
		}
	}
	return nil
}

func (f *fakePaymentStore) ListStuckProcessing(ctx context.Context, createdBefore time.Time, limit int) ([]models.PaymentOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PaymentOrder
	for _, o := range f.orders {
		if len(out) == limit {
			break
		}
		if o.Status == models.PaymentStatusProcessing && o.CreatedAt.Before(createdBefore) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakePaymentStore) RecordCallback(ctx context.Context, entry *models.PaymentCallbackHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks = append(f.callbacks, entry)
	return nil
}

func (f *fakePaymentStore) callbackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.callbacks)
}

type fakeSubscriptionStore struct {
	mu          sync.Mutex
	nextID      uint
	subs        map[uint]*models.Subscription
	activated   map[uint]bool // payment order id -> flag
	refunds     []*models.Refund
	payments    *fakePaymentStore
	activations int
}

func newFakeSubscriptionStore(payments *fakePaymentStore) *fakeSubscriptionStore {
	return &fakeSubscriptionStore{
		subs:      make(map[uint]*models.Subscription),
		activated: make(map[uint]bool),
		payments:  payments,
	}
}

func (f *fakeSubscriptionStore) seed(sub models.Subscription) *models.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	sub.ID = f.nextID
	f.subs[sub.ID] = &sub
	return &sub
}

func (f *fakeSubscriptionStore) activeByUser(userID string) *models.Subscription {
	var current *models.Subscription
	for _, sub := range f.subs {
		if sub.UserID != userID || sub.Status != models.SubscriptionStatusActive {
			continue
		}
		if current == nil || sub.CurrentPeriodEnd.After(current.CurrentPeriodEnd) {
			current = sub
		}
	}
	return current
}

func (f *fakeSubscriptionStore) FindActiveByUser(ctx context.Context, userID string) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current := f.activeByUser(userID)
	if current == nil {
		return nil, nil
	}
	snapshot := *current
	return &snapshot, nil
}

func (f *fakeSubscriptionStore) ActivateFromPayment(ctx context.Context, order *models.PaymentOrder, apply func(current *models.Subscription) *models.Subscription) (*models.Subscription, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activated[order.ID] {
		return nil, false, nil
	}
	f.activated[order.ID] = true
	f.activations++

	var next *models.Subscription
	if current := f.activeByUser(order.UserID); current != nil {
		snapshot := *current
		next = apply(&snapshot)
	} else {
		next = apply(nil)
	}

	if next.ID == 0 {
		f.nextID++
		next.ID = f.nextID
	}
	stored := *next
	f.subs[stored.ID] = &stored
	result := stored
	return &result, true, nil
}

func (f *fakeSubscriptionStore) ApplyRefund(ctx context.Context, order *models.PaymentOrder, refund *models.Refund) (bool, error) {
	now := time.Now()
	won, err := f.payments.TransitionStatus(ctx, order.MerchantTransactionID,
		models.PaymentStatusCompleted, models.PaymentStatusRefunded,
		map[string]interface{}{"processed_at": &now})
	if err != nil || !won {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	refund.PaymentOrderID = order.ID
	stored := *refund
	f.refunds = append(f.refunds, &stored)

	for _, sub := range f.subs {
		if sub.UserID == order.UserID && sub.Status == models.SubscriptionStatusActive {
			sub.Status = models.SubscriptionStatusCanceled
			sub.CanceledAt = &now
		}
	}
	return true, nil
}

type fakePlanStore struct {
	mu    sync.Mutex
	plans map[string]models.Plan
}

func newFakePlanStore(plans ...models.Plan) *fakePlanStore {
	f := &fakePlanStore{plans: make(map[string]models.Plan)}
	for _, p := range plans {
		f.plans[p.Slug] = p
	}
	return f
}

func (f *fakePlanStore) FindBySlug(ctx context.Context, slug string) (*models.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.plans[slug]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type fakeGateway struct {
	mu sync.Mutex

	createCalls        int
	lastCreatePayload  string
	lastCreateChecksum string
	createResult       *gateway.CreateOrderResult
	createErr          error

	statusCalls   int
	statusResults map[string]*gateway.StatusResult
	statusErr     error

	refundCalls        int
	lastRefundPayload  string
	lastRefundChecksum string
	refundResult       *gateway.RefundResult
	refundErr          error
}

func (f *fakeGateway) CreateOrder(ctx context.Context, base64Payload, checksum string) (*gateway.CreateOrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.lastCreatePayload = base64Payload
	f.lastCreateChecksum = checksum
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createResult, nil
}

func (f *fakeGateway) QueryStatus(ctx context.Context, merchantTransactionID string) (*gateway.StatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if res, ok := f.statusResults[merchantTransactionID]; ok {
		return res, nil
	}
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return nil, fmt.Errorf("no status configured for %s", merchantTransactionID)
}

func (f *fakeGateway) Refund(ctx context.Context, base64Payload, checksum string) (*gateway.RefundResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refundCalls++
	f.lastRefundPayload = base64Payload
	f.lastRefundChecksum = checksum
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	return f.refundResult, nil
}
