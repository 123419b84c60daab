package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"healthplan_billing/internal/gateway"
	"healthplan_billing/internal/models"
	"healthplan_billing/internal/payments"
)

func newCallbackFixture() (*CallbackService, *fakePaymentStore, *fakeSubscriptionStore) {
	store := newFakePaymentStore()
	subs := newFakeSubscriptionStore(store)
	activator := NewSubscriptionService(subs)
	svc := NewCallbackService(testGatewayCfg(), store, activator)
	return svc, store, subs
}

func seedProcessingOrder(store *fakePaymentStore) *models.PaymentOrder {
	return store.seed(models.PaymentOrder{
		MerchantTransactionID: "MT1",
		UserID:                "U1",
		PlanID:                1,
		BillingCycle:          models.BillingCycleMonthly,
		Amount:                499900,
		Currency:              "INR",
		Status:                models.PaymentStatusProcessing,
	})
}

// signedCallback builds the webhook body the gateway would send: the
// base64-encoded payload plus the checksum over it and the callback path.
func signedCallback(t *testing.T, payload map[string]interface{}) (encoded, checksum string) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal callback payload: %v", err)
	}
	encoded = base64.StdEncoding.EncodeToString(raw)
	cfg := testGatewayCfg()
	checksum = gateway.Sign(encoded, cfg.CallbackPath, cfg.SaltKey, cfg.SaltIndex)
	return encoded, checksum
}

func successCallback(t *testing.T) (string, string) {
	return signedCallback(t, map[string]interface{}{
		"merchantTransactionId": "MT1",
		"transactionId":         "GW1",
		"amount":                499900,
		"state":                 "SUCCESS",
	})
}

func TestProcessRejectsTamperedChecksum(t *testing.T) {
	svc, store, subs := newCallbackFixture()
	seedProcessingOrder(store)

	encoded, checksum := successCallback(t)

	// Tamper with the payload after signing.
	tampered, _ := signedCallback(t, map[string]interface{}{
		"merchantTransactionId": "MT1",
		"transactionId":         "GW1",
		"amount":                1,
		"state":                 "SUCCESS",
	})

	tests := []struct {
		name               string
		encoded, candidate string
	}{
		{"payload swapped", tampered, checksum},
		{"checksum truncated", encoded, checksum[:len(checksum)-5]},
		{"checksum empty", encoded, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Process(context.Background(), tt.encoded, tt.candidate)
			if !errors.Is(err, payments.ErrAuthenticity) {
				t.Errorf("error = %v, want ErrAuthenticity", err)
			}
		})
	}

	if got := store.get("MT1").Status; got != models.PaymentStatusProcessing {
		t.Errorf("order status = %s after rejected callbacks, want PROCESSING", got)
	}
	if subs.activations != 0 {
		t.Error("subscription activated from an unverified callback")
	}
	if store.callbackCount() != 0 {
		t.Error("audit row written for a callback that failed verification")
	}
}

func TestProcessRejectsMalformedPayload(t *testing.T) {
	svc, _, _ := newCallbackFixture()
	cfg := testGatewayCfg()

	// Correctly signed, but not decodable.
	notBase64 := "%%%not-base64%%%"
	checksum := gateway.Sign(notBase64, cfg.CallbackPath, cfg.SaltKey, cfg.SaltIndex)
	if _, err := svc.Process(context.Background(), notBase64, checksum); !errors.Is(err, payments.ErrValidation) {
		t.Errorf("non-base64 payload: error = %v, want ErrValidation", err)
	}

	notJSON := base64.StdEncoding.EncodeToString([]byte("not json"))
	checksum = gateway.Sign(notJSON, cfg.CallbackPath, cfg.SaltKey, cfg.SaltIndex)
	if _, err := svc.Process(context.Background(), notJSON, checksum); !errors.Is(err, payments.ErrValidation) {
		t.Errorf("non-JSON payload: error = %v, want ErrValidation", err)
	}
}

func TestProcessCompletesOrderAndActivatesSubscription(t *testing.T) {
	svc, store, subs := newCallbackFixture()
	seedProcessingOrder(store)

	encoded, checksum := successCallback(t)
	outcome, err := svc.Process(context.Background(), encoded, checksum)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if outcome != CallbackOutcomeCompleted {
		t.Errorf("outcome = %s, want completed", outcome)
	}

	order := store.get("MT1")
	if order.Status != models.PaymentStatusCompleted {
		t.Errorf("order status = %s, want COMPLETED", order.Status)
	}
	if order.ProcessedAt == nil {
		t.Error("processed_at not set")
	}
	if order.GatewayTransactionID == nil || *order.GatewayTransactionID != "GW1" {
		t.Error("gateway transaction id not recorded")
	}

	sub, err := subs.FindActiveByUser(context.Background(), "U1")
	if err != nil || sub == nil {
		t.Fatalf("no active subscription after completed payment (err=%v)", err)
	}
	if sub.PlanID != 1 || sub.BillingCycle != models.BillingCycleMonthly {
		t.Errorf("subscription fields wrong: %+v", sub)
	}
	wantEnd := sub.CurrentPeriodStart.Add(30 * 24 * time.Hour)
	if !sub.CurrentPeriodEnd.Equal(wantEnd) {
		t.Errorf("period end = %s, want start + 30 days", sub.CurrentPeriodEnd)
	}

	if store.callbackCount() != 1 {
		t.Errorf("audit rows = %d, want 1", store.callbackCount())
	}
}

func TestProcessDuplicateDelivery(t *testing.T) {
	svc, store, subs := newCallbackFixture()
	seedProcessingOrder(store)

	encoded, checksum := successCallback(t)
	if _, err := svc.Process(context.Background(), encoded, checksum); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	outcome, err := svc.Process(context.Background(), encoded, checksum)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if outcome != CallbackOutcomeDuplicate {
		t.Errorf("second delivery outcome = %s, want duplicate", outcome)
	}
	if subs.activations != 1 {
		t.Errorf("activations = %d, want exactly 1", subs.activations)
	}

	sub, _ := subs.FindActiveByUser(context.Background(), "U1")
	wantEnd := sub.CurrentPeriodStart.Add(30 * 24 * time.Hour)
	if !sub.CurrentPeriodEnd.Equal(wantEnd) {
		t.Error("duplicate delivery extended the subscription period")
	}
}

func TestProcessConcurrentDeliveries(t *testing.T) {
	svc, store, subs := newCallbackFixture()
	seedProcessingOrder(store)
	encoded, checksum := successCallback(t)

	const deliveries = 8
	outcomes := make([]CallbackOutcome, deliveries)
	errs := make([]error, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = svc.Process(context.Background(), encoded, checksum)
		}(i)
	}
	wg.Wait()

	completed, duplicates := 0, 0
	for i := 0; i < deliveries; i++ {
		if errs[i] != nil {
			t.Fatalf("delivery %d failed: %v", i, errs[i])
		}
		switch outcomes[i] {
		case CallbackOutcomeCompleted:
			completed++
		case CallbackOutcomeDuplicate:
			duplicates++
		default:
			t.Errorf("delivery %d outcome = %s", i, outcomes[i])
		}
	}

	if completed != 1 {
		t.Errorf("completed outcomes = %d, want exactly 1 winner", completed)
	}
	if duplicates != deliveries-1 {
		t.Errorf("duplicate outcomes = %d, want %d", duplicates, deliveries-1)
	}
	if subs.activations != 1 {
		t.Errorf("activations = %d, want exactly 1", subs.activations)
	}
	if got := store.get("MT1").Status; got != models.PaymentStatusCompleted {
		t.Errorf("order status = %s, want COMPLETED", got)
	}
}

func TestProcessFailedAndCancelledStates(t *testing.T) {
	tests := []struct {
		state       string
		wantOutcome CallbackOutcome
		wantStatus  models.PaymentStatus
	}{
		{"FAILED", CallbackOutcomeFailed, models.PaymentStatusFailed},
		{"CANCELLED", CallbackOutcomeCancelled, models.PaymentStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			svc, store, subs := newCallbackFixture()
			seedProcessingOrder(store)

			encoded, checksum := signedCallback(t, map[string]interface{}{
				"merchantTransactionId": "MT1",
				"amount":                499900,
				"state":                 tt.state,
			})
			outcome, err := svc.Process(context.Background(), encoded, checksum)
			if err != nil {
				t.Fatalf("Process returned error: %v", err)
			}
			if outcome != tt.wantOutcome {
				t.Errorf("outcome = %s, want %s", outcome, tt.wantOutcome)
			}

			order := store.get("MT1")
			if order.Status != tt.wantStatus {
				t.Errorf("order status = %s, want %s", order.Status, tt.wantStatus)
			}
			if order.FailureReason == nil {
				t.Error("failure reason not recorded")
			}
			if subs.activations != 0 {
				t.Errorf("subscription activated for state %s", tt.state)
			}
		})
	}
}

func TestProcessPendingLeavesOrderOpen(t *testing.T) {
	svc, store, _ := newCallbackFixture()
	seedProcessingOrder(store)

	encoded, checksum := signedCallback(t, map[string]interface{}{
		"merchantTransactionId": "MT1",
		"amount":                499900,
		"state":                 "PENDING",
	})
	outcome, err := svc.Process(context.Background(), encoded, checksum)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if outcome != CallbackOutcomePending {
		t.Errorf("outcome = %s, want pending", outcome)
	}
	if got := store.get("MT1").Status; got != models.PaymentStatusProcessing {
		t.Errorf("order status = %s, want PROCESSING still", got)
	}

	// A later SUCCESS delivery settles the order normally.
	encoded, checksum = successCallback(t)
	outcome, err = svc.Process(context.Background(), encoded, checksum)
	if err != nil || outcome != CallbackOutcomeCompleted {
		t.Errorf("follow-up delivery: outcome=%s err=%v, want completed", outcome, err)
	}
}

func TestProcessUnknownOrderAcknowledged(t *testing.T) {
	svc, store, _ := newCallbackFixture()

	encoded, checksum := signedCallback(t, map[string]interface{}{
		"merchantTransactionId": "MT404",
		"amount":                100,
		"state":                 "SUCCESS",
	})
	outcome, err := svc.Process(context.Background(), encoded, checksum)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if outcome != CallbackOutcomeUnknownOrder {
		t.Errorf("outcome = %s, want unknown_order", outcome)
	}
	if store.callbackCount() != 1 {
		t.Error("unknown-order callback not recorded for investigation")
	}
}

func TestProcessRejectsUnknownGatewayState(t *testing.T) {
	svc, store, subs := newCallbackFixture()
	seedProcessingOrder(store)

	encoded, checksum := signedCallback(t, map[string]interface{}{
		"merchantTransactionId": "MT1",
		"amount":                499900,
		"state":                 "EXPIRED",
	})
	_, err := svc.Process(context.Background(), encoded, checksum)
	if !errors.Is(err, payments.ErrUnknownGatewayState) {
		t.Fatalf("error = %v, want ErrUnknownGatewayState", err)
	}

	// Nothing may change; the gateway redelivers and a fixed binary can
	// settle the order later.
	if got := store.get("MT1").Status; got != models.PaymentStatusProcessing {
		t.Errorf("order status = %s, want PROCESSING", got)
	}
	if subs.activations != 0 {
		t.Error("subscription activated from an unknown state")
	}

	encoded, checksum = successCallback(t)
	outcome, err := svc.Process(context.Background(), encoded, checksum)
	if err != nil || outcome != CallbackOutcomeCompleted {
		t.Errorf("later SUCCESS delivery: outcome=%s err=%v, want completed", outcome, err)
	}
}

func TestProcessRejectsAmountMismatch(t *testing.T) {
	svc, store, subs := newCallbackFixture()
	seedProcessingOrder(store)

	encoded, checksum := signedCallback(t, map[string]interface{}{
		"merchantTransactionId": "MT1",
		"amount":                1,
		"state":                 "SUCCESS",
	})
	_, err := svc.Process(context.Background(), encoded, checksum)
	if !errors.Is(err, payments.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if got := store.get("MT1").Status; got != models.PaymentStatusProcessing {
		t.Errorf("order status = %s, want PROCESSING", got)
	}
	if subs.activations != 0 {
		t.Error("subscription activated despite amount mismatch")
	}
}
