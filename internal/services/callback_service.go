package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"healthplan_billing/internal/config"
	"healthplan_billing/internal/gateway"
	"healthplan_billing/internal/models"
	"healthplan_billing/internal/payments"
)

// CallbackOutcome is the first-class result of processing a webhook
// delivery. Idempotent no-ops are outcomes, not errors.
type CallbackOutcome string

const (
	CallbackOutcomeCompleted    CallbackOutcome = "completed"
	CallbackOutcomeFailed       CallbackOutcome = "failed"
	CallbackOutcomeCancelled    CallbackOutcome = "cancelled"
	CallbackOutcomePending      CallbackOutcome = "pending"
	CallbackOutcomeDuplicate    CallbackOutcome = "duplicate"
	CallbackOutcomeUnknownOrder CallbackOutcome = "unknown_order"
)

// CallbackService verifies and applies gateway webhooks. Delivery is
// concurrent and at-least-once; the status transition is a single
// conditional update so that exactly one delivery wins.
type CallbackService struct {
	cfg       config.GatewayConfig
	store     PaymentStore
	activator *SubscriptionService
	now       func() time.Time
}

func NewCallbackService(cfg config.GatewayConfig, store PaymentStore, activator *SubscriptionService) *CallbackService {
	return &CallbackService{cfg: cfg, store: store, activator: activator, now: time.Now}
}

// callbackPayload is the decoded business payload of a webhook.
type callbackPayload struct {
	MerchantTransactionID string `json:"merchantTransactionId"`
	TransactionID         string `json:"transactionId"`
	Amount                int64  `json:"amount"`
	State                 string `json:"state"`
}

// Process handles one webhook delivery: verify the checksum over the
// encoded payload, decode, and apply the reported state. Nothing in the
// payload is trusted before the checksum matches.
func (s *CallbackService) Process(ctx context.Context, encodedResponse, checksum string) (CallbackOutcome, error) {
	if !gateway.Verify(encodedResponse, s.cfg.CallbackPath, s.cfg.SaltKey, checksum) {
		log.Printf("Callback rejected: checksum mismatch")
		return "", payments.ErrAuthenticity
	}

	decoded, err := base64.StdEncoding.DecodeString(encodedResponse)
	if err != nil {
		return "", payments.ValidationError("callback payload is not valid base64")
	}

	var payload callbackPayload
	if err := json.Unmarshal(decoded, &payload); err != nil || payload.MerchantTransactionID == "" {
		return "", payments.ValidationError("callback payload malformed")
	}

	outcome, err := s.ApplyState(ctx, payload.MerchantTransactionID, gateway.State(payload.State), payload.TransactionID, payload.Amount)
	s.recordCallback(ctx, payload.MerchantTransactionID, decoded, outcome, err)
	return outcome, err
}

// ApplyState applies a gateway-reported state to an order. Shared by the
// webhook path (after verification) and the reconciliation job (which
// obtained the state over the authenticated status API).
func (s *CallbackService) ApplyState(ctx context.Context, merchantTransactionID string, state gateway.State, gatewayTransactionID string, amount int64) (CallbackOutcome, error) {
	if !state.Known() {
		log.Printf("Rejecting unknown gateway state %q for order %s", state, merchantTransactionID)
		return "", fmt.Errorf("%w: %q for order %s", payments.ErrUnknownGatewayState, state, merchantTransactionID)
	}

	order, err := s.store.FindByMerchantTransactionID(ctx, merchantTransactionID)
	if err != nil {
		return "", err
	}
	if order == nil {
		// Acknowledged so the gateway stops redelivering; logged so
		// operators can investigate.
		log.Printf("Callback for unknown order %s, acknowledging without action", merchantTransactionID)
		return CallbackOutcomeUnknownOrder, nil
	}

	if order.Status.Terminal() {
		// Gateways redeliver at least once; a terminal order means this
		// delivery already happened.
		return CallbackOutcomeDuplicate, nil
	}

	if amount > 0 && amount != order.Amount {
		log.Printf("Callback amount %d does not match order %s amount %d, rejecting", amount, merchantTransactionID, order.Amount)
		return "", payments.ValidationError("callback amount %d does not match order amount %d", amount, order.Amount)
	}

	var target models.PaymentStatus
	var outcome CallbackOutcome
	var failureReason string
	switch state {
	case gateway.StatePending:
		// Still in flight on the gateway side; nothing to write.
		return CallbackOutcomePending, nil
	case gateway.StateSuccess:
		target, outcome = models.PaymentStatusCompleted, CallbackOutcomeCompleted
	case gateway.StateFailed:
		target, outcome = models.PaymentStatusFailed, CallbackOutcomeFailed
		failureReason = "gateway reported payment failed"
	case gateway.StateCancelled:
		target, outcome = models.PaymentStatusCancelled, CallbackOutcomeCancelled
		failureReason = "payment cancelled on gateway checkout"
	}

	now := s.now()
	extra := map[string]interface{}{"processed_at": &now}
	if gatewayTransactionID != "" {
		extra["gateway_transaction_id"] = gatewayTransactionID
	}
	if failureReason != "" {
		extra["failure_reason"] = failureReason
	}

	won, err := s.store.TransitionStatus(ctx, merchantTransactionID, models.PaymentStatusProcessing, target, extra)
	if err != nil {
		return "", err
	}
	if !won {
		// A concurrent delivery performed the transition first.
		return CallbackOutcomeDuplicate, nil
	}

	log.Printf("Order %s: %s -> %s", merchantTransactionID, models.PaymentStatusProcessing, target)

	if target == models.PaymentStatusCompleted {
		// Only the winning delivery reaches this point, and the
		// activation flag makes a retry after a crash here safe.
		if _, _, err := s.activator.Activate(ctx, order); err != nil {
			return "", err
		}
	}

	return outcome, nil
}

func (s *CallbackService) recordCallback(ctx context.Context, merchantTransactionID string, metadata []byte, outcome CallbackOutcome, procErr error) {
	entry := &models.PaymentCallbackHistory{
		MerchantTransactionID: merchantTransactionID,
		Metadata:              metadata,
		Outcome:               string(outcome),
	}
	if procErr != nil {
		entry.Outcome = "error: " + procErr.Error()
	}
	if err := s.store.RecordCallback(ctx, entry); err != nil {
		log.Printf("Failed to record callback history for %s: %v", merchantTransactionID, err)
	}
}
