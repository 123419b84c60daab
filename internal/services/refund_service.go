package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"healthplan_billing/internal/config"
	"healthplan_billing/internal/gateway"
	"healthplan_billing/internal/models"
	"healthplan_billing/internal/payments"
)

// RefundService reverses completed payments and cancels the associated
// subscription.
type RefundService struct {
	cfg   config.GatewayConfig
	store PaymentStore
	subs  SubscriptionStore
	gw    PaymentGateway
}

func NewRefundService(cfg config.GatewayConfig, store PaymentStore, subs SubscriptionStore, gw PaymentGateway) *RefundService {
	return &RefundService{cfg: cfg, store: store, subs: subs, gw: gw}
}

type RefundInput struct {
	PaymentID string // merchant transaction id of the original order
	Amount    int64  // paise; 0 means full refund
	Reason    string
}

type RefundOutcome struct {
	RefundID string
}

// refundRequest is the gateway's refund payload.
type refundRequest struct {
	MerchantID            string `json:"merchantId"`
	MerchantUserID        string `json:"merchantUserId"`
	MerchantTransactionID string `json:"merchantTransactionId"`
	OriginalTransactionID string `json:"originalTransactionId"`
	Amount                int64  `json:"amount"`
	CallbackURL           string `json:"callbackUrl"`
}

// Refund reverses a completed payment. On gateway success the order
// moves to REFUNDED and the subscription is canceled immediately — a
// refund is not a non-renewal, access stops now. On gateway rejection
// the order keeps COMPLETED and only the failure reason is recorded.
func (s *RefundService) Refund(ctx context.Context, in RefundInput) (*RefundOutcome, error) {
	order, err := s.store.FindByMerchantTransactionID(ctx, in.PaymentID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: payment order %s", payments.ErrNotFound, in.PaymentID)
	}
	if order.Status != models.PaymentStatusCompleted {
		return nil, fmt.Errorf("%w: refund requires a COMPLETED order, %s is %s", payments.ErrConflict, in.PaymentID, order.Status)
	}

	amount := in.Amount
	if amount == 0 {
		amount = order.Amount
	}
	if amount < 0 {
		return nil, payments.ValidationError("refund amount must be positive, got %d", amount)
	}
	if amount > order.Amount {
		return nil, payments.ValidationError("refund amount %d exceeds original amount %d", amount, order.Amount)
	}

	// Fresh idempotency key per refund attempt; a timed-out attempt is
	// never retried under the same id.
	merchantRefundID := "RF" + uuid.NewString()

	rawRequest, err := json.Marshal(refundRequest{
		MerchantID:            s.cfg.MerchantID,
		MerchantUserID:        order.UserID,
		MerchantTransactionID: merchantRefundID,
		OriginalTransactionID: order.MerchantTransactionID,
		Amount:                amount,
		CallbackURL:           s.cfg.CallbackURL,
	})
	if err != nil {
		return nil, err
	}

	encoded := base64.StdEncoding.EncodeToString(rawRequest)
	checksum := gateway.Sign(encoded, gateway.RefundEndpoint, s.cfg.SaltKey, s.cfg.SaltIndex)

	res, err := s.gw.Refund(ctx, encoded, checksum)
	if err != nil {
		var gwErr *payments.GatewayError
		if errors.As(err, &gwErr) {
			reason := "refund rejected: " + gwErr.Error()
			if recErr := s.store.RecordFailureReason(ctx, order.ID, reason); recErr != nil {
				log.Printf("Failed to record refund failure on order %s: %v", in.PaymentID, recErr)
			}
		}
		return nil, err
	}

	refund := &models.Refund{
		MerchantRefundID: merchantRefundID,
		Amount:           amount,
		Reason:           in.Reason,
		State:            string(res.State),
		RawResponse:      res.Raw,
	}
	if res.GatewayRefundID != "" {
		refund.GatewayRefundID = &res.GatewayRefundID
	}

	applied, err := s.subs.ApplyRefund(ctx, order, refund)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, fmt.Errorf("%w: order %s changed state during refund", payments.ErrConflict, in.PaymentID)
	}

	log.Printf("Refunded %d paise on order %s (refund %s)", amount, in.PaymentID, merchantRefundID)
	return &RefundOutcome{RefundID: merchantRefundID}, nil
}
