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

// OrderService creates payment orders against the gateway.
type OrderService struct {
	cfg     config.GatewayConfig
	store   PaymentStore
	catalog *CatalogService
	gw      PaymentGateway
}

func NewOrderService(cfg config.GatewayConfig, store PaymentStore, catalog *CatalogService, gw PaymentGateway) *OrderService {
	return &OrderService{cfg: cfg, store: store, catalog: catalog, gw: gw}
}

type CreateOrderInput struct {
	UserID       string
	PlanSlug     string
	BillingCycle models.BillingCycle
	Amount       int64 // paise
}

type CreateOrderResult struct {
	MerchantTransactionID string
	RedirectURL           string
}

// payRequest is the gateway's pay payload. It is serialized, base64
// encoded and signed before leaving the process.
type payRequest struct {
	MerchantID            string            `json:"merchantId"`
	MerchantTransactionID string            `json:"merchantTransactionId"`
	MerchantUserID        string            `json:"merchantUserId"`
	Amount                int64             `json:"amount"`
	RedirectURL           string            `json:"redirectUrl"`
	RedirectMode          string            `json:"redirectMode"`
	CallbackURL           string            `json:"callbackUrl"`
	PaymentInstrument     paymentInstrument `json:"paymentInstrument"`
}

type paymentInstrument struct {
	Type string `json:"type"`
}

// Create validates the input, signs and submits the order to the
// gateway, and persists the resulting order row. Persistence happens
// only after a gateway response is received: a PROCESSING row therefore
// always corresponds to an order the gateway knows about.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error) {
	if in.Amount <= 0 {
		return nil, payments.ValidationError("amount must be a positive number of paise, got %d", in.Amount)
	}
	if in.UserID == "" {
		return nil, payments.ValidationError("userId is required")
	}
	if !in.BillingCycle.Valid() {
		return nil, payments.ValidationError("billingCycle must be %q or %q", models.BillingCycleMonthly, models.BillingCycleAnnual)
	}

	plan, err := s.catalog.Resolve(ctx, in.PlanSlug)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, payments.ValidationError("unknown plan %q", in.PlanSlug)
	}

	merchantTransactionID := "MT" + uuid.NewString()

	redirectURL := fmt.Sprintf("%s?orderId=%s&plan=%s&cycle=%s",
		s.cfg.RedirectBaseURL, merchantTransactionID, in.PlanSlug, in.BillingCycle)

	rawRequest, err := json.Marshal(payRequest{
		MerchantID:            s.cfg.MerchantID,
		MerchantTransactionID: merchantTransactionID,
		MerchantUserID:        in.UserID,
		Amount:                in.Amount,
		RedirectURL:           redirectURL,
		RedirectMode:          "REDIRECT",
		CallbackURL:           s.cfg.CallbackURL,
		PaymentInstrument:     paymentInstrument{Type: "PAY_PAGE"},
	})
	if err != nil {
		return nil, err
	}

	encoded := base64.StdEncoding.EncodeToString(rawRequest)
	checksum := gateway.Sign(encoded, gateway.PayEndpoint, s.cfg.SaltKey, s.cfg.SaltIndex)

	order := &models.PaymentOrder{
		MerchantTransactionID: merchantTransactionID,
		UserID:                in.UserID,
		PlanID:                plan.ID,
		BillingCycle:          in.BillingCycle,
		Amount:                in.Amount,
		Currency:              "INR",
		Status:                models.PaymentStatusPending,
		RawRequest:            rawRequest,
	}

	res, err := s.gw.CreateOrder(ctx, encoded, checksum)
	if err != nil {
		// A rejected order is still recorded, so the paywall can tell
		// "failed" apart from "still processing". A timeout produced no
		// response and leaves no row.
		var gwErr *payments.GatewayError
		if errors.As(err, &gwErr) {
			reason := gwErr.Error()
			order.Status = models.PaymentStatusFailed
			order.FailureReason = &reason
			order.RawResponse = gwErr.RawBody
			if storeErr := s.store.Create(ctx, order); storeErr != nil {
				log.Printf("Failed to persist rejected order %s: %v", merchantTransactionID, storeErr)
			}
		}
		return nil, err
	}

	order.Status = models.PaymentStatusProcessing
	order.RawResponse = res.Raw
	if res.GatewayTransactionID != "" {
		order.GatewayTransactionID = &res.GatewayTransactionID
	}
	if err := s.store.Create(ctx, order); err != nil {
		// The gateway accepted the order but the row write failed; the
		// reconciliation job cannot see it, so operators must. Surface
		// the id in the log for manual reconciliation.
		log.Printf("Order %s accepted by gateway but not persisted: %v", merchantTransactionID, err)
		return nil, err
	}

	log.Printf("Created order %s for user %s (plan %s, %s, %d paise)",
		merchantTransactionID, in.UserID, in.PlanSlug, in.BillingCycle, in.Amount)

	return &CreateOrderResult{
		MerchantTransactionID: merchantTransactionID,
		RedirectURL:           res.RedirectURL,
	}, nil
}

// Status returns the current lifecycle status of an order. Polling
// fallback for clients that missed the redirect.
func (s *OrderService) Status(ctx context.Context, merchantTransactionID string) (models.PaymentStatus, error) {
	order, err := s.store.FindByMerchantTransactionID(ctx, merchantTransactionID)
	if err != nil {
		return "", err
	}
	if order == nil {
		return "", fmt.Errorf("%w: order %s", payments.ErrNotFound, merchantTransactionID)
	}
	return order.Status, nil
}
