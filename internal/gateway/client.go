package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"

	"healthplan_billing/internal/config"
	"healthplan_billing/internal/payments"
)

// Gateway endpoints. The checksum of a request is always computed over
// the payload plus the endpoint path it is sent to.
const (
	PayEndpoint    = "/pg/v1/pay"
	RefundEndpoint = "/pg/v1/refund"
)

// State is a payment state as reported by the gateway. Only the
// documented set below is accepted; anything else (the gateway has been
// observed to emit e.g. EXPIRED) is rejected explicitly, never coerced.
type State string

const (
	StatePending   State = "PENDING"
	StateSuccess   State = "SUCCESS"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
)

// Known reports whether the state belongs to the documented set.
func (s State) Known() bool {
	switch s {
	case StatePending, StateSuccess, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Client wraps the gateway's HTTP API: create order, query status,
// refund. Every call is bounded by the configured timeout; a call that
// times out is surfaced as payments.ErrGatewayTimeout and must not be
// retried with the same idempotency key.
type Client struct {
	cfg        config.GatewayConfig
	httpClient *http.Client
}

func NewClient(cfg config.GatewayConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// envelope is the common response wrapper of all gateway endpoints.
type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// CreateOrderResult is the useful subset of a successful pay response.
type CreateOrderResult struct {
	GatewayTransactionID string
	RedirectURL          string
	Raw                  json.RawMessage
}

// CreateOrder submits a signed, base64-encoded order payload and returns
// the hosted-checkout redirect target.
func (c *Client) CreateOrder(ctx context.Context, base64Payload, checksum string) (*CreateOrderResult, error) {
	body, err := json.Marshal(map[string]string{"request": base64Payload})
	if err != nil {
		return nil, err
	}

	raw, env, err := c.call(ctx, http.MethodPost, PayEndpoint, checksum, body)
	if err != nil {
		return nil, err
	}

	var data struct {
		TransactionID      string `json:"transactionId"`
		InstrumentResponse struct {
			RedirectInfo struct {
				URL string `json:"url"`
			} `json:"redirectInfo"`
		} `json:"instrumentResponse"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.InstrumentResponse.RedirectInfo.URL == "" {
		return nil, &payments.GatewayError{StatusCode: http.StatusOK, RawBody: raw, Message: "pay response missing redirect url"}
	}

	return &CreateOrderResult{
		GatewayTransactionID: data.TransactionID,
		RedirectURL:          data.InstrumentResponse.RedirectInfo.URL,
		Raw:                  raw,
	}, nil
}

// StatusResult is the useful subset of a status response.
type StatusResult struct {
	State                State
	GatewayTransactionID string
	Amount               int64
	Raw                  json.RawMessage
}

// QueryStatus polls the gateway for the state of a transaction. Used by
// the reconciliation job; the webhook is the primary path.
func (c *Client) QueryStatus(ctx context.Context, merchantTransactionID string) (*StatusResult, error) {
	endpoint := fmt.Sprintf("/pg/v1/status/%s/%s", c.cfg.MerchantID, merchantTransactionID)
	checksum := Sign("", endpoint, c.cfg.SaltKey, c.cfg.SaltIndex)

	raw, env, err := c.call(ctx, http.MethodGet, endpoint, checksum, nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		State         string `json:"state"`
		TransactionID string `json:"transactionId"`
		Amount        int64  `json:"amount"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.State == "" {
		return nil, &payments.GatewayError{StatusCode: http.StatusOK, RawBody: raw, Message: "status response missing state"}
	}

	return &StatusResult{
		State:                State(data.State),
		GatewayTransactionID: data.TransactionID,
		Amount:               data.Amount,
		Raw:                  raw,
	}, nil
}

// RefundResult is the useful subset of a refund response.
type RefundResult struct {
	GatewayRefundID string
	State           State
	Raw             json.RawMessage
}

// Refund submits a signed, base64-encoded refund payload.
func (c *Client) Refund(ctx context.Context, base64Payload, checksum string) (*RefundResult, error) {
	body, err := json.Marshal(map[string]string{"request": base64Payload})
	if err != nil {
		return nil, err
	}

	raw, env, err := c.call(ctx, http.MethodPost, RefundEndpoint, checksum, body)
	if err != nil {
		return nil, err
	}

	var data struct {
		TransactionID string `json:"transactionId"`
		State         string `json:"state"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &payments.GatewayError{StatusCode: http.StatusOK, RawBody: raw, Message: "malformed refund response"}
	}

	return &RefundResult{
		GatewayRefundID: data.TransactionID,
		State:           State(data.State),
		Raw:             raw,
	}, nil
}

// call performs one gateway request and decodes the response envelope.
// Non-2xx and unsuccessful envelopes become *payments.GatewayError
// carrying the raw body for audit.
func (c *Client) call(ctx context.Context, method, endpoint, checksum string, body []byte) (json.RawMessage, *envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+endpoint, reader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-VERIFY", checksum)
	req.Header.Set("X-MERCHANT-ID", c.cfg.MerchantID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, nil, fmt.Errorf("%w: %s %s", payments.ErrGatewayTimeout, method, endpoint)
		}
		return nil, nil, &payments.GatewayError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if isTimeout(err) {
			return nil, nil, fmt.Errorf("%w: %s %s", payments.ErrGatewayTimeout, method, endpoint)
		}
		return nil, nil, &payments.GatewayError{StatusCode: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("Gateway %s %s returned HTTP %d", method, endpoint, resp.StatusCode)
		return nil, nil, &payments.GatewayError{StatusCode: resp.StatusCode, RawBody: raw}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, &payments.GatewayError{StatusCode: resp.StatusCode, RawBody: raw, Message: "malformed response body"}
	}
	if !env.Success {
		return nil, nil, &payments.GatewayError{StatusCode: resp.StatusCode, RawBody: raw, Message: env.Message}
	}

	return raw, &env, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
