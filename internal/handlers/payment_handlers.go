package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"healthplan_billing/internal/models"
	"healthplan_billing/internal/services"
)

// PaymentHandler exposes the payment lifecycle over HTTP: order
// creation, the gateway webhook, refunds and the status poll.
type PaymentHandler struct {
	orders    *services.OrderService
	callbacks *services.CallbackService
	refunds   *services.RefundService
}

func NewPaymentHandler(orders *services.OrderService, callbacks *services.CallbackService, refunds *services.RefundService) *PaymentHandler {
	return &PaymentHandler{orders: orders, callbacks: callbacks, refunds: refunds}
}

type createOrderRequest struct {
	Amount       int64  `json:"amount"`
	UserID       string `json:"userId"`
	PlanSlug     string `json:"planSlug"`
	BillingCycle string `json:"billingCycle"`
}

type createOrderResponse struct {
	Success     bool   `json:"success"`
	RedirectURL string `json:"redirectUrl"`
	OrderID     string `json:"orderId"`
}

// CreateOrder starts a checkout. The authenticated user always pays for
// themselves: a UID from the auth middleware overrides the body field.
func (h *PaymentHandler) CreateOrder(c echo.Context) error {
	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	if uid, ok := c.Get("userUID").(string); ok && uid != "" {
		req.UserID = uid
	}

	result, err := h.orders.Create(c.Request().Context(), services.CreateOrderInput{
		UserID:       req.UserID,
		PlanSlug:     req.PlanSlug,
		BillingCycle: models.BillingCycle(req.BillingCycle),
		Amount:       req.Amount,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, createOrderResponse{
		Success:     true,
		RedirectURL: result.RedirectURL,
		OrderID:     result.MerchantTransactionID,
	})
}

type callbackRequest struct {
	Response string `json:"response"`
	Checksum string `json:"checksum"`
}

// HandleCallback receives webhook deliveries from the gateway. Every
// handled outcome — including duplicates and unknown orders — is
// acknowledged with 200 so the gateway stops redelivering; only a
// checksum mismatch (or undecodable payload) earns a 400.
func (h *PaymentHandler) HandleCallback(c echo.Context) error {
	var req callbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	if _, err := h.callbacks.Process(c.Request().Context(), req.Response, req.Checksum); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"success": true})
}

type refundRequest struct {
	PaymentID    string `json:"paymentId"`
	RefundAmount int64  `json:"refundAmount"`
	Reason       string `json:"reason"`
}

type refundResponse struct {
	Success  bool   `json:"success"`
	RefundID string `json:"refundId"`
}

// Refund reverses a completed payment and cancels the subscription.
func (h *PaymentHandler) Refund(c echo.Context) error {
	var req refundRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.PaymentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "paymentId is required")
	}

	result, err := h.refunds.Refund(c.Request().Context(), services.RefundInput{
		PaymentID: req.PaymentID,
		Amount:    req.RefundAmount,
		Reason:    req.Reason,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, refundResponse{Success: true, RefundID: result.RefundID})
}

// OrderStatus is the polling fallback for clients that missed the
// redirect back from checkout.
func (h *PaymentHandler) OrderStatus(c echo.Context) error {
	orderID := c.Param("orderId")
	if orderID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "orderId is required")
	}

	status, err := h.orders.Status(c.Request().Context(), orderID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"status": status})
}
