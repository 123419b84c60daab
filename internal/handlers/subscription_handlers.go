package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"healthplan_billing/internal/services"
)

// SubscriptionHandler exposes read-only subscription state; the paywall
// uses it to decide whether to gate content.
type SubscriptionHandler struct {
	subscriptions *services.SubscriptionService
}

func NewSubscriptionHandler(subscriptions *services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

// Current returns the caller's active subscription, if any.
func (h *SubscriptionHandler) Current(c echo.Context) error {
	uid, ok := c.Get("userUID").(string)
	if !ok || uid == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
	}

	sub, err := h.subscriptions.Current(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	if sub == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "subscription": nil})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "subscription": sub})
}
