package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"healthplan_billing/internal/payments"
)

// ErrorResponse is the JSON envelope for every non-success response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// CustomErrorHandler maps the payment error taxonomy to HTTP status
// codes and a JSON envelope. Validation and authenticity failures are
// client errors; gateway failures are upstream errors; everything
// unclassified is a 500 with the detail kept out of the response.
func CustomErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "internal server error"

	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		code = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok && msg != "" {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	case errors.Is(err, payments.ErrValidation):
		code = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, payments.ErrAuthenticity):
		code = http.StatusBadRequest
		message = "signature verification failed"
	case errors.Is(err, payments.ErrNotFound):
		code = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, payments.ErrConflict):
		code = http.StatusConflict
		message = err.Error()
	case errors.Is(err, payments.ErrGatewayTimeout):
		code = http.StatusGatewayTimeout
		message = "payment gateway timed out"
	case errors.Is(err, payments.ErrGateway):
		code = http.StatusBadGateway
		message = "payment gateway rejected the request"
	case errors.Is(err, payments.ErrUnknownGatewayState):
		// Non-2xx on purpose: the gateway keeps redelivering until
		// operators resolve the unknown state.
		code = http.StatusInternalServerError
		message = "unrecognized gateway state"
	}

	c.Logger().Error(err)

	if jsonErr := c.JSON(code, ErrorResponse{Success: false, Error: message}); jsonErr != nil {
		c.Logger().Error(jsonErr)
	}
}
