package payments

import (
	"errors"
	"fmt"
)

// Sentinel errors for the payment lifecycle. Handlers and the central
// error handler match on these with errors.Is.
var (
	// ErrValidation rejects malformed or out-of-range input before any
	// network or store call.
	ErrValidation = errors.New("validation failed")

	// ErrAuthenticity rejects a callback whose checksum does not match.
	// The decoded contents must not be trusted in any way.
	ErrAuthenticity = errors.New("callback signature mismatch")

	// ErrGateway marks a non-success or malformed gateway response.
	ErrGateway = errors.New("gateway error")

	// ErrGatewayTimeout marks a gateway call that produced no response
	// within the bounded timeout. Callers must not retry with the same
	// idempotency key.
	ErrGatewayTimeout = errors.New("gateway timeout")

	// ErrNotFound marks a lookup for an order or subscription that does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict rejects an operation against an order in the wrong
	// state, e.g. refunding a payment that never completed.
	ErrConflict = errors.New("conflict")

	// ErrUnknownGatewayState rejects a callback or status poll carrying
	// a state outside the documented set. Never coerced into a known
	// bucket.
	ErrUnknownGatewayState = errors.New("unknown gateway state")
)

// ValidationError wraps ErrValidation with a field-level message.
func ValidationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// GatewayError carries the raw gateway response for audit.
type GatewayError struct {
	StatusCode int
	RawBody    []byte
	Message    string
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway error (HTTP %d)", e.StatusCode)
}

func (e *GatewayError) Unwrap() error { return ErrGateway }
