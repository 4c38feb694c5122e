package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions handlers recover from locally.
var (
	ErrItemNotFound    = errors.New("menu item not found")
	ErrItemUnavailable = errors.New("menu item unavailable")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrOutOfZone       = errors.New("delivery location outside all zones")
	ErrOrderNotFound   = errors.New("order not found")
	ErrSessionClosed   = errors.New("session closed")
)

// MinimumNotMetError signals a cart subtotal below the zone minimum order.
type MinimumNotMetError struct {
	Minimum  Money
	Subtotal Money
}

func (e *MinimumNotMetError) Error() string {
	return fmt.Sprintf("subtotal %s below zone minimum %s", e.Subtotal, e.Minimum)
}

// Remaining is the amount the customer still has to add for delivery.
func (e *MinimumNotMetError) Remaining() Money { return e.Minimum.Sub(e.Subtotal) }

// ComposeError reports an outbound payload that would violate a WhatsApp
// API limit. Callers downgrade to a plain text message.
type ComposeError struct {
	Kind   string
	Reason string
}

func (e *ComposeError) Error() string {
	return fmt.Sprintf("compose %s: %s", e.Kind, e.Reason)
}

// APIError is a normalized failure from the remote ordering backend. Both
// response envelopes ({type:"3"} and {success:false}) collapse into this.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend error: %s", e.Message)
}

// Transient reports whether the failure is worth retrying: network errors
// carry status 0, plus 5xx and 429.
func (e *APIError) Transient() bool {
	return e.Status == 0 || e.Status >= 500 || e.Status == 429
}

// IsTransientBackend reports whether err is a retry-exhausted transient
// backend failure (network, 5xx, 429).
func IsTransientBackend(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Transient()
}
