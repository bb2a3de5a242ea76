package paypal

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the provider answers 404 for a lookup.
// Callers usually treat it as benign (see the webhook reconciler).
var ErrNotFound = errors.New("paypal: resource not found")

// AuthError means an access token could not be obtained. That is a
// configuration problem, fatal for the request and never retried blindly.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "paypal: could not obtain access token: " + e.Reason
}

// APIError carries the provider's raw rejection so the server-side log
// keeps the real reason while the HTTP boundary returns a translated one.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal: request rejected: status=%d body=%s", e.Status, e.Body)
}

// TimeoutError marks a network-level timeout. Distinct from APIError
// because timeouts are retry-safe: capture is idempotent provider-side.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("paypal: %s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}
