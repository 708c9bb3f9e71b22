// Package common defines shared constants and sentinel errors used across
// the SealPay server, its adapters and the buyer CLI. Callers should use
// errors.Is / errors.As to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")
	ErrorStateConflict = errors.New("state conflict")

	// Caller errors: malformed payload, id or payer proof.
	ErrorInput = errors.New("invalid input")

	// AEAD tag mismatch while opening content or unwrapping a content key.
	ErrorAuthentication = errors.New("authentication failed")

	// Key release denied because the authoritative check says not yet paid.
	ErrorPaymentRequired = errors.New("payment required")

	// Settlement backend unreachable or answered with a transient failure.
	ErrorExternalBackend = errors.New("external backend unavailable")

	// Finalized blob without metadata row, or the inverse.
	ErrorIntegrity = errors.New("integrity violation")

	// Payment state machine.
	ErrorIllegalTransition = errors.New("illegal state transition")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)

// PaymentRequiredError reports that a key cannot be released yet.
// IntentStatus is empty when no payment intent exists for the content.
type PaymentRequiredError struct {
	ContentID    string
	IntentStatus string
}

func (e *PaymentRequiredError) Error() string {
	if e.IntentStatus == "" {
		return fmt.Sprintf("payment required for %s", e.ContentID)
	}
	return fmt.Sprintf("payment required for %s (intent %s)", e.ContentID, e.IntentStatus)
}

func (e *PaymentRequiredError) Unwrap() error {
	return ErrorPaymentRequired
}
