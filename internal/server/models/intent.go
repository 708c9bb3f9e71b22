package models

import "time"

// IntentStatus is the settlement status of a PaymentIntent.
type IntentStatus string

const (
	IntentPending IntentStatus = "pending"
	IntentSettled IntentStatus = "settled"
	IntentFailed  IntentStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s IntentStatus) Valid() bool {
	switch s {
	case IntentPending, IntentSettled, IntentFailed:
		return true
	}
	return false
}

// PaymentIntent is the single live payment attempt for a content id.
type PaymentIntent struct {
	ContentID string
	// Backend is the oracle kind that created the intent.
	Backend string
	// ExternalRef is the invoice r_hash, transaction hash or token id.
	ExternalRef string
	// PaymentRequest is what the payer acts on (BOLT11 invoice, tx hash).
	PaymentRequest string
	Payer          string
	Status         IntentStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
