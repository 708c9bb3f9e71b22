// Package wire holds the JSON bodies exchanged between the SealPay HTTP
// server and its clients.
package wire

import "time"

type UploadResponse struct {
	ID        string `json:"id"`
	Algorithm string `json:"algorithm"`
	Size      int64  `json:"size"`
}

type PaymentRequest struct {
	Payer string `json:"payer,omitempty"`
}

type PaymentIntent struct {
	ContentID      string    `json:"content_id"`
	Backend        string    `json:"backend"`
	ExternalRef    string    `json:"external_ref"`
	PaymentRequest string    `json:"payment_request"`
	Payer          string    `json:"payer,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type PaymentStatus struct {
	ContentID    string `json:"content_id"`
	IntentStatus string `json:"intent_status"`
	PaymentState string `json:"payment_state"`
}

// ReleasedKey carries key material; byte fields encode as base64.
type ReleasedKey struct {
	ID         string `json:"id"`
	Algorithm  string `json:"algorithm"`
	ContentKey []byte `json:"content_key"`
	Nonce      []byte `json:"nonce"`
}

type Error struct {
	Error        string `json:"error"`
	IntentStatus string `json:"intent_status,omitempty"`
}
