// Package models defines server-side data models persisted in the database.
package models

import "time"

// ContentRecord describes one sealed upload. The sealed blob itself lives in
// the blob store under ID; this row carries the wrapped content key and the
// payment state that gates its release.
type ContentRecord struct {
	// ID is the hex sha256 digest of the sealed blob (ciphertext‖tag).
	ID string

	// WrappedKey, WrapNonce and WrapTag hold the content key encrypted under
	// the per-id KEK.
	WrappedKey []byte
	WrapNonce  []byte
	WrapTag    []byte

	// ContentNonce is the AEAD nonce used to seal the blob.
	ContentNonce []byte
	Algorithm    string

	// Size is the plaintext size in bytes.
	Size int64

	// Fingerprint is the keyed plaintext digest used for duplicate detection.
	Fingerprint []byte

	PaymentState PaymentState
	CreatedAt    time.Time
}
