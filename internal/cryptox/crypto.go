// Package cryptox holds the AES-256-GCM primitives shared by the content
// sealer, the key vault and the buyer CLI.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sealpay/internal/common"
)

const (
	// Algorithm is the tag stored with every content record.
	Algorithm = "aes-256-gcm"

	// KeySize is the AES-256 key size in bytes.
	KeySize = 32

	// NonceSize is the standard GCM nonce size (96 bits).
	NonceSize = 12

	// TagSize is the GCM authentication tag size (128 bits).
	TagSize = 16
)

var (
	ErrInvalidKeySize   = errors.New("invalid key size: must be 32 bytes")
	ErrInvalidNonceSize = errors.New("invalid nonce size: must be 12 bytes")
	ErrShortCiphertext  = errors.New("ciphertext shorter than authentication tag")
)

// NewAESGCM creates an AES-GCM AEAD from a 256-bit key.
func NewAESGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return aesgcm, nil
}

// GenerateKey returns a fresh random content key.
func GenerateKey() []byte {
	return common.GenerateRandByteArray(KeySize)
}

// GenerateNonce returns a fresh random GCM nonce.
func GenerateNonce() []byte {
	return common.GenerateRandByteArray(NonceSize)
}

// Seal encrypts plaintext and returns ciphertext with the 16-byte tag appended.
//
// The nonce must never be reused with the same key.
//
// Example:
//
//	key := cryptox.GenerateKey()
//	nonce := cryptox.GenerateNonce()
//	sealed, err := cryptox.Seal(key, nonce, []byte("hello"), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("sealed: %x\n", sealed)
func Seal(key, nonce, plaintext, additionalData []byte) ([]byte, error) {
	aesgcm, err := NewAESGCM(key)
	if err != nil {
		return nil, err
	}

	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonceSize
	}

	return aesgcm.Seal(nil, nonce, plaintext, additionalData), nil
}

// Open verifies and decrypts ciphertext‖tag produced by Seal.
//
// Any tag mismatch is reported as common.ErrorAuthentication and no
// plaintext is returned.
func Open(key, nonce, sealed, additionalData []byte) ([]byte, error) {
	aesgcm, err := NewAESGCM(key)
	if err != nil {
		return nil, err
	}

	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonceSize
	}

	if len(sealed) < TagSize {
		return nil, ErrShortCiphertext
	}

	plaintext, err := aesgcm.Open(nil, nonce, sealed, additionalData)
	if err != nil {
		return nil, common.ErrorAuthentication
	}

	return plaintext, nil
}

// SplitTag separates the trailing authentication tag from a sealed buffer.
// The returned slices alias sealed.
func SplitTag(sealed []byte) (ciphertext, tag []byte, err error) {
	if len(sealed) < TagSize {
		return nil, nil, ErrShortCiphertext
	}
	n := len(sealed) - TagSize
	return sealed[:n], sealed[n:], nil
}

// JoinTag rebuilds ciphertext‖tag into a fresh buffer.
func JoinTag(ciphertext, tag []byte) []byte {
	out := make([]byte, 0, len(ciphertext)+len(tag))
	out = append(out, ciphertext...)
	return append(out, tag...)
}
