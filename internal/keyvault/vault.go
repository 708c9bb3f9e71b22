// Package keyvault derives per-content key-encryption keys from one master
// secret and wraps/unwraps content keys with them.
//
// The vault holds no mutable state: every operation is a pure function of
// the injected MasterSecret and the content id. Compromising one wrapped
// record never discloses another content's key because the content id is
// the HKDF salt; compromising the master secret compromises all of them.
package keyvault

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"

	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/dmitrijs2005/sealpay/internal/cryptox"
	"golang.org/x/crypto/hkdf"
)

const (
	// KEKInfo is the HKDF context label for key-encryption keys.
	KEKInfo = "kek"

	// FingerprintInfo is the HKDF context label for the plaintext fingerprint key.
	FingerprintInfo = "fingerprint"
)

// ErrMasterSecretUnset is returned by New for a zero MasterSecret.
var ErrMasterSecretUnset = errors.New("master secret is not set")

// WrappedKey is a content key encrypted under its KEK.
type WrappedKey struct {
	Ciphertext []byte
	Nonce      []byte
	Tag        []byte
}

// Vault wraps and unwraps content keys.
type Vault struct {
	master MasterSecret
}

// New constructs a Vault bound to master.
func New(master MasterSecret) (*Vault, error) {
	if master.IsZero() {
		return nil, ErrMasterSecretUnset
	}
	return &Vault{master: master}, nil
}

// DecodeContentID turns a hex content id into the raw digest bytes used as salt.
func DecodeContentID(contentID string) ([]byte, error) {
	raw, err := hex.DecodeString(contentID)
	if err != nil || len(raw) != sha256.Size {
		return nil, fmt.Errorf("%w: content id must be %d hex characters", common.ErrorInput, sha256.Size*2)
	}
	return raw, nil
}

func derive(master MasterSecret, salt []byte, info string) ([]byte, error) {
	ikm := master.b
	defer common.WipeByteArray(ikm[:])

	reader := hkdf.New(sha256.New, ikm[:], salt, []byte(info))
	key := make([]byte, cryptox.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return key, nil
}

// DeriveKEK is HKDF-SHA256(master, salt=id bytes, info="kek") truncated to 32 bytes.
// The same id always yields the same KEK and no KEK is ever stored.
func DeriveKEK(master MasterSecret, contentID string) ([]byte, error) {
	salt, err := DecodeContentID(contentID)
	if err != nil {
		return nil, err
	}
	return derive(master, salt, KEKInfo)
}

// DeriveKEK derives the KEK for contentID under the vault's master secret.
func (v *Vault) DeriveKEK(contentID string) ([]byte, error) {
	return DeriveKEK(v.master, contentID)
}

// Wrap encrypts contentKey under the KEK of contentID with a fresh nonce.
// The raw id is bound as additional data.
func (v *Vault) Wrap(contentKey []byte, contentID string) (*WrappedKey, error) {
	if len(contentKey) != cryptox.KeySize {
		return nil, fmt.Errorf("%w: %w", common.ErrorInput, cryptox.ErrInvalidKeySize)
	}

	aad, err := DecodeContentID(contentID)
	if err != nil {
		return nil, err
	}

	kek, err := v.DeriveKEK(contentID)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(kek)

	nonce := cryptox.GenerateNonce()
	sealed, err := cryptox.Seal(kek, nonce, contentKey, aad)
	if err != nil {
		return nil, err
	}

	ct, tag, err := cryptox.SplitTag(sealed)
	if err != nil {
		return nil, err
	}

	return &WrappedKey{Ciphertext: ct, Nonce: nonce, Tag: tag}, nil
}

// Unwrap verifies and decrypts a wrapped key. Any tag mismatch yields
// common.ErrorAuthentication and no key material.
func (v *Vault) Unwrap(w *WrappedKey, contentID string) ([]byte, error) {
	if w == nil || len(w.Tag) != cryptox.TagSize || len(w.Nonce) != cryptox.NonceSize {
		return nil, common.ErrorAuthentication
	}

	aad, err := DecodeContentID(contentID)
	if err != nil {
		return nil, err
	}

	kek, err := v.DeriveKEK(contentID)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(kek)

	key, err := cryptox.Open(kek, w.Nonce, cryptox.JoinTag(w.Ciphertext, w.Tag), aad)
	if err != nil {
		return nil, common.ErrorAuthentication
	}

	if len(key) != cryptox.KeySize {
		common.WipeByteArray(key)
		return nil, common.ErrorAuthentication
	}

	return key, nil
}

// Fingerprint returns a keyed hasher for duplicate detection of plaintexts.
// Equal plaintexts produce equal fingerprints under one master secret, but
// the stored value reveals nothing without it.
func (v *Vault) Fingerprint() (hash.Hash, error) {
	key, err := derive(v.master, nil, FingerprintInfo)
	if err != nil {
		return nil, err
	}
	h := hmac.New(sha256.New, key)
	common.WipeByteArray(key)
	return h, nil
}
