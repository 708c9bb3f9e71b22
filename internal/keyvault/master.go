package keyvault

import (
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/dmitrijs2005/sealpay/internal/cryptox"
)

const redacted = "[REDACTED]"

// MasterSecret is the process-wide 256-bit root of every KEK.
//
// It is an immutable value: the bytes live in an array that is only ever
// copied into derivation functions. Every textual rendering is redacted, so
// the secret cannot leak through fmt, slog or JSON.
type MasterSecret struct {
	b   [cryptox.KeySize]byte
	set bool
}

// NewMasterSecret copies raw into a MasterSecret. raw must be 32 bytes.
func NewMasterSecret(raw []byte) (MasterSecret, error) {
	if len(raw) != cryptox.KeySize {
		return MasterSecret{}, fmt.Errorf("%w: master secret must be %d bytes, got %d", common.ErrorInput, cryptox.KeySize, len(raw))
	}
	var m MasterSecret
	copy(m.b[:], raw)
	m.set = true
	return m, nil
}

// ParseMasterSecret decodes a standard base64 master secret.
func ParseMasterSecret(b64 string) (MasterSecret, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return MasterSecret{}, fmt.Errorf("%w: master secret is not valid base64", common.ErrorInput)
	}
	defer common.WipeByteArray(raw)
	return NewMasterSecret(raw)
}

// IsZero reports whether the secret was never initialised.
func (m MasterSecret) IsZero() bool {
	return !m.set
}

func (m MasterSecret) String() string   { return redacted }
func (m MasterSecret) GoString() string { return redacted }

// Format keeps %x, %v and friends from printing the array.
func (m MasterSecret) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(redacted))
}

func (m MasterSecret) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

func (m MasterSecret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func (m MasterSecret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}
