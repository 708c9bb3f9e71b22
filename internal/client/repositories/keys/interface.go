// Package keys stores content keys released by the server in the local
// SQLite keyring.
package keys

import (
	"context"
	"time"
)

// ReleasedKey is one decryption key kept by the buyer.
type ReleasedKey struct {
	ContentID  string
	Algorithm  string
	ContentKey []byte
	Nonce      []byte
	SavedAt    time.Time
}

type Repository interface {
	Put(ctx context.Context, k *ReleasedKey) error
	// Get returns common.ErrorNotFound when no key is stored for id.
	Get(ctx context.Context, contentID string) (*ReleasedKey, error)
	List(ctx context.Context) ([]*ReleasedKey, error)
	Delete(ctx context.Context, contentID string) error
}
