// Package blobstore keeps sealed blobs addressed by content id. Writes go to
// a temporary handle first and become visible under the final id only on
// Commit, so a reader never observes a partial blob.
package blobstore

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/dmitrijs2005/sealpay/internal/logging"
)

// Pending is an in-progress blob. Exactly one of Commit or Abort must be called.
type Pending interface {
	io.Writer
	// Commit publishes the written bytes under id.
	Commit(ctx context.Context, id string) error
	// Abort discards the written bytes.
	Abort(ctx context.Context) error
}

// Store is the blob persistence contract shared by every backend.
type Store interface {
	Begin(ctx context.Context) (Pending, error)
	// Open returns common.ErrorNotFound for unknown ids.
	Open(ctx context.Context, id string) (io.ReadCloser, error)
	Exists(ctx context.Context, id string) (bool, error)
	// Remove deletes a published blob. Used only to compensate a failed
	// metadata transaction.
	Remove(ctx context.Context, id string) error
	Close() error
}

type Backend string

const (
	BackendFS     Backend = "fs"
	BackendS3     Backend = "s3"
	BackendBadger Backend = "badger"
)

type Config struct {
	Backend Backend

	// Dir is the fs backend root, relative to the working directory.
	Dir string
	// BadgerDir is the badger data directory. Empty runs in memory.
	BadgerDir string

	S3Bucket       string
	S3Prefix       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string
}

// New opens the backend selected by cfg.Backend.
func New(ctx context.Context, cfg Config, logger logging.Logger) (Store, error) {
	switch cfg.Backend {
	case BackendFS, "":
		return NewFSStore(cfg.Dir, logger)
	case BackendS3:
		return NewS3Store(ctx, cfg, logger)
	case BackendBadger:
		return NewBadgerStore(cfg.BadgerDir, logger)
	default:
		return nil, fmt.Errorf("%w: unknown blob backend %q", common.ErrorInput, cfg.Backend)
	}
}

func objectName(id string) string {
	return id + ".bin"
}
