// Package services contains the server-side business logic: sealing uploads,
// serving sealed blobs and gating key release on payment.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/sealpay/internal/blobstore"
	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/dmitrijs2005/sealpay/internal/cryptox"
	"github.com/dmitrijs2005/sealpay/internal/dbx"
	"github.com/dmitrijs2005/sealpay/internal/keyvault"
	"github.com/dmitrijs2005/sealpay/internal/logging"
	"github.com/dmitrijs2005/sealpay/internal/metrics"
	"github.com/dmitrijs2005/sealpay/internal/server/models"
	"github.com/dmitrijs2005/sealpay/internal/server/repositories/repomanager"
	"github.com/opencontainers/go-digest"
)

// DefaultChunkSize is the write size used when streaming a sealed blob.
const DefaultChunkSize = 1 << 20

// SealResult is what an uploader learns about sealed content.
type SealResult struct {
	ID        string
	Algorithm string
	Size      int64
}

func resultOf(c *models.ContentRecord) *SealResult {
	return &SealResult{ID: c.ID, Algorithm: c.Algorithm, Size: c.Size}
}

// Sealer encrypts uploads under fresh content keys, publishes the sealed
// blob and records the wrapped key.
type Sealer struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blobstore.Store
	vault       *keyvault.Vault
	maxSize     int64
	chunkSize   int
	metrics     *metrics.Metrics
	logger      logging.Logger
}

func NewSealer(db *sql.DB, m repomanager.RepositoryManager, blobs blobstore.Store, vault *keyvault.Vault,
	maxSize int64, met *metrics.Metrics, logger logging.Logger) *Sealer {
	return &Sealer{
		db:          db,
		repomanager: m,
		blobs:       blobs,
		vault:       vault,
		maxSize:     maxSize,
		chunkSize:   DefaultChunkSize,
		metrics:     met,
		logger:      logger.With("module", "sealer"),
	}
}

// Seal reads at most maxSize bytes from r and stores them sealed. Uploading
// a plaintext that was sealed before returns the existing record untouched.
func (s *Sealer) Seal(ctx context.Context, r io.Reader) (*SealResult, error) {
	res, err := s.seal(ctx, r)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrorInput):
		s.metrics.Upload(metrics.ResultRejected)
	default:
		s.metrics.Upload(metrics.ResultError)
	}
	return res, err
}

func (s *Sealer) seal(ctx context.Context, r io.Reader) (*SealResult, error) {
	fp, err := s.vault.Fingerprint()
	if err != nil {
		return nil, err
	}

	plaintext, err := io.ReadAll(io.TeeReader(io.LimitReader(r, s.maxSize+1), fp))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("%w: empty upload", common.ErrorInput)
	}
	if int64(len(plaintext)) > s.maxSize {
		return nil, fmt.Errorf("%w: upload exceeds %d bytes", common.ErrorInput, s.maxSize)
	}
	fingerprint := fp.Sum(nil)

	contents := s.repomanager.Contents(s.db)
	if existing, err := contents.GetByFingerprint(ctx, fingerprint); err == nil {
		s.metrics.Upload(metrics.ResultDuplicate)
		s.logger.Info(ctx, "duplicate upload", "id", existing.ID)
		return resultOf(existing), nil
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	key := cryptox.GenerateKey()
	defer common.WipeByteArray(key)
	nonce := cryptox.GenerateNonce()

	sealed, err := cryptox.Seal(key, nonce, plaintext, nil)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}

	pending, err := s.blobs.Begin(ctx)
	if err != nil {
		return nil, err
	}

	id, err := s.stream(ctx, pending, sealed)
	if err != nil {
		_ = pending.Abort(ctx)
		return nil, err
	}

	if exists, err := s.blobs.Exists(ctx, id); err != nil {
		_ = pending.Abort(ctx)
		return nil, err
	} else if exists {
		_ = pending.Abort(ctx)
		s.logger.Error(ctx, "blob exists without metadata", "id", id)
		return nil, fmt.Errorf("%w: blob %s exists without a record", common.ErrorIntegrity, id)
	}

	wrapped, err := s.vault.Wrap(key, id)
	if err != nil {
		_ = pending.Abort(ctx)
		return nil, err
	}

	rec := &models.ContentRecord{
		ID:           id,
		WrappedKey:   wrapped.Ciphertext,
		WrapNonce:    wrapped.Nonce,
		WrapTag:      wrapped.Tag,
		ContentNonce: nonce,
		Algorithm:    cryptox.Algorithm,
		Size:         int64(len(plaintext)),
		Fingerprint:  fingerprint,
		PaymentState: models.StateUnpaid,
	}

	// A failed Commit may still have published the blob, so compensation
	// keys off the attempt rather than its result.
	commitAttempted := false
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Contents(tx).InsertIfAbsent(ctx, rec); err != nil {
			return err
		}
		commitAttempted = true
		if err := pending.Commit(ctx, id); err != nil {
			return fmt.Errorf("publish blob: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			_ = pending.Abort(ctx)
			return s.existing(ctx, fingerprint)
		}
		return nil, s.compensate(ctx, pending, commitAttempted, id, err)
	}

	s.metrics.Upload(metrics.ResultOK)
	s.logger.Info(ctx, "content sealed", "id", id, "size", rec.Size)
	return resultOf(rec), nil
}

// stream writes sealed to the pending blob in chunks and hashes it in the
// same pass.
func (s *Sealer) stream(ctx context.Context, pending blobstore.Pending, sealed []byte) (string, error) {
	digester := digest.Canonical.Digester()
	w := io.MultiWriter(pending, digester.Hash())

	for off := 0; off < len(sealed); off += s.chunkSize {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		end := min(off+s.chunkSize, len(sealed))
		if _, err := w.Write(sealed[off:end]); err != nil {
			return "", fmt.Errorf("write blob: %w", err)
		}
	}
	return digester.Digest().Encoded(), nil
}

// existing returns the record of a concurrent upload of the same plaintext
// that won the insert.
func (s *Sealer) existing(ctx context.Context, fingerprint []byte) (*SealResult, error) {
	existing, err := s.repomanager.Contents(s.db).GetByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	s.metrics.Upload(metrics.ResultDuplicate)
	return resultOf(existing), nil
}

// compensate undoes a failed metadata transaction. Once Commit was attempted
// the blob may exist under id and is removed; if that fails too the blob is
// an orphan.
func (s *Sealer) compensate(ctx context.Context, pending blobstore.Pending, commitAttempted bool, id string, txErr error) error {
	_ = pending.Abort(ctx)
	if !commitAttempted {
		return txErr
	}

	if err := s.blobs.Remove(context.WithoutCancel(ctx), id); err != nil {
		s.logger.Error(ctx, "orphaned blob after failed transaction", "id", id, "error", err)
		return fmt.Errorf("%w: orphaned blob %s: %v", common.ErrorIntegrity, id, txErr)
	}
	return txErr
}

// Open returns the sealed blob of a known id.
func (s *Sealer) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	if _, err := keyvault.DecodeContentID(id); err != nil {
		return nil, err
	}

	_, recErr := s.repomanager.Contents(s.db).Get(ctx, id)
	if recErr != nil && !errors.Is(recErr, common.ErrorNotFound) {
		return nil, recErr
	}

	rc, blobErr := s.blobs.Open(ctx, id)
	if blobErr != nil && !errors.Is(blobErr, common.ErrorNotFound) {
		return nil, blobErr
	}

	recMissing := errors.Is(recErr, common.ErrorNotFound)
	blobMissing := errors.Is(blobErr, common.ErrorNotFound)

	switch {
	case recMissing && blobMissing:
		return nil, common.ErrorNotFound
	case recMissing:
		_ = rc.Close()
		s.logger.Error(ctx, "blob without record", "id", id)
		return nil, fmt.Errorf("%w: blob %s has no record", common.ErrorIntegrity, id)
	case blobMissing:
		s.logger.Error(ctx, "record without blob", "id", id)
		return nil, fmt.Errorf("%w: record %s has no blob", common.ErrorIntegrity, id)
	}
	return rc, nil
}
