package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dgraph-io/badger/v4"
	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/dmitrijs2005/sealpay/internal/logging"
)

const badgerKeyPrefix = "blob/"

// BadgerStore keeps blobs in an embedded badger database. A pending blob is
// buffered and published by a single write transaction.
type BadgerStore struct {
	db     *badger.DB
	logger logging.Logger
}

// NewBadgerStore opens dir, or an in-memory database when dir is empty.
func NewBadgerStore(dir string, logger logging.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db, logger: logger.With("module", "blobstore", "backend", BackendBadger)}, nil
}

func badgerKey(id string) []byte {
	return []byte(badgerKeyPrefix + objectName(id))
}

func (s *BadgerStore) Begin(ctx context.Context) (Pending, error) {
	return &badgerPending{store: s}, nil
}

func (s *BadgerStore) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *BadgerStore) Exists(ctx context.Context, id string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(badgerKey(id))
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("lookup blob: %w", err)
	}
}

func (s *BadgerStore) Remove(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(id))
	})
	if err != nil {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

type badgerPending struct {
	store *BadgerStore
	buf   bytes.Buffer
	done  bool
}

func (p *badgerPending) Write(b []byte) (int, error) {
	if p.done {
		return 0, errors.New("pending blob already finished")
	}
	return p.buf.Write(b)
}

func (p *badgerPending) Commit(ctx context.Context, id string) error {
	if p.done {
		return errors.New("pending blob already finished")
	}
	p.done = true
	if err := ctx.Err(); err != nil {
		return err
	}

	err := p.store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(id), p.buf.Bytes())
	})
	p.buf.Reset()
	if err != nil {
		return fmt.Errorf("publish blob: %w", err)
	}
	return nil
}

func (p *badgerPending) Abort(ctx context.Context) error {
	p.done = true
	p.buf.Reset()
	return nil
}
