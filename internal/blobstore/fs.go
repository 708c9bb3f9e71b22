package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/dmitrijs2005/sealpay/internal/filex"
	"github.com/dmitrijs2005/sealpay/internal/logging"
	"github.com/google/uuid"
)

// FSStore keeps blobs as <dir>/<id>.bin. Temporary files live in the same
// directory so Commit is a single rename.
type FSStore struct {
	dir    string
	logger logging.Logger
}

func NewFSStore(dir string, logger logging.Logger) (*FSStore, error) {
	if dir == "" {
		dir = "storage"
	}
	abs, err := filex.EnsureSubdDir(dir)
	if err != nil {
		return nil, err
	}
	return &FSStore{dir: abs, logger: logger.With("module", "blobstore", "backend", BackendFS)}, nil
}

func (s *FSStore) path(id string) string {
	return filepath.Join(s.dir, objectName(id))
}

func (s *FSStore) Begin(ctx context.Context) (Pending, error) {
	name := filepath.Join(s.dir, fmt.Sprintf("tmp-%s.bin", uuid.NewString()))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("create temp blob: %w", err)
	}
	return &fsPending{store: s, f: f}, nil
}

func (s *FSStore) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

func (s *FSStore) Exists(ctx context.Context, id string) (bool, error) {
	_, err := os.Stat(s.path(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat blob: %w", err)
}

func (s *FSStore) Remove(ctx context.Context, id string) error {
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

func (s *FSStore) Close() error { return nil }

type fsPending struct {
	store *FSStore
	f     *os.File
	done  bool
}

func (p *fsPending) Write(b []byte) (int, error) {
	return p.f.Write(b)
}

func (p *fsPending) Commit(ctx context.Context, id string) error {
	if p.done {
		return errors.New("pending blob already finished")
	}
	p.done = true

	if err := ctx.Err(); err != nil {
		_ = p.f.Close()
		_ = os.Remove(p.f.Name())
		return err
	}

	if err := filex.SyncAndRename(p.f, p.store.path(id)); err != nil {
		_ = os.Remove(p.f.Name())
		return err
	}
	return nil
}

func (p *fsPending) Abort(ctx context.Context) error {
	if p.done {
		return nil
	}
	p.done = true
	_ = p.f.Close()
	if err := os.Remove(p.f.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		p.store.logger.Warn(ctx, "failed to remove temp blob", "path", p.f.Name(), "error", err)
		return err
	}
	return nil
}
