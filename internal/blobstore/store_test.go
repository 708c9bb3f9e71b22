package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/dmitrijs2005/sealpay/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testID = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	ok, err := s.Exists(ctx, testID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Open(ctx, testID)
	require.ErrorIs(t, err, common.ErrorNotFound)

	p, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = p.Write([]byte("sealed-"))
	require.NoError(t, err)
	_, err = p.Write([]byte("bytes"))
	require.NoError(t, err)

	ok, err = s.Exists(ctx, testID)
	require.NoError(t, err)
	assert.False(t, ok, "pending blob must not be visible before commit")

	require.NoError(t, p.Commit(ctx, testID))
	require.Error(t, p.Commit(ctx, testID), "second commit must fail")

	ok, err = s.Exists(ctx, testID)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Open(ctx, testID)
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "sealed-bytes", string(b))

	aborted, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = aborted.Write([]byte("discard me"))
	require.NoError(t, err)
	require.NoError(t, aborted.Abort(ctx))

	require.NoError(t, s.Remove(ctx, testID))
	ok, err = s.Exists(ctx, testID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFSStore_Contract(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSStore(dir, logging.Discard())
	require.NoError(t, err)
	defer s.Close()

	storeContract(t, s)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no temp files may be left behind")
}

func TestFSStore_CommitWritesFinalName(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSStore(dir, logging.Discard())
	require.NoError(t, err)
	ctx := context.Background()

	p, err := s.Begin(ctx)
	require.NoError(t, err)
	_, _ = p.Write([]byte("x"))
	require.NoError(t, p.Commit(ctx, testID))

	_, err = os.Stat(filepath.Join(dir, testID+".bin"))
	require.NoError(t, err)
}

func TestFSStore_CommitCanceledContext(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSStore(dir, logging.Discard())
	require.NoError(t, err)

	p, err := s.Begin(context.Background())
	require.NoError(t, err)
	_, _ = p.Write([]byte("x"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, p.Commit(ctx, testID), context.Canceled)

	ok, err := s.Exists(context.Background(), testID)
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFSStore_RemoveMissingIsNoop(t *testing.T) {
	s, err := NewFSStore(t.TempDir(), logging.Discard())
	require.NoError(t, err)
	require.NoError(t, s.Remove(context.Background(), testID))
}

func TestBadgerStore_Contract(t *testing.T) {
	s, err := NewBadgerStore("", logging.Discard())
	require.NoError(t, err)
	defer s.Close()

	storeContract(t, s)
}

func TestNew_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, Config{Backend: BackendFS, Dir: t.TempDir()}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &FSStore{}, s)

	b, err := New(ctx, Config{Backend: BackendBadger}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, b)
	require.NoError(t, b.Close())

	_, err = New(ctx, Config{Backend: "tape"}, logging.Discard())
	require.ErrorIs(t, err, common.ErrorInput)
}
