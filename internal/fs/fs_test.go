package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFSRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "file.bin")

	require.NoError(t, Default.MkdirAll(filepath.Dir(path), 0o755))

	f, err := Default.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)

	_, err = f.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, f.Truncate(16))
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	fi, err := Default.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(16), fi.Size())
}

func TestFaultyFSOpen(t *testing.T) {
	boom := errors.New("boom")
	ffs := NewFaultyFS(nil)
	ffs.AddRule("images", Fault{FailOpen: true, Err: boom})

	dir := t.TempDir()
	_, err := ffs.OpenFile(filepath.Join(dir, "images.tgf"), os.O_RDWR|os.O_CREATE, 0o644)
	assert.ErrorIs(t, err, boom)

	// Unmatched files pass through.
	f, err := ffs.OpenFile(filepath.Join(dir, "labels.tgf"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestFaultyFSTruncateAndWrite(t *testing.T) {
	ffs := NewFaultyFS(nil)
	ffs.AddRule("trunc", Fault{FailTruncate: true, FailAfterBytes: -1})
	ffs.AddRule("limit", Fault{FailAfterBytes: 4})

	dir := t.TempDir()

	f, err := ffs.OpenFile(filepath.Join(dir, "trunc.bin"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	assert.Error(t, f.Truncate(100))
	_, err = f.Write([]byte("unbounded writes are fine"))
	assert.NoError(t, err)
	require.NoError(t, f.Close())

	g, err := ffs.OpenFile(filepath.Join(dir, "limit.bin"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	_, err = g.Write([]byte("abcd"))
	require.NoError(t, err)
	_, err = g.Write([]byte("x"))
	assert.Error(t, err)
	require.NoError(t, g.Close())
}

func TestFaultyFSSyncClose(t *testing.T) {
	ffs := NewFaultyFS(nil)
	ffs.AddRule("sync", Fault{FailOnSync: true, FailAfterBytes: -1})
	ffs.AddRule("close", Fault{FailOnClose: true, FailAfterBytes: -1})

	dir := t.TempDir()

	f, err := ffs.OpenFile(filepath.Join(dir, "sync.bin"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	assert.Error(t, f.Sync())
	require.NoError(t, f.Close())

	g, err := ffs.OpenFile(filepath.Join(dir, "close.bin"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	assert.Error(t, g.Close())
}
