package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/spillq/storage"
)

func newManager(t *testing.T, budget uint64) *storage.Manager {
	t.Helper()

	m, err := storage.New(&storage.Config{
		MemoryBudget: budget,
		TempDir:      t.TempDir(),
		TempSubdir:   "spill",
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.Shutdown() })
	return m
}

func TestDefaultConfig(t *testing.T) {
	cfg := storage.DefaultConfig()

	assert.Equal(t, uint64(16*storage.MiB), cfg.MemoryBudget)
	assert.Equal(t, "", cfg.TempDir)
	assert.Equal(t, "spillq", cfg.TempSubdir)
}

func TestConfig_Merge(t *testing.T) {
	cfg := storage.DefaultConfig()
	cfg.Merge(&storage.Config{MemoryBudget: 64, TempDir: "/data"})

	assert.Equal(t, uint64(64), cfg.MemoryBudget)
	assert.Equal(t, "/data", cfg.TempDir)
	assert.Equal(t, "spillq", cfg.TempSubdir, "empty source preserves subdir")
}

func TestNew_CreatesSubdir(t *testing.T) {
	root := t.TempDir()

	m, err := storage.New(&storage.Config{MemoryBudget: 1024, TempDir: root, TempSubdir: "nested/dir"})
	require.NoError(t, err)

	want := filepath.Join(root, "nested/dir")
	assert.Equal(t, want, m.TempDir())
	assert.DirExists(t, want)

	require.NoError(t, m.Shutdown())
	assert.NoDirExists(t, want, "created directory is removed at shutdown")
}

func TestSetTempDir_ExistingDirKeptAtShutdown(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "keep")
	require.NoError(t, os.Mkdir(existing, 0o755))

	m, err := storage.New(&storage.Config{MemoryBudget: 1024, TempDir: root})
	require.NoError(t, err)
	require.NoError(t, m.SetTempDir(root, "keep"))

	require.NoError(t, m.Shutdown())
	assert.DirExists(t, existing)
}

func TestReserveUpTo(t *testing.T) {
	m := newManager(t, 1000)

	grant, err := m.ReserveUpTo(600, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), grant)

	grant, err = m.ReserveUpTo(600, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), grant, "partial grant when budget runs low")
	assert.Equal(t, uint64(0), m.Available())

	_, err = m.ReserveUpTo(600, 1)
	assert.ErrorIs(t, err, storage.ErrExhausted)
	assert.ErrorIs(t, err, storage.ErrStorage)

	m.Release(600)
	assert.Equal(t, uint64(600), m.Available())
	assert.Equal(t, uint64(400), m.Reserved())

	m.Release(10_000)
	assert.Equal(t, uint64(0), m.Reserved(), "over-release clamps at zero")
}

func TestExtent_AppendReadReset(t *testing.T) {
	m := newManager(t, 1024)

	ext, err := m.CreateExtent("test")
	require.NoError(t, err)
	assert.FileExists(t, ext.Path())
	assert.Equal(t, 1, m.Extents())

	off, err := ext.Append([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), off)

	off, err = ext.Append([]byte("world"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), off)
	assert.Equal(t, uint64(10), m.SpilledBytes())

	buf := make([]byte, 5)
	require.NoError(t, ext.ReadAt(buf, 5))
	assert.Equal(t, "world", string(buf))

	assert.ErrorIs(t, ext.ReadAt(buf, 6), storage.ErrStorage, "read past end")

	require.NoError(t, ext.Reset())
	assert.Equal(t, int64(0), ext.Size())
	assert.Equal(t, uint64(0), m.SpilledBytes())

	require.NoError(t, ext.Remove())
	assert.NoFileExists(t, ext.Path())
	assert.Equal(t, 0, m.Extents())
	require.NoError(t, ext.Remove(), "second remove is a no-op")
}

func TestShutdown_RemovesLeftoverExtents(t *testing.T) {
	m := newManager(t, 1024)

	ext, err := m.CreateExtent("leak")
	require.NoError(t, err)
	_, err = ext.Append(make([]byte, 64))
	require.NoError(t, err)

	require.NoError(t, m.Shutdown())
	assert.NoFileExists(t, ext.Path())
	assert.Equal(t, uint64(0), m.SpilledBytes())

	_, err = m.CreateExtent("late")
	assert.ErrorIs(t, err, storage.ErrClosed)
	_, err = m.ReserveUpTo(1, 1)
	assert.ErrorIs(t, err, storage.ErrClosed)
	require.NoError(t, m.Shutdown(), "second shutdown is a no-op")
}

func TestShutdown_KeepsCreatedDirHoldingForeignFiles(t *testing.T) {
	root := t.TempDir()

	m, err := storage.New(&storage.Config{MemoryBudget: 1024, TempDir: root, TempSubdir: "shared"})
	require.NoError(t, err)

	dir := m.TempDir()
	foreign := filepath.Join(dir, "not-ours.txt")
	require.NoError(t, os.WriteFile(foreign, []byte("x"), 0o600))

	ext, err := m.CreateExtent("mine")
	require.NoError(t, err)

	require.NoError(t, m.Shutdown())
	assert.NoFileExists(t, ext.Path())
	assert.FileExists(t, foreign)
}

func TestShutdown_CreatedDirAlreadyGone(t *testing.T) {
	root := t.TempDir()

	m, err := storage.New(&storage.Config{MemoryBudget: 1024, TempDir: root, TempSubdir: "gone"})
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(m.TempDir()))

	assert.NoError(t, m.Shutdown())
}

func TestExtent_FailedAppendKeepsSize(t *testing.T) {
	m := newManager(t, 1024)

	ext, err := m.CreateExtent("short")
	require.NoError(t, err)
	_, err = ext.Append([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, ext.Remove())

	_, err = ext.Append([]byte("def"))
	assert.ErrorIs(t, err, storage.ErrStorage)
	assert.Equal(t, int64(0), ext.Size())
	assert.Equal(t, uint64(0), m.SpilledBytes())
}
