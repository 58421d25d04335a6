package db

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileKeyStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "solboard", "credentials.json")
	store := NewFileKeyStore(path)
	assert.Equal(t, path, store.Path())

	key, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, key)

	require.NoError(t, store.Save(ctx, "abc123"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	key, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc123", key)

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))
	key, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestFileKeyStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileKeyStore(path).Load(context.Background())
	assert.ErrorContains(t, err, "parsing key file")
}

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_b.up.sql":   {Data: []byte("SELECT 2")},
		"0001_a.up.sql":   {Data: []byte("SELECT 1")},
		"0001_a.down.sql": {Data: []byte("SELECT 0")},
		"0003_c.up.sql":   {Data: []byte("SELECT 3")},
	}

	files, err := pendingMigrations(fsys, map[string]bool{"0003_c.up.sql": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_a.up.sql", "0002_b.up.sql"}, files)
}

func TestEmbeddedMigrations(t *testing.T) {
	sub, err := fs.Sub(migrationsFS, "migrations")
	require.NoError(t, err)

	files, err := pendingMigrations(sub, nil)
	require.NoError(t, err)
	assert.Contains(t, files, "0001_settings.up.sql")
}
