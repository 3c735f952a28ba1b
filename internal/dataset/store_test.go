package dataset_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annotation-service/internal/dataset"
	"annotation-service/internal/entity"
	"annotation-service/internal/keyspace"
	"annotation-service/internal/repository/pebbledb"
	"annotation-service/internal/storage"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("data:"+n), 0o644))
	}
}

func newStore(t *testing.T) (*dataset.Store, storage.Engine, string) {
	t.Helper()
	eng, err := pebbledb.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	root := t.TempDir()
	return dataset.NewStore(eng, root, nil), eng, root
}

func TestResolveOrCreate(t *testing.T) {
	ctx := context.Background()
	store, eng, root := newStore(t)
	writeFiles(t, filepath.Join(root, "cats"), "b.jpg", "a.jpg", "bad:name.jpg", ".hidden")
	require.NoError(t, os.Mkdir(filepath.Join(root, "cats", "nested"), 0o755))

	ds, ids, err := store.ResolveOrCreate(ctx, entity.DatasetSpec{Path: "cats"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, ids)
	assert.Equal(t, 2, ds.Size)
	assert.Equal(t, dataset.ID(filepath.Join(root, "cats")), ds.ID)

	// a second resolve reuses the registered items even if files change
	writeFiles(t, filepath.Join(root, "cats"), "c.jpg")
	again, ids2, err := store.ResolveOrCreate(ctx, entity.DatasetSpec{Path: "./cats/"})
	require.NoError(t, err)
	assert.Equal(t, ds.ID, again.ID)
	assert.Equal(t, ids, ids2)

	thumb, err := store.Thumbnail(ctx, ds.ID, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "data:a.jpg", string(thumb))

	_, err = store.Thumbnail(ctx, ds.ID, "zzz.jpg")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Delete(ctx, ds.ID))
	keys, err := storage.ScanKeys(ctx, eng, keyspace.Under(keyspace.Dataset))
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestResolveRejectsEscapes(t *testing.T) {
	ctx := context.Background()
	store, _, root := newStore(t)
	writeFiles(t, filepath.Join(root, "empty-ok"))

	for _, p := range []string{"", "../etc", "/abs"} {
		_, _, err := store.ResolveOrCreate(ctx, entity.DatasetSpec{Path: p})
		assert.ErrorIs(t, err, dataset.ErrInvalidPath, p)
	}
	_, _, err := store.ResolveOrCreate(ctx, entity.DatasetSpec{Path: "empty-ok"})
	assert.ErrorIs(t, err, dataset.ErrEmpty)
}
