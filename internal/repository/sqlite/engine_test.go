package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annotation-service/internal/keyspace"
	"annotation-service/internal/repository/sqlite"
	"annotation-service/internal/storage"
	"annotation-service/internal/storage/storagetest"
)

func openEngine(t *testing.T) *sqlite.Engine {
	t.Helper()
	eng, err := sqlite.Open(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

func TestEngineSuite(t *testing.T) {
	storagetest.RunEngineSuite(t, func(t *testing.T) storage.Engine {
		return openEngine(t)
	})
}

func TestScanCrossesPages(t *testing.T) {
	ctx := context.Background()
	eng := openEngine(t)

	const n = 600
	bm := storage.NewBatchManager(eng)
	for i := 0; i < n; i++ {
		require.NoError(t, bm.Put(ctx, keyspace.ResultKey("t", fmt.Sprintf("%04d", i)), []byte("v")))
	}
	require.NoError(t, bm.Flush(ctx))

	r := keyspace.Under(keyspace.Result, "t")
	count := 0
	last := ""
	require.NoError(t, eng.Scan(ctx, r.Lower, r.Upper, true, func(key, _ []byte) error {
		id := keyspace.Last(key)
		if last != "" {
			assert.Less(t, id, last)
		}
		last = id
		count++
		return nil
	}))
	assert.Equal(t, n, count)
	assert.Equal(t, "0000", last)
}
