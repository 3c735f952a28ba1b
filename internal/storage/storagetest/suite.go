// Package storagetest holds the behaviour every storage.Engine must share.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annotation-service/internal/keyspace"
	"annotation-service/internal/storage"
)

// RunEngineSuite exercises an engine produced by open. Each subtest gets a
// fresh engine.
func RunEngineSuite(t *testing.T, open func(t *testing.T) storage.Engine) {
	t.Run("GetPutDelete", func(t *testing.T) {
		ctx := context.Background()
		eng := open(t)

		_, err := eng.Get(ctx, []byte("missing"))
		assert.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, eng.Put(ctx, []byte("k"), []byte("v1")))
		require.NoError(t, eng.Put(ctx, []byte("k"), []byte("v2")))
		got, err := eng.Get(ctx, []byte("k"))
		require.NoError(t, err)
		assert.Equal(t, "v2", string(got))

		require.NoError(t, eng.Delete(ctx, []byte("k")))
		_, err = eng.Get(ctx, []byte("k"))
		assert.ErrorIs(t, err, storage.ErrNotFound)
		require.NoError(t, eng.Delete(ctx, []byte("k")), "deleting an absent key is not an error")
	})

	t.Run("WriteBatch", func(t *testing.T) {
		ctx := context.Background()
		eng := open(t)
		require.NoError(t, eng.Put(ctx, []byte("gone"), []byte("x")))

		require.NoError(t, eng.Write(ctx, []storage.Op{
			storage.Put([]byte("a"), []byte("1")),
			storage.Put([]byte("b"), []byte("2")),
			storage.Delete([]byte("gone")),
			storage.Put([]byte("a"), []byte("3")),
		}))

		got, err := eng.Get(ctx, []byte("a"))
		require.NoError(t, err)
		assert.Equal(t, "3", string(got), "later ops in a batch win")
		_, err = eng.Get(ctx, []byte("gone"))
		assert.ErrorIs(t, err, storage.ErrNotFound)
		require.NoError(t, eng.Write(ctx, nil))
	})

	t.Run("ScanOrderAndBounds", func(t *testing.T) {
		ctx := context.Background()
		eng := open(t)
		for _, k := range [][]byte{
			keyspace.JobKey("task", "3"),
			keyspace.JobKey("task", "1"),
			keyspace.JobKey("task", "2"),
			keyspace.JobKey("task2", "1"),
			keyspace.ResultKey("task", "1"),
			keyspace.JobKey("task", "\xff\x01"),
		} {
			require.NoError(t, eng.Put(ctx, k, []byte("v")))
		}

		r := keyspace.Under(keyspace.Job, "task")
		var forward []string
		require.NoError(t, eng.Scan(ctx, r.Lower, r.Upper, false, func(key, _ []byte) error {
			forward = append(forward, keyspace.Last(key))
			return nil
		}))
		assert.Equal(t, []string{"1", "2", "3", "\xff\x01"}, forward)

		var backward []string
		require.NoError(t, eng.Scan(ctx, r.Lower, r.Upper, true, func(key, _ []byte) error {
			backward = append(backward, keyspace.Last(key))
			return nil
		}))
		assert.Equal(t, []string{"\xff\x01", "3", "2", "1"}, backward)
	})

	t.Run("ScanStopsEarly", func(t *testing.T) {
		ctx := context.Background()
		eng := open(t)
		for _, k := range []string{"a", "b", "c"} {
			require.NoError(t, eng.Put(ctx, []byte(k), []byte(k)))
		}
		var seen []string
		err := eng.Scan(ctx, []byte("a"), nil, false, func(key, _ []byte) error {
			seen = append(seen, string(key))
			if len(seen) == 2 {
				return storage.ErrStopScan
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, seen)

		boom := errors.New("boom")
		err = eng.Scan(ctx, []byte("a"), nil, false, func(key, _ []byte) error { return boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("ScanToleratesWritesFromCallback", func(t *testing.T) {
		ctx := context.Background()
		eng := open(t)
		for _, k := range []string{"r:a", "r:b", "r:c"} {
			require.NoError(t, eng.Put(ctx, []byte(k), []byte("v")))
		}
		r := keyspace.Under(keyspace.Result)
		require.NoError(t, eng.Scan(ctx, r.Lower, r.Upper, false, func(key, _ []byte) error {
			return eng.Delete(ctx, key)
		}))
		keys, err := storage.ScanKeys(ctx, eng, r)
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("ScanRangeKeysOutliveCallback", func(t *testing.T) {
		ctx := context.Background()
		eng := open(t)
		var want []string
		for i := range 200 {
			k := keyspace.JobKey("task", fmt.Sprintf("%04d", i))
			want = append(want, string(k))
			require.NoError(t, eng.Put(ctx, k, []byte(`{"n":1}`)))
		}
		require.NoError(t, eng.Put(ctx, keyspace.JobKey("task2", "0000"), []byte("v")))

		r := keyspace.Under(keyspace.Job, "task")
		var kept [][]byte
		require.NoError(t, storage.ScanRange(ctx, eng, r, false, func(key, _ []byte) error {
			kept = append(kept, key)
			return nil
		}))
		got := make([]string, 0, len(kept))
		for _, k := range kept {
			got = append(got, string(k))
		}
		assert.Equal(t, want, got)

		// queue the retained keys into small batches flushed after the scan
		bm := storage.NewBatchManager(eng, storage.WithMaxBytes(256))
		require.NoError(t, storage.ScanRecords(ctx, eng, r, true, func(key []byte, _ *map[string]any) error {
			return bm.Delete(ctx, key)
		}))
		require.NoError(t, bm.Flush(ctx))
		assert.Greater(t, bm.Flushes(), 1)

		left, err := storage.ScanKeys(ctx, eng, r)
		require.NoError(t, err)
		assert.Empty(t, left)
		_, err = eng.Get(ctx, keyspace.JobKey("task2", "0000"))
		require.NoError(t, err, "neighbouring task untouched")
	})
}
