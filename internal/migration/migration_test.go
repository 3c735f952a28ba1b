package migration_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annotation-service/internal/entity"
	"annotation-service/internal/keyspace"
	"annotation-service/internal/migration"
	"annotation-service/internal/repository/pebbledb"
	"annotation-service/internal/storage"
)

func openEngine(t *testing.T) storage.Engine {
	t.Helper()
	eng, err := pebbledb.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

func putRaw(t *testing.T, eng storage.Engine, key []byte, raw string) {
	t.Helper()
	require.NoError(t, eng.Put(context.Background(), key, []byte(raw)))
}

func TestMigrateFromBaseline(t *testing.T) {
	ctx := context.Background()
	eng := openEngine(t)

	putRaw(t, eng, keyspace.ResultKey("t1", "a"), `{"task_name":"t1","data_id":"a","status":"to_annotate","current_job_id":"j1","cumulated_time":0,"annotator":"alice","validator":"","assigned":true}`)
	putRaw(t, eng, keyspace.ResultKey("t1", "b"), `{"task_name":"t1","data_id":"b","status":"done","current_job_id":"","finished_job_ids":["j0"],"cumulated_time":12,"annotator":"","validator":"","in_progress":false}`)
	putRaw(t, eng, keyspace.UserKey("alice"), `{"username":"alice","password":"h","role":"annotator","queue":{"t1/to_annotate":"j1"}}`)

	m := migration.NewDefault(eng, migration.WithBatchOptions(storage.WithMaxBytes(64)))
	current, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, migration.Baseline, current)

	applied, err := m.Run(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, "0.0.0", applied[0].From)
	assert.Equal(t, "0.2.0", applied[1].To)

	var r entity.Result
	require.NoError(t, storage.GetRecord(ctx, eng, keyspace.ResultKey("t1", "a"), &r))
	assert.True(t, r.InProgress)
	assert.Equal(t, []string{}, r.FinishedJobIDs)

	var done entity.Result
	require.NoError(t, storage.GetRecord(ctx, eng, keyspace.ResultKey("t1", "b"), &done))
	assert.Equal(t, []string{"j0"}, done.FinishedJobIDs)

	var u entity.User
	require.NoError(t, storage.GetRecord(ctx, eng, keyspace.UserKey("alice"), &u))
	assert.Equal(t, "j1", u.AssignedJob("t1", entity.StatusToAnnotate))

	current, err = m.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.2.0", current)
}

func TestMigrateTwiceIsNoop(t *testing.T) {
	ctx := context.Background()
	eng := openEngine(t)
	putRaw(t, eng, keyspace.UserKey("bob"), `{"username":"bob","password":"h","role":"admin","queue":{}}`)

	m := migration.NewDefault(eng)
	_, err := m.Run(ctx)
	require.NoError(t, err)

	calls := 0
	m.Register("0.1.0", "0.2.0", func(context.Context, storage.Engine, *storage.BatchManager) error {
		calls++
		return nil
	})
	applied, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.Zero(t, calls)
}

func TestMigrateResumesFromMarker(t *testing.T) {
	ctx := context.Background()
	eng := openEngine(t)
	putRaw(t, eng, keyspace.VersionKey(), `{"version":"0.1.0"}`)

	var ran [][2]string
	m := migration.New(eng)
	for _, gap := range [][2]string{{"0.0.0", "0.1.0"}, {"0.1.0", "0.2.0"}} {
		m.Register(gap[0], gap[1], func(context.Context, storage.Engine, *storage.BatchManager) error {
			ran = append(ran, gap)
			return nil
		})
	}
	_, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"0.1.0", "0.2.0"}}, ran)
}

func TestUnknownVersion(t *testing.T) {
	ctx := context.Background()
	eng := openEngine(t)
	putRaw(t, eng, keyspace.VersionKey(), `{"version":"9.9.9"}`)

	_, err := migration.NewDefault(eng).Run(ctx)
	assert.ErrorIs(t, err, migration.ErrUnknownVersion)
}

func TestStamp(t *testing.T) {
	ctx := context.Background()
	eng := openEngine(t)
	m := migration.NewDefault(eng)
	require.NoError(t, m.Stamp(ctx))

	raw, err := eng.Get(ctx, keyspace.VersionKey())
	require.NoError(t, err)
	var mk map[string]string
	require.NoError(t, json.Unmarshal(raw, &mk))
	assert.Equal(t, m.Latest(), mk["version"])

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
