package migration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"annotation-service/internal/keyspace"
	"annotation-service/internal/storage"
)

// rewrite scans every record of kind as a loose JSON object and queues the
// ones fn reports as changed.
func rewrite(ctx context.Context, eng storage.Engine, bm *storage.BatchManager, kind keyspace.Kind, fn func(map[string]any) bool) error {
	return storage.ScanRange(ctx, eng, keyspace.Under(kind), false, func(key, value []byte) error {
		var rec map[string]any
		dec := json.NewDecoder(bytes.NewReader(value))
		dec.UseNumber()
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("%s: %w", key, storage.ErrBadRecord)
		}
		if !fn(rec) {
			return nil
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return bm.Put(ctx, key, data)
	})
}

func rename(rec map[string]any, from, to string) bool {
	v, ok := rec[from]
	if !ok {
		return false
	}
	delete(rec, from)
	if _, exists := rec[to]; !exists {
		rec[to] = v
	}
	return true
}

// 0.0.0 -> 0.1.0: results track in_progress instead of assigned and always
// carry finished_job_ids.
func renameResultAssigned(ctx context.Context, eng storage.Engine, bm *storage.BatchManager) error {
	return rewrite(ctx, eng, bm, keyspace.Result, func(rec map[string]any) bool {
		changed := rename(rec, "assigned", "in_progress")
		if v, ok := rec["finished_job_ids"]; !ok || v == nil {
			rec["finished_job_ids"] = []any{}
			changed = true
		}
		return changed
	})
}

// 0.1.0 -> 0.2.0: the per-user job queue becomes last_assigned_jobs.
func renameUserQueue(ctx context.Context, eng storage.Engine, bm *storage.BatchManager) error {
	return rewrite(ctx, eng, bm, keyspace.User, func(rec map[string]any) bool {
		changed := rename(rec, "queue", "last_assigned_jobs")
		if v, ok := rec["last_assigned_jobs"]; !ok || v == nil {
			rec["last_assigned_jobs"] = map[string]any{}
			changed = true
		}
		return changed
	})
}
