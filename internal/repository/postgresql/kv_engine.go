// Package postgresql implements storage.Engine on a Postgres table keyed by
// bytea, which compares bytewise.
package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"annotation-service/internal/storage"
)

const scanPageSize = 512

const schemaSQL = `
CREATE TABLE IF NOT EXISTS kv (
    key   bytea PRIMARY KEY,
    value bytea NOT NULL
);
`

const upsertSQL = `
INSERT INTO kv (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value;
`

type KVEngine struct {
	pool *pgxpool.Pool
}

// NewKVEngine ensures the kv table exists. The engine owns pool and closes it on Close.
func NewKVEngine(ctx context.Context, pool *pgxpool.Pool) (*KVEngine, error) {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &KVEngine{pool: pool}, nil
}

func (e *KVEngine) Get(ctx context.Context, key []byte) ([]byte, error) {
	const q = `SELECT value FROM kv WHERE key = $1;`

	var value []byte
	if err := e.pool.QueryRow(ctx, q, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

func (e *KVEngine) Put(ctx context.Context, key, value []byte) error {
	_, err := e.pool.Exec(ctx, upsertSQL, key, value)
	return err
}

func (e *KVEngine) Delete(ctx context.Context, key []byte) error {
	_, err := e.pool.Exec(ctx, `DELETE FROM kv WHERE key = $1;`, key)
	return err
}

func (e *KVEngine) Write(ctx context.Context, ops []storage.Op) error {
	if len(ops) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, e.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, op := range ops {
			switch op.Type {
			case storage.OpPut:
				batch.Queue(upsertSQL, op.Key, op.Value)
			case storage.OpDelete:
				batch.Queue(`DELETE FROM kv WHERE key = $1;`, op.Key)
			default:
				return fmt.Errorf("unknown op type %d", op.Type)
			}
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (e *KVEngine) Scan(ctx context.Context, lower, upper []byte, reverse bool, fn storage.ScanFunc) error {
	var cursor []byte
	for {
		page, err := e.scanPage(ctx, lower, upper, cursor, reverse)
		if err != nil {
			return err
		}
		for _, kv := range page {
			if err := fn(kv[0], kv[1]); err != nil {
				if errors.Is(err, storage.ErrStopScan) {
					return nil
				}
				return err
			}
		}
		if len(page) < scanPageSize {
			return nil
		}
		cursor = page[len(page)-1][0]
	}
}

func (e *KVEngine) scanPage(ctx context.Context, lower, upper, cursor []byte, reverse bool) ([][2][]byte, error) {
	// NULL bounds disable the corresponding predicate.
	q := `
SELECT key, value FROM kv
WHERE ($1::bytea IS NULL OR key >= $1)
  AND ($2::bytea IS NULL OR key < $2)
  AND ($3::bytea IS NULL OR key > $3)
ORDER BY key ASC
LIMIT $4;
`
	if reverse {
		q = `
SELECT key, value FROM kv
WHERE ($1::bytea IS NULL OR key >= $1)
  AND ($2::bytea IS NULL OR key < $2)
  AND ($3::bytea IS NULL OR key < $3)
ORDER BY key DESC
LIMIT $4;
`
	}
	rows, err := e.pool.Query(ctx, q, lower, upper, cursor, scanPageSize)
	if err != nil {
		return nil, fmt.Errorf("scan kv: %w", err)
	}
	defer rows.Close()

	var page [][2][]byte
	for rows.Next() {
		var key, value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		page = append(page, [2][]byte{key, value})
	}
	return page, rows.Err()
}

func (e *KVEngine) Close() error {
	e.pool.Close()
	return nil
}
