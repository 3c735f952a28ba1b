// Package sqlite implements storage.Engine on a single SQLite table whose
// BLOB primary key gives bytewise key ordering.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"annotation-service/internal/storage"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// scanPageSize bounds how many rows a scan holds open at once.
	scanPageSize = 256
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS kv (
    key   BLOB PRIMARY KEY,
    value BLOB NOT NULL
) WITHOUT ROWID`

const upsertSQL = `INSERT INTO kv (key, value) VALUES (?, ?)
    ON CONFLICT(key) DO UPDATE SET value = excluded.value`

// Engine stores records in SQLite.
type Engine struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the database at path.
func Open(path string) (*Engine, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &Engine{db: db, path: path}, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (e *Engine) Get(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte
	err := e.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (e *Engine) Put(ctx context.Context, key, value []byte) error {
	return retryOnBusy(ctx, func() error {
		_, err := e.db.ExecContext(ctx, upsertSQL, key, value)
		return err
	})
}

func (e *Engine) Delete(ctx context.Context, key []byte) error {
	return retryOnBusy(ctx, func() error {
		_, err := e.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
		return err
	})
}

func (e *Engine) Write(ctx context.Context, ops []storage.Op) error {
	if len(ops) == 0 {
		return nil
	}
	return retryOnBusy(ctx, func() error {
		tx, err := e.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin batch tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		for _, op := range ops {
			switch op.Type {
			case storage.OpPut:
				_, err = tx.ExecContext(ctx, upsertSQL, op.Key, op.Value)
			case storage.OpDelete:
				_, err = tx.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", op.Key)
			default:
				err = fmt.Errorf("unknown op type %d", op.Type)
			}
			if err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// Scan pages through the range with keyset pagination so the callback may
// write to the same database between pages.
func (e *Engine) Scan(ctx context.Context, lower, upper []byte, reverse bool, fn storage.ScanFunc) error {
	cursor := []byte(nil)
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

func (e *Engine) scanPage(ctx context.Context, lower, upper, cursor []byte, reverse bool) ([][2][]byte, error) {
	var (
		where []string
		args  []any
	)
	if lower != nil {
		where = append(where, "key >= ?")
		args = append(args, lower)
	}
	if upper != nil {
		where = append(where, "key < ?")
		args = append(args, upper)
	}
	if cursor != nil {
		if reverse {
			where = append(where, "key < ?")
		} else {
			where = append(where, "key > ?")
		}
		args = append(args, cursor)
	}
	query := "SELECT key, value FROM kv"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if reverse {
		query += " ORDER BY key DESC"
	} else {
		query += " ORDER BY key ASC"
	}
	query += fmt.Sprintf(" LIMIT %d", scanPageSize)

	rows, err := e.db.QueryContext(ctx, query, args...)
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

// Close closes the underlying database connection.
func (e *Engine) Close() error {
	if e == nil || e.db == nil {
		return nil
	}
	return e.db.Close()
}
