// Package pebbledb implements storage.Engine on an embedded pebble database.
package pebbledb

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"annotation-service/internal/storage"
)

// Engine is the default storage engine.
type Engine struct {
	db    *pebble.DB
	write *pebble.WriteOptions
}

// Open opens (creating if needed) a pebble store under dir.
func Open(dir string) (*Engine, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble %s: %w", dir, err)
	}
	return &Engine{db: db, write: pebble.Sync}, nil
}

// OpenInMemory opens a store backed by an in-memory filesystem.
func OpenInMemory() (*Engine, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("open in-memory pebble: %w", err)
	}
	return &Engine{db: db, write: pebble.NoSync}, nil
}

// DB exposes the underlying database for metrics collection.
func (e *Engine) DB() *pebble.DB { return e.db }

func (e *Engine) Get(ctx context.Context, key []byte) ([]byte, error) {
	value, closer, err := e.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte{}, value...), nil
}

func (e *Engine) Put(ctx context.Context, key, value []byte) error {
	return e.db.Set(key, value, e.write)
}

func (e *Engine) Delete(ctx context.Context, key []byte) error {
	return e.db.Delete(key, e.write)
}

func (e *Engine) Write(ctx context.Context, ops []storage.Op) error {
	if len(ops) == 0 {
		return nil
	}
	batch := e.db.NewBatch()
	defer batch.Close()
	for _, op := range ops {
		var err error
		switch op.Type {
		case storage.OpPut:
			err = batch.Set(op.Key, op.Value, nil)
		case storage.OpDelete:
			err = batch.Delete(op.Key, nil)
		default:
			err = fmt.Errorf("unknown op type %d", op.Type)
		}
		if err != nil {
			return err
		}
	}
	return batch.Commit(e.write)
}

func (e *Engine) Scan(ctx context.Context, lower, upper []byte, reverse bool, fn storage.ScanFunc) error {
	it, err := e.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return err
	}
	defer it.Close()

	valid := it.First()
	step := it.Next
	if reverse {
		valid = it.Last()
		step = it.Prev
	}
	for ; valid; valid = step() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(it.Key(), it.Value()); err != nil {
			if errors.Is(err, storage.ErrStopScan) {
				return nil
			}
			return err
		}
	}
	return it.Error()
}

func (e *Engine) Close() error {
	return e.db.Close()
}
