package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
)

// DefaultMaxBatchBytes is the estimated payload size at which a
// BatchManager flushes.
const DefaultMaxBatchBytes = 100_000_000

// FlushObserver is told about each emitted batch.
type FlushObserver func(ops, bytes int)

// BatchOption customizes a BatchManager.
type BatchOption func(*BatchManager)

// WithMaxBytes overrides the flush threshold.
func WithMaxBytes(n int) BatchOption {
	return func(b *BatchManager) {
		if n > 0 {
			b.maxBytes = n
		}
	}
}

// WithBatchLogger logs each flush at debug level.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchManager) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithFlushObserver registers a callback invoked after every successful flush.
func WithFlushObserver(fn FlushObserver) BatchOption {
	return func(b *BatchManager) {
		b.observer = fn
	}
}

// BatchManager accumulates operations and writes them as atomic batches
// whose estimated size stays under a ceiling. Each flush is atomic; a
// sequence of flushes is not. A BatchManager belongs to one bulk operation
// and is not safe for concurrent use.
type BatchManager struct {
	engine   Engine
	maxBytes int
	logger   *slog.Logger
	observer FlushObserver

	ops     []Op
	size    int
	flushes int
	written int
}

// NewBatchManager returns an empty manager writing to engine.
func NewBatchManager(engine Engine, opts ...BatchOption) *BatchManager {
	b := &BatchManager{
		engine:   engine,
		maxBytes: DefaultMaxBatchBytes,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add queues op, flushing first if op would push the pending size past the ceiling.
func (b *BatchManager) Add(ctx context.Context, op Op) error {
	size := op.Size()
	if len(b.ops) > 0 && b.size+size > b.maxBytes {
		if err := b.Flush(ctx); err != nil {
			return err
		}
	}
	b.ops = append(b.ops, op)
	b.size += size
	return nil
}

// Put queues a raw put.
func (b *BatchManager) Put(ctx context.Context, key, value []byte) error {
	return b.Add(ctx, Put(key, value))
}

// PutRecord queues a JSON-encoded record.
func (b *BatchManager) PutRecord(ctx context.Context, key []byte, v any) error {
	op, err := PutRecordOp(key, v)
	if err != nil {
		return err
	}
	return b.Add(ctx, op)
}

// Delete queues a delete.
func (b *BatchManager) Delete(ctx context.Context, key []byte) error {
	return b.Add(ctx, Delete(key))
}

// Flush writes pending operations as one batch. Flushing an empty queue does nothing.
func (b *BatchManager) Flush(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	if err := b.engine.Write(ctx, b.ops); err != nil {
		return fmt.Errorf("flush batch of %d ops: %w", len(b.ops), err)
	}
	b.logger.Debug("batch flushed", "ops", len(b.ops), "size", humanize.Bytes(uint64(b.size)))
	if b.observer != nil {
		b.observer(len(b.ops), b.size)
	}
	b.flushes++
	b.written += len(b.ops)
	b.ops = nil
	b.size = 0
	return nil
}

// Pending returns the number of queued operations.
func (b *BatchManager) Pending() int { return len(b.ops) }

// Flushes returns how many batches were written so far.
func (b *BatchManager) Flushes() int { return b.flushes }

// Written returns how many operations were written so far.
func (b *BatchManager) Written() int { return b.written }
