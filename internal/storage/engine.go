// Package storage defines the ordered key-value boundary every record
// store in the service is written against, together with JSON record
// helpers and the bounded batch writer used by bulk paths.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get for absent keys.
	ErrNotFound = errors.New("not found")
	// ErrBadRecord marks a stored value that does not decode into the expected record shape.
	ErrBadRecord = errors.New("malformed record")
	// ErrStopScan can be returned by a ScanFunc to end a scan early without error.
	ErrStopScan = errors.New("stop scan")
)

// OpType is the kind of a batched operation.
type OpType int

const (
	OpPut OpType = iota
	OpDelete
)

// Op is one batched mutation.
type Op struct {
	Type  OpType
	Key   []byte
	Value []byte
}

// Put returns a put operation.
func Put(key, value []byte) Op { return Op{Type: OpPut, Key: key, Value: value} }

// Delete returns a delete operation.
func Delete(key []byte) Op { return Op{Type: OpDelete, Key: key} }

// Size estimates the serialized size of the operation.
func (o Op) Size() int {
	return len(o.Key) + len(o.Value)
}

// ScanFunc receives each key/value of a scan. Slices are only valid during
// the call.
type ScanFunc func(key, value []byte) error

// Engine is an ordered byte-string key-value store. Keys compare bytewise.
// Write applies all ops atomically; nothing else spans more than one call.
type Engine interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Put(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error
	Write(ctx context.Context, ops []Op) error
	// Scan visits keys in [lower, upper) in ascending order, or descending
	// when reverse is set. A nil upper means unbounded.
	Scan(ctx context.Context, lower, upper []byte, reverse bool, fn ScanFunc) error
	Close() error
}
