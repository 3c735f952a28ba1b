package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"annotation-service/internal/keyspace"
)

// Encode marshals a record value.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

// Decode unmarshals a record value, rejecting unknown fields.
func Decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	return nil
}

// GetRecord loads and decodes the record stored at key.
func GetRecord(ctx context.Context, engine Engine, key []byte, v any) error {
	data, err := engine.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := Decode(data, v); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// PutRecord encodes and stores a record.
func PutRecord(ctx context.Context, engine Engine, key []byte, v any) error {
	data, err := Encode(v)
	if err != nil {
		return err
	}
	return engine.Put(ctx, key, data)
}

// PutRecordOp builds a put operation for a record.
func PutRecordOp(key []byte, v any) (Op, error) {
	data, err := Encode(v)
	if err != nil {
		return Op{}, err
	}
	return Put(key, data), nil
}

// Exists reports whether key is present.
func Exists(ctx context.Context, engine Engine, key []byte) (bool, error) {
	_, err := engine.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ScanRange scans r and hands fn a private copy of each key, so the key may
// be kept after fn returns (queued into a BatchManager, for instance). The
// value is only valid during the call.
func ScanRange(ctx context.Context, engine Engine, r keyspace.Range, reverse bool, fn ScanFunc) error {
	return engine.Scan(ctx, r.Lower, r.Upper, reverse, func(key, value []byte) error {
		return fn(append([]byte(nil), key...), value)
	})
}

// ScanRecords decodes every record in r into a fresh T and hands it to fn.
// Keys may be retained as with ScanRange.
func ScanRecords[T any](ctx context.Context, engine Engine, r keyspace.Range, reverse bool, fn func(key []byte, rec *T) error) error {
	return ScanRange(ctx, engine, r, reverse, func(key, value []byte) error {
		rec := new(T)
		if err := Decode(value, rec); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		return fn(key, rec)
	})
}

// ScanKeys collects copies of every key in r.
func ScanKeys(ctx context.Context, engine Engine, r keyspace.Range) ([][]byte, error) {
	var keys [][]byte
	err := ScanRange(ctx, engine, r, false, func(key, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	return keys, err
}
