// Package dataset resolves directories of files into datasets of data items.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"annotation-service/internal/entity"
	"annotation-service/internal/keyspace"
	"annotation-service/internal/storage"
)

var (
	ErrInvalidPath = errors.New("invalid dataset path")
	ErrEmpty       = errors.New("dataset has no files")
)

// Store registers datasets found under Root. Each regular file of the
// dataset directory becomes one data item named after the file.
type Store struct {
	engine storage.Engine
	root   string
	logger *slog.Logger
	now    func() time.Time
}

func NewStore(engine storage.Engine, root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{engine: engine, root: root, logger: logger, now: time.Now}
}

// resolve maps a caller path onto the filesystem, refusing paths that
// escape the root.
func (s *Store) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	if s.root == "" {
		return filepath.Abs(path)
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: %s must be relative to the dataset root", ErrInvalidPath, path)
	}
	clean := filepath.Clean(path)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s leaves the dataset root", ErrInvalidPath, path)
	}
	return filepath.Join(s.root, clean), nil
}

// ID returns the stable dataset id of an absolute directory.
func ID(dir string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(dir))).String()
}

// ResolveOrCreate returns the dataset registered for spec.Path, registering
// it on first use. Item ids come back in key order.
func (s *Store) ResolveOrCreate(ctx context.Context, spec entity.DatasetSpec) (*entity.Dataset, []string, error) {
	dir, err := s.resolve(spec.Path)
	if err != nil {
		return nil, nil, err
	}
	id := ID(dir)

	var ds entity.Dataset
	err = storage.GetRecord(ctx, s.engine, keyspace.DatasetKey(id), &ds)
	switch {
	case err == nil:
		ids, err := s.itemIDs(ctx, id)
		return &ds, ids, err
	case !errors.Is(err, storage.ErrNotFound):
		return nil, nil, err
	}
	return s.register(ctx, id, dir)
}

func (s *Store) register(ctx context.Context, id, dir string) (*entity.Dataset, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read dataset %s: %w", dir, err)
	}

	bm := storage.NewBatchManager(s.engine, storage.WithBatchLogger(s.logger))
	var (
		ids   []string
		total uint64
	)
	for _, entry := range entries {
		if !entry.Type().IsRegular() || keyspace.Validate(entry.Name()) != nil || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, nil, err
		}
		item := entity.DataItem{DatasetID: id, ID: entry.Name(), Path: filepath.Join(dir, entry.Name())}
		if err := bm.PutRecord(ctx, keyspace.DataItemKey(id, item.ID), item); err != nil {
			return nil, nil, err
		}
		ids = append(ids, item.ID)
		total += uint64(info.Size())
	}
	if len(ids) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrEmpty, dir)
	}

	// the dataset record goes last: its presence means every item is stored
	ds := &entity.Dataset{ID: id, Path: dir, Size: len(ids), CreatedAt: s.now().UnixMilli()}
	if err := bm.PutRecord(ctx, keyspace.DatasetKey(id), ds); err != nil {
		return nil, nil, err
	}
	if err := bm.Flush(ctx); err != nil {
		return nil, nil, fmt.Errorf("write dataset %s: %w", id, err)
	}
	s.logger.Info("dataset registered", "id", id, "path", dir, "items", len(ids), "size", humanize.Bytes(total))
	return ds, ids, nil
}

func (s *Store) itemIDs(ctx context.Context, id string) ([]string, error) {
	keys, err := storage.ScanKeys(ctx, s.engine, keyspace.Under(keyspace.Dataset, id))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, keyspace.Last(k))
	}
	return ids, nil
}

// Item returns one registered data item.
func (s *Store) Item(ctx context.Context, datasetID, dataID string) (*entity.DataItem, error) {
	var item entity.DataItem
	if err := storage.GetRecord(ctx, s.engine, keyspace.DataItemKey(datasetID, dataID), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Thumbnail returns the raw bytes of the item's file.
func (s *Store) Thumbnail(ctx context.Context, datasetID, dataID string) ([]byte, error) {
	item, err := s.Item(ctx, datasetID, dataID)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(item.Path)
}

// Delete drops the dataset and its items. Files are left alone.
func (s *Store) Delete(ctx context.Context, datasetID string) error {
	bm := storage.NewBatchManager(s.engine, storage.WithBatchLogger(s.logger))
	err := storage.ScanRange(ctx, s.engine, keyspace.Under(keyspace.Dataset, datasetID), false, func(key, _ []byte) error {
		return bm.Delete(ctx, key)
	})
	if err != nil {
		return err
	}
	if err := bm.Delete(ctx, keyspace.DatasetKey(datasetID)); err != nil {
		return err
	}
	return bm.Flush(ctx)
}
