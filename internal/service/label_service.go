package service

import (
	"context"
	"encoding/json"
	"fmt"

	"annotation-service/internal/entity"
	"annotation-service/internal/keyspace"
	"annotation-service/internal/storage"
)

// LabelService reads and replaces annotation payloads. Labels are created
// with their task; Put never creates one.
type LabelService struct {
	engine storage.Engine
	opts   options
}

func NewLabelService(engine storage.Engine, opts ...Option) *LabelService {
	return &LabelService{engine: engine, opts: buildOptions(opts)}
}

func (s *LabelService) Get(ctx context.Context, taskName, dataID string) (*entity.Label, error) {
	if err := validateIDs(taskName, dataID); err != nil {
		return nil, err
	}
	var label entity.Label
	if err := storage.GetRecord(ctx, s.engine, keyspace.LabelKey(taskName, dataID), &label); err != nil {
		return nil, translate(err, "label "+dataID)
	}
	return &label, nil
}

// Put replaces the annotations of an existing label.
func (s *LabelService) Put(ctx context.Context, caller, taskName, dataID string, annotations json.RawMessage) (*entity.Label, error) {
	if caller == "" {
		return nil, ErrForbidden
	}
	if len(annotations) == 0 || !json.Valid(annotations) {
		return nil, validationf("annotations must be valid JSON")
	}
	label, err := s.Get(ctx, taskName, dataID)
	if err != nil {
		return nil, err
	}
	label.Annotations = annotations
	if err := storage.PutRecord(ctx, s.engine, keyspace.LabelKey(taskName, dataID), label); err != nil {
		return nil, fmt.Errorf("write label: %w", err)
	}
	s.opts.logger.Debug("label updated", "task", taskName, "data_id", dataID, "by", caller, "bytes", len(annotations))
	return label, nil
}
