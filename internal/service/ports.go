package service

import (
	"context"
	"log/slog"
	"time"

	"annotation-service/internal/entity"
	"annotation-service/internal/storage"
)

// DatasetResolver is the dataset boundary (implementation: dataset.Store).
type DatasetResolver interface {
	ResolveOrCreate(ctx context.Context, spec entity.DatasetSpec) (*entity.Dataset, []string, error)
	Thumbnail(ctx context.Context, datasetID, dataID string) ([]byte, error)
	Delete(ctx context.Context, datasetID string) error
}

// Authorizer answers the isAdmin predicate (implementation: UserService).
type Authorizer interface {
	IsAdmin(ctx context.Context, username string) (bool, error)
}

// Observer receives lifecycle events (implementation: metrics.Metrics).
type Observer interface {
	JobAssigned(objective entity.Status)
	JobClosed(status entity.Status)
	JobInterrupted()
}

type noopObserver struct{}

func (noopObserver) JobAssigned(entity.Status) {}
func (noopObserver) JobClosed(entity.Status)   {}
func (noopObserver) JobInterrupted()           {}

// Option customizes a service.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	now       func() time.Time
	observer  Observer
	batchOpts []storage.BatchOption
}

func buildOptions(opts []Option) options {
	o := options{
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithBatchOptions configures the BatchManagers created by bulk operations.
func WithBatchOptions(batchOpts ...storage.BatchOption) Option {
	return func(o *options) {
		o.batchOpts = append(o.batchOpts, batchOpts...)
	}
}

func requireAdmin(ctx context.Context, auth Authorizer, caller string) error {
	if caller == "" {
		return ErrForbidden
	}
	ok, err := auth.IsAdmin(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}
