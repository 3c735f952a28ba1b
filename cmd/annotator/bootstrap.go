package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gofrs/flock"
	"github.com/redis/go-redis/v9"

	"annotation-service/internal/config"
	"annotation-service/internal/dataset"
	"annotation-service/internal/metrics"
	"annotation-service/internal/migration"
	"annotation-service/internal/repository/pebbledb"
	"annotation-service/internal/repository/postgresql"
	"annotation-service/internal/repository/sqlite"
	"annotation-service/internal/service"
	"annotation-service/internal/storage"
)

// app holds the wired services of one process.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	engine  storage.Engine
	metrics *metrics.Metrics

	datasets *dataset.Store
	users    *service.UserService
	tasks    *service.TaskService
	jobs     *service.JobService
	results  *service.ResultService
	labels   *service.LabelService

	applied []migration.Applied
	closers []func() error
}

// openApp opens the configured engine, migrates it under the file lock and
// builds every service.
func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	engine, err := a.openEngine(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = engine

	if a.applied, err = a.runMigrations(ctx); err != nil {
		a.Close()
		return nil, err
	}

	locker, err := a.openLocker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithObserver(a.metrics),
		service.WithBatchOptions(a.batchOptions()...),
	}
	a.datasets = dataset.NewStore(engine, cfg.Datasets.Root, logger.With("component", "datasets"))
	a.users = service.NewUserService(engine, opts...)
	a.tasks = service.NewTaskService(engine, a.datasets, a.users, locker, opts...)
	a.jobs = service.NewJobService(engine, locker, opts...)
	a.results = service.NewResultService(engine, a.datasets, a.users, locker, opts...)
	a.labels = service.NewLabelService(engine, opts...)
	return a, nil
}

func (a *app) batchOptions() []storage.BatchOption {
	return []storage.BatchOption{
		storage.WithMaxBytes(a.cfg.Batch.MaxBytes),
		storage.WithBatchLogger(a.logger.With("component", "batch")),
		storage.WithFlushObserver(a.metrics.BatchFlushed),
	}
}

func (a *app) openEngine(ctx context.Context) (storage.Engine, error) {
	st := a.cfg.Storage
	if st.Engine != config.EnginePostgres {
		if err := os.MkdirAll(st.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	switch st.Engine {
	case config.EnginePebble:
		eng, err := pebbledb.Open(filepath.Join(st.DataDir, "pebble"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, eng.Close)
		if err := a.metrics.Register(metrics.NewPebbleCollector(eng.DB())); err != nil {
			return nil, fmt.Errorf("register pebble metrics: %w", err)
		}
		return eng, nil
	case config.EngineSQLite:
		eng, err := sqlite.Open(filepath.Join(st.DataDir, "annotator.db"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, eng.Close)
		return eng, nil
	case config.EnginePostgres:
		pool, err := postgresql.NewPool(ctx, st.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("pg: %w", err)
		}
		eng, err := postgresql.NewKVEngine(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		a.closers = append(a.closers, eng.Close)
		return eng, nil
	default:
		return nil, fmt.Errorf("unsupported storage engine %q", st.Engine)
	}
}

func (a *app) openLocker(ctx context.Context) (service.Locker, error) {
	rc := a.cfg.Redis
	if rc.Addr == "" {
		return service.NewLocalLocker(), nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.closers = append(a.closers, rdb.Close)
	a.logger.Info("using redis task locks", "addr", rc.Addr, "prefix", rc.LockPrefix)
	return service.NewRedisLocker(rdb, rc.LockPrefix, rc.LockTTL()), nil
}

// runMigrations brings the store to the latest schema. Embedded stores are
// guarded by a file lock so two processes never migrate the same data.
func (a *app) runMigrations(ctx context.Context) ([]migration.Applied, error) {
	if a.cfg.Storage.Engine != config.EnginePostgres {
		lock := flock.New(a.cfg.LockPath())
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire migration lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("migration lock %s is held by another process", a.cfg.LockPath())
		}
		defer lock.Unlock()
	}

	m := migration.NewDefault(a.engine,
		migration.WithLogger(a.logger.With("component", "migration")),
		migration.WithBatchOptions(a.batchOptions()...),
	)
	applied, err := m.Run(ctx)
	if err != nil {
		return applied, fmt.Errorf("migrate: %w", err)
	}
	return applied, nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

var dsnPassword = regexp.MustCompile(`://([^:/?#]+):([^@/]+)@`)

// redactDSN masks the password of a postgres URL: user:pass@ -> user:****@.
func redactDSN(dsn string) string {
	return dsnPassword.ReplaceAllString(dsn, `://$1:****@`)
}
