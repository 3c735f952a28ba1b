// Package migration upgrades the persisted record layout between schema
// versions.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"annotation-service/internal/keyspace"
	"annotation-service/internal/storage"
)

// Versions lists the known schema versions, newest first.
var Versions = []string{"0.2.0", "0.1.0", "0.0.0"}

// Baseline is assumed when the store carries no version marker.
const Baseline = "0.0.0"

var ErrUnknownVersion = errors.New("unknown schema version")

// Step rewrites the records affected by one version gap. Writes go through
// bm; the migrator flushes after the step returns.
type Step func(ctx context.Context, eng storage.Engine, bm *storage.BatchManager) error

type marker struct {
	Version string `json:"version"`
}

// Applied describes one executed step.
type Applied struct {
	From    string
	To      string
	Flushes int
	Written int
}

type Migrator struct {
	engine    storage.Engine
	versions  []string
	steps     map[[2]string]Step
	logger    *slog.Logger
	batchOpts []storage.BatchOption
}

type Option func(*Migrator)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Migrator) { m.logger = logger }
}

func WithBatchOptions(opts ...storage.BatchOption) Option {
	return func(m *Migrator) { m.batchOpts = append(m.batchOpts, opts...) }
}

// WithVersions replaces the known versions (newest first).
func WithVersions(versions ...string) Option {
	return func(m *Migrator) { m.versions = versions }
}

// New returns a migrator with no steps registered.
func New(engine storage.Engine, opts ...Option) *Migrator {
	m := &Migrator{
		engine:   engine,
		versions: Versions,
		steps:    map[[2]string]Step{},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewDefault returns a migrator carrying every built-in step.
func NewDefault(engine storage.Engine, opts ...Option) *Migrator {
	m := New(engine, opts...)
	m.Register("0.0.0", "0.1.0", renameResultAssigned)
	m.Register("0.1.0", "0.2.0", renameUserQueue)
	return m
}

// Register installs the step upgrading from to to.
func (m *Migrator) Register(from, to string, step Step) {
	m.steps[[2]string{from, to}] = step
}

// Latest is the newest known version.
func (m *Migrator) Latest() string {
	return m.versions[0]
}

// Current reads the stored version marker.
func (m *Migrator) Current(ctx context.Context) (string, error) {
	var mk marker
	err := storage.GetRecord(ctx, m.engine, keyspace.VersionKey(), &mk)
	if errors.Is(err, storage.ErrNotFound) {
		return Baseline, nil
	}
	if err != nil {
		return "", fmt.Errorf("read version marker: %w", err)
	}
	return mk.Version, nil
}

// Pending returns the version gaps between the stored version and the latest,
// oldest first.
func (m *Migrator) Pending(ctx context.Context) ([][2]string, error) {
	current, err := m.Current(ctx)
	if err != nil {
		return nil, err
	}
	idx := slices.Index(m.versions, current)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVersion, current)
	}
	var gaps [][2]string
	for i := idx; i > 0; i-- {
		gaps = append(gaps, [2]string{m.versions[i], m.versions[i-1]})
	}
	return gaps, nil
}

// Run applies every pending step in order. The marker is advanced after
// each step so that a failed run resumes from the last completed version.
func (m *Migrator) Run(ctx context.Context) ([]Applied, error) {
	gaps, err := m.Pending(ctx)
	if err != nil {
		return nil, err
	}
	if len(gaps) == 0 {
		m.logger.Debug("schema up to date", "version", m.Latest())
		return nil, nil
	}

	var applied []Applied
	for _, gap := range gaps {
		step, ok := m.steps[gap]
		if !ok {
			return applied, fmt.Errorf("no migration registered from %s to %s", gap[0], gap[1])
		}
		bm := storage.NewBatchManager(m.engine, append([]storage.BatchOption{storage.WithBatchLogger(m.logger)}, m.batchOpts...)...)
		if err := step(ctx, m.engine, bm); err != nil {
			return applied, fmt.Errorf("migrate %s -> %s: %w", gap[0], gap[1], err)
		}
		if err := bm.PutRecord(ctx, keyspace.VersionKey(), marker{Version: gap[1]}); err != nil {
			return applied, err
		}
		if err := bm.Flush(ctx); err != nil {
			return applied, fmt.Errorf("migrate %s -> %s: %w", gap[0], gap[1], err)
		}
		a := Applied{From: gap[0], To: gap[1], Flushes: bm.Flushes(), Written: bm.Written()}
		applied = append(applied, a)
		m.logger.Info("schema migrated", "from", a.From, "to", a.To, "written", a.Written, "flushes", a.Flushes)
	}
	return applied, nil
}

// Stamp writes the latest version marker without running any step. Used on
// a freshly created store.
func (m *Migrator) Stamp(ctx context.Context) error {
	return storage.PutRecord(ctx, m.engine, keyspace.VersionKey(), marker{Version: m.Latest()})
}
