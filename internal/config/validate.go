package config

import (
	"errors"
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	c.Storage.Engine = strings.ToLower(strings.TrimSpace(c.Storage.Engine))
	if c.Storage.DataDir, err = expandPath(c.Storage.DataDir); err != nil {
		return fmt.Errorf("storage.data_dir: %w", err)
	}
	if c.Datasets.Root, err = expandPath(c.Datasets.Root); err != nil {
		return fmt.Errorf("datasets.root: %w", err)
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case EnginePebble, EngineSQLite:
		if c.Storage.DataDir == "" {
			return errors.New("storage.data_dir is required for the embedded engines")
		}
	case EnginePostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn (or POSTGRES_DSN) is required for the postgres engine")
		}
	default:
		return fmt.Errorf("storage.engine: unsupported value %q", c.Storage.Engine)
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr is required")
	}
	if c.Jobs.IdleTimeoutSeconds < 0 || c.Jobs.ReapIntervalSeconds < 0 {
		return errors.New("jobs: intervals must not be negative")
	}
	if c.Jobs.IdleTimeoutSeconds > 0 && c.Jobs.ReapIntervalSeconds == 0 {
		return errors.New("jobs.reap_interval_seconds is required when idle_timeout_seconds is set")
	}
	if c.Batch.MaxBytes <= 0 {
		return errors.New("batch.max_bytes must be positive")
	}
	if c.Redis.Addr != "" && c.Redis.LockTTLSeconds <= 0 {
		return errors.New("redis.lock_ttl_seconds must be positive")
	}
	switch c.Logging.Format {
	case "", "auto", "json", "console":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
