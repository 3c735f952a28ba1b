// Package config loads service configuration from a TOML file, a .env file
// and environment overrides, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Server contains the HTTP API settings.
type Server struct {
	Addr                   string `toml:"addr"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds"`
	EnableSwagger          bool   `toml:"enable_swagger"`
}

// Storage selects and locates the key-value engine.
type Storage struct {
	Engine      string `toml:"engine"` // pebble | sqlite | postgres
	DataDir     string `toml:"data_dir"`
	PostgresDSN string `toml:"postgres_dsn"`
}

// Redis enables cross-process task locks when Addr is set.
type Redis struct {
	Addr           string `toml:"addr"`
	Password       string `toml:"password"`
	DB             int    `toml:"db"`
	LockPrefix     string `toml:"lock_prefix"`
	LockTTLSeconds int    `toml:"lock_ttl_seconds"`
}

// Jobs configures the idle reaper.
type Jobs struct {
	IdleTimeoutSeconds  int `toml:"idle_timeout_seconds"`
	ReapIntervalSeconds int `toml:"reap_interval_seconds"`
}

// Batch bounds the size of a single storage write.
type Batch struct {
	MaxBytes int `toml:"max_bytes"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Datasets struct {
	Root string `toml:"root"`
}

// Config encapsulates all configuration values of the service.
type Config struct {
	Server   Server   `toml:"server"`
	Storage  Storage  `toml:"storage"`
	Redis    Redis    `toml:"redis"`
	Jobs     Jobs     `toml:"jobs"`
	Batch    Batch    `toml:"batch"`
	Logging  Logging  `toml:"logging"`
	Datasets Datasets `toml:"datasets"`
}

const defaultConfigPath = "~/.config/annotator/config.toml"

// Load reads path (or the default location when empty), applies .env and
// environment overrides, then normalizes and validates the result. It
// reports the resolved path and whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadDotenv(".env"); err != nil {
		return nil, "", false, err
	}
	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(expanded); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if explicit {
				return "", false, fmt.Errorf("config file %s not found", expanded)
			}
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return expanded, true, nil
}

// loadDotenv exports a .env file into the process environment. A missing
// file is not an error; variables already set win.
func loadDotenv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = envOr("ANNOTATION_ADDR", c.Server.Addr)
	c.Storage.Engine = envOr("ANNOTATION_STORAGE_ENGINE", c.Storage.Engine)
	c.Storage.DataDir = envOr("ANNOTATION_DATA_DIR", c.Storage.DataDir)
	c.Storage.PostgresDSN = envOr("POSTGRES_DSN", c.Storage.PostgresDSN)
	c.Redis.Addr = envOr("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = envOr("REDIS_PASSWORD", c.Redis.Password)
	c.Logging.Level = envOr("ANNOTATION_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = envOr("ANNOTATION_LOG_FORMAT", c.Logging.Format)
	c.Datasets.Root = envOr("ANNOTATION_DATASET_ROOT", c.Datasets.Root)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (j Jobs) IdleTimeout() time.Duration {
	return time.Duration(j.IdleTimeoutSeconds) * time.Second
}

func (j Jobs) ReapInterval() time.Duration {
	return time.Duration(j.ReapIntervalSeconds) * time.Second
}

func (r Redis) LockTTL() time.Duration {
	return time.Duration(r.LockTTLSeconds) * time.Second
}

func (s Server) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

// LockPath is the file guarding schema migration of the local store.
func (c *Config) LockPath() string {
	return filepath.Join(c.Storage.DataDir, "annotator.lock")
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
