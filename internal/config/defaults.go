package config

const (
	EnginePebble   = "pebble"
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: Server{
			Addr:                   ":8080",
			ShutdownTimeoutSeconds: 10,
			EnableSwagger:          true,
		},
		Storage: Storage{
			Engine:  EnginePebble,
			DataDir: "~/.local/share/annotator",
		},
		Redis: Redis{
			LockPrefix:     "annotation:lock:",
			LockTTLSeconds: 10,
		},
		Jobs: Jobs{
			IdleTimeoutSeconds:  30 * 60,
			ReapIntervalSeconds: 60,
		},
		Batch: Batch{
			MaxBytes: 100_000_000,
		},
		Logging: Logging{
			Level:  "info",
			Format: "auto",
		},
	}
}
