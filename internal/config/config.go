// Package config loads daemon configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the ragjobs daemon.
type Config struct {
	Server  ServerConfig
	Jobs    JobsConfig
	Archive ArchiveConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type JobsConfig struct {
	RetentionLimit int
	ChunkSizeBytes int
	StepInterval   time.Duration
	StageRetries   int
	SweepInterval  time.Duration
}

type ArchiveConfig struct {
	Path       string
	PruneAfter time.Duration
}

// Load reads configuration from environment variables and returns a
// validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("RAGJOBS_PORT", 8080),
			Env:  envString("RAGJOBS_ENV", "development"),
		},
		Jobs: JobsConfig{
			RetentionLimit: envInt("RAGJOBS_RETENTION_LIMIT", 100),
			ChunkSizeBytes: envInt("RAGJOBS_CHUNK_SIZE_BYTES", 1000),
			StepInterval:   envDuration("RAGJOBS_STEP_INTERVAL", 50*time.Millisecond),
			StageRetries:   envInt("RAGJOBS_STAGE_RETRIES", 1),
			SweepInterval:  envDuration("RAGJOBS_SWEEP_INTERVAL", time.Minute),
		},
		Archive: ArchiveConfig{
			Path:       envString("RAGJOBS_ARCHIVE_PATH", "ragjobs.db"),
			PruneAfter: envDuration("RAGJOBS_ARCHIVE_PRUNE_AFTER", 30*24*time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("RAGJOBS_PORT must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Jobs.RetentionLimit < 1 {
		return fmt.Errorf("RAGJOBS_RETENTION_LIMIT must be positive, got %d", c.Jobs.RetentionLimit)
	}
	if c.Jobs.ChunkSizeBytes < 1 {
		return fmt.Errorf("RAGJOBS_CHUNK_SIZE_BYTES must be positive, got %d", c.Jobs.ChunkSizeBytes)
	}
	if c.Jobs.SweepInterval <= 0 {
		return fmt.Errorf("RAGJOBS_SWEEP_INTERVAL must be positive, got %v", c.Jobs.SweepInterval)
	}
	if c.Archive.Path == "" {
		return fmt.Errorf("RAGJOBS_ARCHIVE_PATH is required")
	}
	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
