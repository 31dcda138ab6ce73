package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	LaneCount       int           `env:"DISPATCHER_LANES,default=4"`
	Concurrency     int           `env:"DISPATCHER_CONCURRENCY,default=5"`
	DefaultTimeout  time.Duration `env:"DISPATCHER_DEFAULT_TIMEOUT,default=30s"`
	FlushInterval   time.Duration `env:"DISPATCHER_FLUSH_INTERVAL,default=2s"`
	FlushBatchSize  int           `env:"DISPATCHER_FLUSH_BATCH,default=100"`
	CleanupAge      time.Duration `env:"DISPATCHER_CLEANUP_AGE,default=168h"`
	CleanupInterval time.Duration `env:"DISPATCHER_CLEANUP_INTERVAL,default=1h"`
	HTTPAddr        string        `env:"DISPATCHER_HTTP_ADDR,default=:8080"`
}

// to help with testing
var envProcess = envconfig.Process

func LoadFromEnv(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	var errors []string

	if cfg.LaneCount <= 0 {
		errors = append(errors, "DISPATCHER_LANES must be positive")
	}

	if cfg.Concurrency <= 0 {
		errors = append(errors, "DISPATCHER_CONCURRENCY must be positive")
	}

	if cfg.DefaultTimeout <= 0 {
		errors = append(errors, "DISPATCHER_DEFAULT_TIMEOUT must be positive")
	}

	if cfg.FlushInterval <= 0 {
		errors = append(errors, "DISPATCHER_FLUSH_INTERVAL must be positive")
	}

	if cfg.FlushBatchSize <= 0 {
		errors = append(errors, "DISPATCHER_FLUSH_BATCH must be positive")
	}

	if cfg.CleanupAge <= 0 {
		errors = append(errors, "DISPATCHER_CLEANUP_AGE must be positive")
	}

	if cfg.CleanupInterval <= 0 {
		errors = append(errors, "DISPATCHER_CLEANUP_INTERVAL must be positive")
	}

	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		errors = append(errors, "DISPATCHER_HTTP_ADDR is required")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}
