package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const envPrefix = "GFRES_"

// envOverrides are the settings an operator may override per machine
// without editing the shared config file.
type envOverrides struct {
	LogLevel         string `env:"LOG_LEVEL"`
	LogFile          string `env:"LOG_FILE"`
	Workers          string `env:"WORKERS"`
	StateDriver      string `env:"STATE_DRIVER"`
	StateDSN         string `env:"STATE_DSN"`
	PublishAccessKey string `env:"PUBLISH_ACCESS_KEY"`
	PublishSecretKey string `env:"PUBLISH_SECRET_KEY"`
}

func applyEnv(cfg *Config) error {
	_ = godotenv.Load()

	var overrides envOverrides
	if err := env.ParseWithOptions(&overrides, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}

	if overrides.LogLevel != "" {
		cfg.Logging.Level = overrides.LogLevel
	}
	if overrides.LogFile != "" {
		cfg.Logging.File = overrides.LogFile
	}
	if overrides.Workers != "" {
		workers, err := strconv.Atoi(strings.TrimSpace(overrides.Workers))
		if err != nil {
			return fmt.Errorf("%sWORKERS must be an integer: %w", envPrefix, err)
		}
		cfg.Workers = workers
	}
	if overrides.StateDriver != "" {
		cfg.State.Driver = overrides.StateDriver
	}
	if overrides.StateDSN != "" {
		cfg.State.DSN = overrides.StateDSN
	}
	if overrides.PublishAccessKey != "" {
		cfg.Publish.AccessKey = overrides.PublishAccessKey
	}
	if overrides.PublishSecretKey != "" {
		cfg.Publish.SecretKey = overrides.PublishSecretKey
	}
	return nil
}
