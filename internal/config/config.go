// Package config loads run configuration from a YAML or JSON file with
// EVOLOOP_* environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"evoloop/internal/evo"
)

var ErrInvalidConfig = errors.New("invalid config")

var validate = validator.New()

type StoreConfig struct {
	Kind string `json:"kind" yaml:"kind" validate:"oneof=memory sqlite badger"`
	Path string `json:"path" yaml:"path"`
}

type Config struct {
	Problem string `json:"problem" yaml:"problem" validate:"required"`
	// Settings left zero select the problem defaults.
	Settings       evo.Settings `json:"settings" yaml:"settings"`
	Seed           int64        `json:"seed" yaml:"seed"`
	Workers        int          `json:"workers" yaml:"workers" validate:"gte=0,lte=1024"`
	MaxGenerations int          `json:"max_generations" yaml:"max_generations" validate:"gte=0"`
	Store          StoreConfig  `json:"store" yaml:"store"`
	ArtifactsDir   string       `json:"artifacts_dir" yaml:"artifacts_dir"`
	MetricsAddr    string       `json:"metrics_addr" yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	LogLevel       string       `json:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
}

func Default() Config {
	return Config{
		Problem:  "origin",
		Seed:     1,
		Workers:  1,
		Store:    StoreConfig{Kind: "memory", Path: "evoloop.db"},
		LogLevel: "info",
	}
}

// Load starts from Default, applies the file at path (when path is not
// empty) and then the environment, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse config %s (tried YAML and JSON): YAML error: %v, JSON error: %w", path, err, jsonErr)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"EVOLOOP_PROBLEM":       &cfg.Problem,
		"EVOLOOP_STORE":         &cfg.Store.Kind,
		"EVOLOOP_DB_PATH":       &cfg.Store.Path,
		"EVOLOOP_ARTIFACTS_DIR": &cfg.ArtifactsDir,
		"EVOLOOP_METRICS_ADDR":  &cfg.MetricsAddr,
		"EVOLOOP_LOG_LEVEL":     &cfg.LogLevel,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"EVOLOOP_WORKERS":         &cfg.Workers,
		"EVOLOOP_MAX_GENERATIONS": &cfg.MaxGenerations,
		"EVOLOOP_SIZE":            &cfg.Settings.Size,
		"EVOLOOP_K":               &cfg.Settings.K,
		"EVOLOOP_M":               &cfg.Settings.M,
		"EVOLOOP_N":               &cfg.Settings.N,
		"EVOLOOP_CO":              &cfg.Settings.CO,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v)
		}
		*dst = n
	}

	if v := os.Getenv("EVOLOOP_SEED"); v != "" {
		seed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: EVOLOOP_SEED=%q is not an integer", ErrInvalidConfig, v)
		}
		cfg.Seed = seed
	}
	return nil
}

// Validate checks the struct tags and, when settings are given, the loop
// sizing invariant.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Settings != (evo.Settings{}) {
		if err := c.Settings.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}
