// ABOUTME: Configuration for the heapshape tools
// ABOUTME: Defaults, then an optional YAML file, then .env and HEAPSHAPE_* environment overrides

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "HEAPSHAPE_"

// Config holds every tunable of the CLI
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Shape  ShapeConfig  `yaml:"shape"`
	Join   JoinConfig   `yaml:"join"`
	Loader LoaderConfig `yaml:"loader"`
	Output OutputConfig `yaml:"output"`
	Trace  TraceConfig  `yaml:"trace"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// ShapeConfig holds the abstraction thresholds
type ShapeConfig struct {
	ListThreshold int `yaml:"list_threshold"`
	TreeMinDepth  int `yaml:"tree_min_depth"`
}

// JoinConfig tunes the join
type JoinConfig struct {
	// Checks verifies field alignment after every alignment step
	Checks bool `yaml:"checks"`
}

// LoaderConfig sizes the description cache
type LoaderConfig struct {
	CacheSize int `yaml:"cache_size"`
}

// OutputConfig selects how result graphs are written
type OutputConfig struct {
	Format string `yaml:"format"` // json or yaml
}

// TraceConfig controls span export
type TraceConfig struct {
	// Enabled exports command spans to stderr
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Log:    LogConfig{Level: "info", Format: "text"},
		Shape:  ShapeConfig{ListThreshold: 10, TreeMinDepth: 2},
		Loader: LoaderConfig{CacheSize: 64},
		Output: OutputConfig{Format: "yaml"},
	}
}

// Load builds the configuration. An empty path skips the file; a .env file
// in the working directory is read when present. Variables already set in
// the environment win over .env entries.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := loadEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func loadEnv(cfg *Config) error {
	strs := map[string]*string{
		"LOG_LEVEL":     &cfg.Log.Level,
		"LOG_FORMAT":    &cfg.Log.Format,
		"OUTPUT_FORMAT": &cfg.Output.Format,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"LIST_THRESHOLD": &cfg.Shape.ListThreshold,
		"TREE_MIN_DEPTH": &cfg.Shape.TreeMinDepth,
		"CACHE_SIZE":     &cfg.Loader.CacheSize,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			continue
		}
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = i
	}

	bools := map[string]*bool{
		"JOIN_CHECKS": &cfg.Join.Checks,
		"TRACE":       &cfg.Trace.Enabled,
	}
	for key, dst := range bools {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
	}
	return nil
}

// Validate reports every invalid setting
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q is not text or json", c.Log.Format))
	}
	if c.Shape.ListThreshold < 0 {
		errs = append(errs, fmt.Errorf("shape.list_threshold must not be negative, got %d", c.Shape.ListThreshold))
	}
	if c.Shape.TreeMinDepth < 0 {
		errs = append(errs, fmt.Errorf("shape.tree_min_depth must not be negative, got %d", c.Shape.TreeMinDepth))
	}
	if c.Loader.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("loader.cache_size must be positive, got %d", c.Loader.CacheSize))
	}
	if c.Output.Format != "json" && c.Output.Format != "yaml" {
		errs = append(errs, fmt.Errorf("output.format %q is not json or yaml", c.Output.Format))
	}
	return errors.Join(errs...)
}
