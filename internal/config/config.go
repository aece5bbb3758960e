// Package config loads, validates and saves the bulkload YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/rshade/bulkload/internal/logging"
)

// CurrentVersion is written by Save and Default.
const CurrentVersion = "1.0.0"

// SupportedVersions is the semver constraint a config file must satisfy.
const SupportedVersions = ">= 1.0.0, < 2.0.0"

// DefaultPath is used when neither --config nor BULKLOAD_CONFIG is set.
const DefaultPath = "bulkload.yaml"

// Environment variables.
const (
	EnvConfig        = "BULKLOAD_CONFIG"
	EnvBatchSize     = "BULKLOAD_BATCH_SIZE"
	EnvMaxConcurrent = "BULKLOAD_MAX_CONCURRENT"
	EnvMinTimeMS     = "BULKLOAD_MIN_TIME_MS"
	EnvLogFile       = "BULKLOAD_LOG_FILE"
	EnvNativeLogging = "BULKLOAD_NATIVE_LOGGING"
	EnvLogLevel      = "BULKLOAD_LOG_LEVEL"
	EnvLogFormat     = "BULKLOAD_LOG_FORMAT"
)

// Defaults.
const (
	DefaultBatchSize     = 100
	DefaultMaxConcurrent = 5
	DefaultMinTimeMS     = 200
)

// Validation errors.
var (
	ErrUnsupportedVersion = errors.New("unsupported configuration version")
	ErrInvalidBatchSize   = errors.New("batch_size must be at least 1")
	ErrInvalidConcurrency = errors.New("max_concurrent must be at least 1")
	ErrInvalidMinTime     = errors.New("min_time_ms must be at least 1")
	ErrInvalidLogFormat   = errors.New("logging.format must be 'console' or 'json'")
	ErrInvalidEnvValue    = errors.New("invalid environment value")
)

// Config is the root of the configuration file.
type Config struct {
	Version string        `yaml:"version"`
	Upload  UploadConfig  `yaml:"upload"`
	Logging LoggingConfig `yaml:"logging"`

	path string
}

// UploadConfig holds the run settings. Nil numeric fields take their defaults;
// an explicit zero is rejected by Validate.
type UploadConfig struct {
	BatchSize     *int   `yaml:"batch_size,omitempty"`
	MaxConcurrent *int   `yaml:"max_concurrent,omitempty"`
	MinTimeMS     *int   `yaml:"min_time_ms,omitempty"`
	NativeLogging *bool  `yaml:"native_logging,omitempty"`
	LogFile       string `yaml:"log_file,omitempty"`
	AwaitEach     bool   `yaml:"await_each,omitempty"`
}

// LoggingConfig controls diagnostics logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Upload: UploadConfig{
			BatchSize:     ptr(DefaultBatchSize),
			MaxConcurrent: ptr(DefaultMaxConcurrent),
			MinTimeMS:     ptr(DefaultMinTimeMS),
			NativeLogging: ptr(true),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: logging.FormatConsole,
		},
		path: DefaultPath,
	}
}

// ResolvePath picks the config path from the flag, then BULKLOAD_CONFIG, then
// DefaultPath.
func ResolvePath(flagValue string, lookup func(string) (string, bool)) string {
	if flagValue != "" {
		return flagValue
	}
	if lookup != nil {
		if v, ok := lookup(EnvConfig); ok && v != "" {
			return v
		}
	}
	return DefaultPath
}

// Load reads path. A missing file yields Default with its path set to path.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Path returns where the configuration is loaded from and saved to.
func (c *Config) Path() string {
	return c.path
}

// SetPath changes where Save writes.
func (c *Config) SetPath(path string) {
	c.path = path
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save() error {
	if c.Version == "" {
		c.Version = CurrentVersion
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err = os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err = os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("writing config %s: %w", c.path, err)
	}
	return nil
}

// Validate checks the version constraint and every upload setting.
func (c *Config) Validate() error {
	constraint, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return err
	}
	v, err := semver.NewVersion(c.Version)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrUnsupportedVersion, c.Version, err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("%w: %s does not satisfy %s", ErrUnsupportedVersion, v, SupportedVersions)
	}

	u := c.Upload
	if u.BatchSize != nil && *u.BatchSize < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidBatchSize, *u.BatchSize)
	}
	if u.MaxConcurrent != nil && *u.MaxConcurrent < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidConcurrency, *u.MaxConcurrent)
	}
	if u.MinTimeMS != nil && *u.MinTimeMS < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidMinTime, *u.MinTimeMS)
	}

	switch c.Logging.Format {
	case "", logging.FormatConsole, logging.FormatJSON:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidLogFormat, c.Logging.Format)
	}
	return nil
}

// ApplyEnv overrides fields from the environment. Unparseable values are errors.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}

	ints := []struct {
		key string
		dst **int
	}{
		{EnvBatchSize, &c.Upload.BatchSize},
		{EnvMaxConcurrent, &c.Upload.MaxConcurrent},
		{EnvMinTimeMS, &c.Upload.MinTimeMS},
	}
	for _, e := range ints {
		v, ok := lookup(e.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidEnvValue, e.key, v)
		}
		*e.dst = ptr(n)
	}

	if v, ok := lookup(EnvNativeLogging); ok && v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidEnvValue, EnvNativeLogging, v)
		}
		c.Upload.NativeLogging = ptr(b)
	}
	if v, ok := lookup(EnvLogFile); ok {
		c.Upload.LogFile = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		c.Logging.Format = v
	}
	return nil
}

// GetBatchSize returns the configured batch size or its default.
func (u UploadConfig) GetBatchSize() int {
	return valueOr(u.BatchSize, DefaultBatchSize)
}

// GetMaxConcurrent returns the configured concurrency cap or its default.
func (u UploadConfig) GetMaxConcurrent() int {
	return valueOr(u.MaxConcurrent, DefaultMaxConcurrent)
}

// GetMinTime returns the configured admission spacing or its default.
func (u UploadConfig) GetMinTime() time.Duration {
	return time.Duration(valueOr(u.MinTimeMS, DefaultMinTimeMS)) * time.Millisecond
}

// GetNativeLogging reports whether console output is enabled (default true).
func (u UploadConfig) GetNativeLogging() bool {
	return valueOr(u.NativeLogging, true)
}

// ToLoggingConfig converts the logging section for the logging package. A file
// switches the output to that file.
func (lc LoggingConfig) ToLoggingConfig() logging.Config {
	output := logging.OutputStderr
	if lc.File != "" {
		output = logging.OutputFile
	}
	return logging.Config{
		Level:  lc.Level,
		Format: lc.Format,
		Output: output,
		File:   lc.File,
	}
}

func ptr[T any](v T) *T { return &v }

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
