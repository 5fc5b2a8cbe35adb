// Package config provides configuration loading and validation for the redblack tools.
package config

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/redblack/pkg/safeconv"
)

// Sentinel validation errors.
var (
	ErrInvalidSize        = errors.New("invalid size")
	ErrInvalidShards      = errors.New("bench shards must be positive")
	ErrInvalidWorkers     = errors.New("bench workers must be positive")
	ErrInvalidInserts     = errors.New("bench inserts must be positive")
	ErrInvalidBatchSize   = errors.New("bench batch size must be positive")
	ErrInvalidThreshold   = errors.New("hibernation threshold must not be negative")
	ErrInvalidLogFormat   = errors.New("log format must be text or json")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidSampleRatio = errors.New("sample ratio must be within [0, 1]")
)

// Default configuration values.
const (
	defaultArenaCapacity = "1k"
	defaultMaxNodes      = "0"
	defaultInserts       = 1_000_000
	defaultShards        = 8
	defaultWorkers       = 4
	defaultBatchSize     = 4096
	defaultMetricsAddr   = ""
	defaultLogLevel      = "info"
	defaultLogFormat     = "text"
	defaultServiceName   = "redblack"
	envPrefix            = "REDBLACK"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

var logLevels = []string{"debug", "info", "warn", "error"}

// Config holds all configuration of the redblack tools.
type Config struct {
	Tree      TreeConfig      `mapstructure:"tree"`
	Bench     BenchConfig     `mapstructure:"bench"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// TreeConfig sizes the arena behind every tree.
//
// Sizes are node counts written as human strings: "4096", "64k", "1M".
type TreeConfig struct {
	ArenaCapacity        string `mapstructure:"arena_capacity"`
	MaxNodes             string `mapstructure:"max_nodes"`
	HibernationThreshold int    `mapstructure:"hibernation_threshold"`
}

// BenchConfig holds the settings of the concurrent insert benchmark.
type BenchConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
	Inserts     int    `mapstructure:"inserts"`
	Shards      int    `mapstructure:"shards"`
	Workers     int    `mapstructure:"workers"`
	BatchSize   int    `mapstructure:"batch_size"`
	Seed        int64  `mapstructure:"seed"`
	Hibernate   bool   `mapstructure:"hibernate"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	ServiceName     string        `mapstructure:"service_name"`
	Environment     string        `mapstructure:"environment"`
	OTLPEndpoint    string        `mapstructure:"otlp_endpoint"`
	OTLPHeaders     string        `mapstructure:"otlp_headers"`
	Sampler         string        `mapstructure:"sampler"`
	SampleRatio     float64       `mapstructure:"sample_ratio"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	OTLPInsecure    bool          `mapstructure:"otlp_insecure"`
}

// ArenaCapacityNodes returns the parsed tree.arena_capacity.
func (tc TreeConfig) ArenaCapacityNodes() (int, error) {
	return ParseSize(tc.ArenaCapacity)
}

// MaxNodesLimit returns the parsed tree.max_nodes; zero means unlimited.
func (tc TreeConfig) MaxNodesLimit() (int, error) {
	return ParseSize(tc.MaxNodes)
}

// ParseSize parses a human node count such as "64k" or "1.5M".
// The empty string is zero.
func ParseSize(raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}

	parsed, err := humanize.ParseBytes(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidSize, raw, err)
	}

	if parsed > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %q exceeds %s nodes", ErrInvalidSize, raw, humanize.Comma(math.MaxInt32))
	}

	return safeconv.MustUint64ToInt(parsed), nil
}

// LoadConfig loads configuration from file and environment variables.
// An empty configPath searches for redblack.yaml in the usual places.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("redblack")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("$HOME/.config/redblack")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// Default returns the configuration used when neither a file nor environment overrides exist.
func Default() *Config {
	viperCfg := viper.New()
	setDefaults(viperCfg)

	var config Config

	// Defaults always decode.
	_ = viperCfg.Unmarshal(&config)

	return &config
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("tree.arena_capacity", defaultArenaCapacity)
	viperCfg.SetDefault("tree.max_nodes", defaultMaxNodes)
	viperCfg.SetDefault("tree.hibernation_threshold", 0)

	viperCfg.SetDefault("bench.inserts", defaultInserts)
	viperCfg.SetDefault("bench.shards", defaultShards)
	viperCfg.SetDefault("bench.workers", defaultWorkers)
	viperCfg.SetDefault("bench.batch_size", defaultBatchSize)
	viperCfg.SetDefault("bench.seed", 1)
	viperCfg.SetDefault("bench.hibernate", false)
	viperCfg.SetDefault("bench.metrics_addr", defaultMetricsAddr)

	viperCfg.SetDefault("logging.level", defaultLogLevel)
	viperCfg.SetDefault("logging.format", defaultLogFormat)

	viperCfg.SetDefault("telemetry.service_name", defaultServiceName)
	viperCfg.SetDefault("telemetry.environment", "")
	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.sampler", "")
	viperCfg.SetDefault("telemetry.sample_ratio", 0.0)
	viperCfg.SetDefault("telemetry.shutdown_timeout", "5s")
}

// Validate checks every section and returns the first problem found.
func (config *Config) Validate() error {
	for _, size := range []string{config.Tree.ArenaCapacity, config.Tree.MaxNodes} {
		_, err := ParseSize(size)
		if err != nil {
			return err
		}
	}

	if config.Tree.HibernationThreshold < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidThreshold, config.Tree.HibernationThreshold)
	}

	if config.Bench.Inserts <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidInserts, config.Bench.Inserts)
	}

	if config.Bench.Shards <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidShards, config.Bench.Shards)
	}

	if config.Bench.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, config.Bench.Workers)
	}

	if config.Bench.BatchSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, config.Bench.BatchSize)
	}

	if !validLogLevel(config.Logging.Level) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, config.Logging.Level)
	}

	if config.Logging.Format != LogFormatText && config.Logging.Format != LogFormatJSON {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	if config.Telemetry.SampleRatio < 0 || config.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidSampleRatio, config.Telemetry.SampleRatio)
	}

	return nil
}

func validLogLevel(level string) bool {
	return slices.Contains(logLevels, strings.ToLower(strings.TrimSpace(level)))
}
