package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/dbmigration/ec2secrets/internal/watch"
)

const (
	defaultListenAddr     = "127.0.0.1:9101"
	defaultRateLimitRPS   = 10.0
	defaultRateLimitBurst = 20
	defaultLogLevel       = "info"
)

// ErrInvalidConfig marks configuration that failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > config file > Environment variables > Defaults
type Config struct {
	EnvFile              string
	FirebaseConfigFile   string
	ListenAddr           string
	Watch                bool
	WatchDebounce        time.Duration
	ReloadSchedule       string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
	LogLevel             string
}

// fileConfig represents the launcher file for both YAML and TOML. Pointers
// distinguish an absent key from a zero value.
type fileConfig struct {
	EnvFile              string         `yaml:"env_file" toml:"env_file"`
	FirebaseConfigFile   string         `yaml:"firebase_config_file" toml:"firebase_config_file"`
	ListenAddr           string         `yaml:"listen_addr" toml:"listen_addr"`
	Watch                *bool          `yaml:"watch" toml:"watch"`
	WatchDebounce        string         `yaml:"watch_debounce" toml:"watch_debounce"`
	ReloadSchedule       string         `yaml:"reload_schedule" toml:"reload_schedule"`
	ShutdownGracePeriod  string         `yaml:"shutdown_grace_period" toml:"shutdown_grace_period"`
	ReadHeaderTimeout    string         `yaml:"read_header_timeout" toml:"read_header_timeout"`
	WriteTimeout         string         `yaml:"write_timeout" toml:"write_timeout"`
	IdleTimeout          string         `yaml:"idle_timeout" toml:"idle_timeout"`
	EnableRequestLogging *bool          `yaml:"enable_request_logging" toml:"enable_request_logging"`
	RateLimit            fileRateLimit  `yaml:"rate_limit" toml:"rate_limit"`
	Logging              fileLogSection `yaml:"logging" toml:"logging"`
}

type fileRateLimit struct {
	RPS   *float64 `yaml:"rps" toml:"rps"`
	Burst *int     `yaml:"burst" toml:"burst"`
}

type fileLogSection struct {
	Level string `yaml:"level" toml:"level"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile         string
	EnvFile            *string
	FirebaseConfigFile *string
	ListenAddr         *string
	Watch              *bool
	ReloadSchedule     *string
	RateLimitRPS       *float64
	RateLimitBurst     *int
	LogLevel           *string
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > config file > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Apply environment variables first so the file can override them.
	applyEnvConfig(&cfg)

	configFile := strings.TrimSpace(os.Getenv("EC2SECRETS_CONFIG"))
	if overrides != nil && overrides.ConfigFile != "" {
		configFile = overrides.ConfigFile
	}
	if configFile != "" {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return Config{}, fmt.Errorf("load config file: %w", err)
		}
		if err := applyFileConfig(&cfg, fileCfg); err != nil {
			return Config{}, err
		}
	}

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		ListenAddr:           defaultListenAddr,
		Watch:                true,
		WatchDebounce:        watch.DefaultDebounce,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		LogLevel:             defaultLogLevel,
	}
}

// loadFromFile parses a YAML or TOML launcher file, chosen by extension.
func loadFromFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parse TOML: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q", ext)
	}

	return &fileCfg, nil
}

// applyFileConfig applies file configuration to the Config struct.
func applyFileConfig(cfg *Config, fileCfg *fileConfig) error {
	if fileCfg.EnvFile != "" {
		cfg.EnvFile = fileCfg.EnvFile
	}
	if fileCfg.FirebaseConfigFile != "" {
		cfg.FirebaseConfigFile = fileCfg.FirebaseConfigFile
	}
	if fileCfg.ListenAddr != "" {
		cfg.ListenAddr = fileCfg.ListenAddr
	}
	if fileCfg.Watch != nil {
		cfg.Watch = *fileCfg.Watch
	}
	if fileCfg.ReloadSchedule != "" {
		cfg.ReloadSchedule = fileCfg.ReloadSchedule
	}
	if fileCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *fileCfg.EnableRequestLogging
	}
	if fileCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *fileCfg.RateLimit.RPS
	}
	if fileCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *fileCfg.RateLimit.Burst
	}
	if fileCfg.Logging.Level != "" {
		cfg.LogLevel = fileCfg.Logging.Level
	}

	durations := []struct {
		name  string
		raw   string
		field *time.Duration
	}{
		{"watch_debounce", fileCfg.WatchDebounce, &cfg.WatchDebounce},
		{"shutdown_grace_period", fileCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", fileCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", fileCfg.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", fileCfg.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, d.name, err)
		}
		*d.field = parsed
	}

	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("EC2SECRETS_ENV_FILE")); v != "" {
		cfg.EnvFile = v
	}

	if v := strings.TrimSpace(os.Getenv("EC2SECRETS_FIREBASE_CONFIG_FILE")); v != "" {
		cfg.FirebaseConfigFile = v
	}

	if v := strings.TrimSpace(os.Getenv("EC2SECRETS_LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}

	if v := strings.TrimSpace(os.Getenv("EC2SECRETS_WATCH")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Watch = b
		}
	}

	if v := strings.TrimSpace(os.Getenv("EC2SECRETS_RELOAD_SCHEDULE")); v != "" {
		cfg.ReloadSchedule = v
	}

	if rps := strings.TrimSpace(os.Getenv("EC2SECRETS_RATE_LIMIT_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv("EC2SECRETS_RATE_LIMIT_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	if v := strings.TrimSpace(os.Getenv("EC2SECRETS_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.EnvFile != nil && *overrides.EnvFile != "" {
		cfg.EnvFile = *overrides.EnvFile
	}

	if overrides.FirebaseConfigFile != nil && *overrides.FirebaseConfigFile != "" {
		cfg.FirebaseConfigFile = *overrides.FirebaseConfigFile
	}

	if overrides.ListenAddr != nil && *overrides.ListenAddr != "" {
		cfg.ListenAddr = *overrides.ListenAddr
	}

	if overrides.Watch != nil {
		cfg.Watch = *overrides.Watch
	}

	if overrides.ReloadSchedule != nil && *overrides.ReloadSchedule != "" {
		cfg.ReloadSchedule = *overrides.ReloadSchedule
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("%w: rate limit rps must be >= 0", ErrInvalidConfig)
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("%w: rate limit burst must be >= 0", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("%w: listen address cannot be empty", ErrInvalidConfig)
	}
	if cfg.ReloadSchedule != "" {
		if err := watch.ValidateSchedule(cfg.ReloadSchedule); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("%w: log level: %v", ErrInvalidConfig, err)
	}
	return nil
}
