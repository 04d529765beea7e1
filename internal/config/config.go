package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir   = ".coctel"
	DefaultConfigFile  = "config.yaml"
	DefaultRegionsFile = "regions.yaml"
	DefaultStoragePath = ".coctel/coctel.db"
	DefaultTimezone    = "America/Lima"
	DefaultTopN        = 5
	DefaultPrecision   = 1
	DefaultCacheTTL    = 5 * time.Minute
	DefaultCacheSize   = 256
	DefaultServerAddr  = "127.0.0.1:8089"
	DefaultLogLevel    = "info"
	MaxPrecision       = 2
)

// Duration wraps time.Duration for YAML unmarshaling from strings like "5m".
type Duration struct {
	time.Duration
	set bool
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	d.set = true
	return nil
}

type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Report  ReportConfig  `yaml:"report"`
	Cache   CacheConfig   `yaml:"cache"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`

	// Regions maps a macro-region to its locations. Loaded from regions.yaml.
	Regions Regions `yaml:"-"`
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	RetainDays int    `yaml:"retain_days"`
}

type ReportConfig struct {
	Timezone         string `yaml:"timezone"`
	TopN             int    `yaml:"top_n"`
	Precision        *int   `yaml:"precision"`
	IncludeUndefined bool   `yaml:"include_undefined"`
}

type CacheConfig struct {
	TTL      Duration `yaml:"ttl"`
	Capacity int      `yaml:"capacity"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads config.yaml and the optional regions.yaml from dir, applies
// defaults, and validates.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	regionsPath := filepath.Join(dir, DefaultRegionsFile)
	if _, err := os.Stat(regionsPath); err == nil {
		cfg.Regions, err = LoadRegions(regionsPath)
		if err != nil {
			return nil, err
		}
	}

	applyDefaults(&cfg)
	resolveEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// PrecisionDigits returns the number of decimals percentages are rounded to.
func (c *Config) PrecisionDigits() int {
	if c.Report.Precision == nil {
		return DefaultPrecision
	}
	return *c.Report.Precision
}

// Location loads the reporting timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Report.Timezone)
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Report.Timezone == "" {
		cfg.Report.Timezone = DefaultTimezone
	}
	if cfg.Report.TopN == 0 {
		cfg.Report.TopN = DefaultTopN
	}
	if cfg.Report.Precision == nil {
		p := DefaultPrecision
		cfg.Report.Precision = &p
	}
	if !cfg.Cache.TTL.set {
		cfg.Cache.TTL.Duration = DefaultCacheTTL
	}
	if cfg.Cache.Capacity == 0 {
		cfg.Cache.Capacity = DefaultCacheSize
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}

// resolveEnv lets COCTEL_DB and COCTEL_LOG_LEVEL override the file.
func resolveEnv(cfg *Config) {
	if v := os.Getenv("COCTEL_DB"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("COCTEL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func validate(cfg *Config) error {
	if cfg.Storage.RetainDays < 0 {
		return fmt.Errorf("storage.retain_days: must not be negative, got %d", cfg.Storage.RetainDays)
	}

	if _, err := time.LoadLocation(cfg.Report.Timezone); err != nil {
		return fmt.Errorf("report.timezone: %w", err)
	}

	if cfg.Report.TopN < 0 {
		return fmt.Errorf("report.top_n: must not be negative, got %d", cfg.Report.TopN)
	}

	if p := cfg.PrecisionDigits(); p < 0 || p > MaxPrecision {
		return fmt.Errorf("report.precision: want 0..%d, got %d", MaxPrecision, p)
	}

	if cfg.Cache.TTL.Duration < 0 {
		return fmt.Errorf("cache.ttl: must not be negative, got %s", cfg.Cache.TTL.Duration)
	}
	if cfg.Cache.Capacity < 0 {
		return fmt.Errorf("cache.capacity: must not be negative, got %d", cfg.Cache.Capacity)
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
		// valid
	default:
		return fmt.Errorf("log.level: unknown level %q (want debug, info, warn or error)", cfg.Log.Level)
	}

	return nil
}
