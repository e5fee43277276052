package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	Environment string        `toml:"environment"` // "development" or "production"
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Logging     LoggingConfig `toml:"logging"`
	Edgar       EdgarConfig   `toml:"edgar"`
	Cache       CacheConfig   `toml:"cache"`
	Facts       FactsConfig   `toml:"facts"`
	Series      SeriesConfig  `toml:"series"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"min=1,max=65535"`
	Host string `toml:"host" validate:"required"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration.
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs
}

// EdgarConfig configures the SEC EDGAR client. The SEC requires a
// descriptive User-Agent identifying the caller.
type EdgarConfig struct {
	UserAgent         string `toml:"user_agent" validate:"required"`
	BaseURL           string `toml:"base_url"`
	TickerMapURL      string `toml:"ticker_map_url"`
	RequestsPerSecond int    `toml:"requests_per_second" validate:"min=1"`
	RequestTimeout    string `toml:"request_timeout"` // e.g. "30s"
}

// CacheConfig controls the quarter cache windows and staleness policy.
type CacheConfig struct {
	// CalculationQuarters is the cache depth. It must exceed
	// DisplayQuarters by at least 3 so any displayed Q4 always has its
	// three sibling quarters available for derivation.
	CalculationQuarters int `toml:"calculation_quarters" validate:"min=4"`
	DisplayQuarters     int `toml:"display_quarters" validate:"min=1"`
	// ReportingLagDays is how long after quarter end a filing is expected;
	// a ticker is stale once a newer quarter than its latest cached one
	// passed that deadline.
	ReportingLagDays int `toml:"reporting_lag_days" validate:"min=0"`
	// RefreshSchedule is an optional cron expression for the background
	// staleness sweep. Empty disables the sweep.
	RefreshSchedule string `toml:"refresh_schedule"`
}

// FactsConfig controls fact classification and extraction.
type FactsConfig struct {
	// QuarterlyMaxDays is the reporting-span threshold separating
	// quarterly from annual facts. Empirical, kept configurable.
	QuarterlyMaxDays int `toml:"quarterly_max_days" validate:"min=1"`
	// Concepts restricts extraction to the listed concept identifiers.
	// Empty means the built-in concept catalog.
	Concepts []string `toml:"concepts"`
}

// SeriesConfig controls series post-processing.
type SeriesConfig struct {
	// MaxGrowthPercent caps displayed year-over-year growth magnitude.
	// Empirical display constant, kept configurable.
	MaxGrowthPercent float64 `toml:"max_growth_percent" validate:"min=0"`
}

// NewDefaultConfig returns the built-in defaults. Priority system:
// CLI flags > environment variables > config files > defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8090,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/quartus.db",
				ResetOnStartup: false,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		Edgar: EdgarConfig{
			UserAgent:         "", // User must provide identity in config file (SEC requirement)
			BaseURL:           "https://data.sec.gov/api/xbrl",
			TickerMapURL:      "https://www.sec.gov/files/company_tickers.json",
			RequestsPerSecond: 10,
			RequestTimeout:    "30s",
		},
		Cache: CacheConfig{
			CalculationQuarters: 15,
			DisplayQuarters:     12,
			ReportingLagDays:    45,
			RefreshSchedule:     "",
		},
		Facts: FactsConfig{
			QuarterlyMaxDays: 120,
		},
		Series: SeriesConfig{
			MaxGrowthPercent: 500,
		},
	}
}

// LoadFromFiles loads configuration from multiple TOML files. Later files
// override earlier ones; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks field constraints and cross-field cache invariants.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Cache.CalculationQuarters < c.Cache.DisplayQuarters+3 {
		return fmt.Errorf("invalid configuration: calculation_quarters (%d) must be at least display_quarters (%d) + 3 for Q4 derivation coverage",
			c.Cache.CalculationQuarters, c.Cache.DisplayQuarters)
	}
	return nil
}

// EdgarRequestTimeout parses the configured request timeout with a fallback.
func (c *Config) EdgarRequestTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Edgar.RequestTimeout); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

// applyEnvOverrides applies QUARTUS_* environment variable overrides.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("QUARTUS_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("QUARTUS_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("QUARTUS_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if badgerPath := os.Getenv("QUARTUS_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("QUARTUS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("QUARTUS_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if ua := os.Getenv("QUARTUS_EDGAR_USER_AGENT"); ua != "" {
		config.Edgar.UserAgent = ua
	}
	if base := os.Getenv("QUARTUS_EDGAR_BASE_URL"); base != "" {
		config.Edgar.BaseURL = base
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority).
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}
