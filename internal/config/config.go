package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Analysis  AnalysisConfig  `yaml:"analysis" envconfig:"ANALYSIS"`
	Report    ReportConfig    `yaml:"report" envconfig:"REPORT"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Store     StoreConfig     `yaml:"store" envconfig:"STORE"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string          `yaml:"host" envconfig:"HOST"`
	Port            int             `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gte=0"`
	RequestTimeout  time.Duration   `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	MaxHeaderBytes  int             `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" validate:"gt=0"`
	MaxUploadBytes  int64           `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" validate:"gt=0"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// Address returns the listen address.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gt=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gt=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout stderr file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_if=Output file,required_if=Output both"`
}

// AnalysisConfig controls how instrument exports are read and compared.
type AnalysisConfig struct {
	// ExcludedSheets are worksheet names that never hold measurements.
	ExcludedSheets []string `yaml:"excluded_sheets" envconfig:"EXCLUDED_SHEETS"`

	// RequiredColumns must be present in every worksheet header.
	RequiredColumns []string `yaml:"required_columns" envconfig:"REQUIRED_COLUMNS" validate:"dive,required"`

	// FooterLabels mark the statistics rows the instrument appends.
	FooterLabels []string `yaml:"footer_labels" envconfig:"FOOTER_LABELS"`

	// SkipInvalidSheets skips worksheets with schema errors instead of
	// failing the whole document.
	SkipInvalidSheets bool `yaml:"skip_invalid_sheets" envconfig:"SKIP_INVALID_SHEETS"`

	// Baseline is the default side of percent differences, "a" or "b".
	Baseline string `yaml:"baseline" envconfig:"BASELINE" validate:"oneof=a b"`
}

// ReportConfig controls the text report and numeric exports.
type ReportConfig struct {
	Title    string `yaml:"title" envconfig:"TITLE" validate:"required"`
	Subtitle string `yaml:"subtitle" envconfig:"SUBTITLE"`
	Decimals int    `yaml:"decimals" envconfig:"DECIMALS" validate:"gte=0,lte=10"`
	Width    int    `yaml:"width" envconfig:"WIDTH" validate:"gte=40,lte=200"`

	// Timestamp prints the generation time in the report header.
	Timestamp bool `yaml:"timestamp" envconfig:"TIMESTAMP"`
}

// TelemetryConfig controls tracing and metrics.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	TracingEnabled bool   `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
}

// StoreConfig bounds the in-memory dataset store of the HTTP API.
type StoreConfig struct {
	MaxDatasets int           `yaml:"max_datasets" envconfig:"MAX_DATASETS" validate:"min=1"`
	TTL         time.Duration `yaml:"ttl" envconfig:"TTL" validate:"gt=0"`
}

// Load builds the configuration: defaults, then the YAML file at path (or
// the first default location that exists when path is empty), then NIR_*
// environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays the YAML file on c. Keys absent from the file keep
// their current values.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %q", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// findConfigFile returns the first default config location that exists.
func findConfigFile() string {
	for _, location := range DefaultConfigLocations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			MaxUploadBytes:  DefaultMaxUploadBytes,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   DefaultLogFormat,
			Output:   "stderr",
			FilePath: "logs/predictions.log",
		},
		Analysis: AnalysisConfig{
			ExcludedSheets:  []string{"Espectros", "Summary"},
			RequiredColumns: []string{"No", "ID", "Note", "Method"},
			FooterLabels:    []string{"Average", "Min", "Max", "Std.Dev.", "Target"},
			Baseline:        "b",
		},
		Report: ReportConfig{
			Title:    "NIR LAMP COMPARISON REPORT",
			Subtitle: "Prediction analysis",
			Decimals: 3,
			Width:    100,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			TracingEnabled: false,
			MetricsEnabled: true,
		},
		Store: StoreConfig{
			MaxDatasets: 32,
			TTL:         time.Hour,
		},
	}
}
