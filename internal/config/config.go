package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Upload    UploadConfig    `yaml:"upload" envconfig:"UPLOAD"`
	Session   SessionConfig   `yaml:"session" envconfig:"SESSION"`
	Reconcile ReconcileConfig `yaml:"reconcile" envconfig:"RECONCILE"`
	Export    ExportConfig    `yaml:"export" envconfig:"EXPORT"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" validate:"gt=0"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// UploadConfig bounds what the loader accepts.
type UploadConfig struct {
	MaxBytes          int64    `yaml:"max_bytes" envconfig:"MAX_BYTES" validate:"gt=0"`
	AllowedExtensions []string `yaml:"allowed_extensions" envconfig:"ALLOWED_EXTENSIONS" validate:"min=1,dive,startswith=."`
}

// SessionConfig controls how long staged uploads are retained.
type SessionConfig struct {
	TTL         time.Duration `yaml:"ttl" envconfig:"TTL" validate:"gt=0"`
	MaxSessions int           `yaml:"max_sessions" envconfig:"MAX_SESSIONS" validate:"gt=0"`
}

// ReconcileConfig holds the business tables used by the pipeline.
type ReconcileConfig struct {
	StockTypes      []string `yaml:"stock_types" envconfig:"STOCK_TYPES" validate:"min=1"`
	StorageTypes    []string `yaml:"storage_types" envconfig:"STORAGE_TYPES" validate:"min=1"`
	OwnerCodes      []string `yaml:"owner_codes" envconfig:"OWNER_CODES" validate:"min=1,dive,required"`
	DuplicatePolicy string   `yaml:"duplicate_policy" envconfig:"DUPLICATE_POLICY" validate:"oneof=keep_all latest_finish"`
}

// ExportConfig controls workbook layout.
type ExportConfig struct {
	PivotGap       int    `yaml:"pivot_gap" envconfig:"PIVOT_GAP" validate:"min=1,max=20"`
	MasterTabColor string `yaml:"master_tab_color" envconfig:"MASTER_TAB_COLOR" validate:"hexcolor"`
	FileName       string `yaml:"file_name" envconfig:"FILE_NAME" validate:"required"`
}

// TelemetryConfig toggles tracing and metrics.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	TracingEnabled bool   `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED"`
	TraceExporter  string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	// .env is optional; a missing file is not an error
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if configFile := getConfigFilePath(); configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Only variables that are set override; there are no default tags
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// normalize trims list entries so env values like "F1, F2" behave
func (c *Config) normalize() {
	c.Reconcile.StockTypes = trimAll(c.Reconcile.StockTypes)
	c.Reconcile.StorageTypes = trimAll(c.Reconcile.StorageTypes)
	c.Reconcile.OwnerCodes = trimAll(c.Reconcile.OwnerCodes)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Output = strings.ToLower(strings.TrimSpace(c.Logging.Output))

	exts := make([]string, 0, len(c.Upload.AllowedExtensions))
	for _, ext := range trimAll(c.Upload.AllowedExtensions) {
		exts = append(exts, strings.ToLower(ext))
	}
	c.Upload.AllowedExtensions = exts
}

// Validate checks struct tags and cross-field rules
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}

	if (c.Logging.Output == "file" || c.Logging.Output == "both") && c.Logging.FilePath == "" {
		return fmt.Errorf("logging file path is required for output %q", c.Logging.Output)
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG_FILE"); path != "" {
		return path
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
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
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  DefaultRequestTimeout,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     DefaultRateLimit,
			Burst:   DefaultBurstSize,
		},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Output:   "console",
			FilePath: "logs/backfill.log",
		},
		Upload: UploadConfig{
			MaxBytes:          DefaultMaxUploadBytes,
			AllowedExtensions: []string{".xlsx", ".xlsm", ".xls", ".csv"},
		},
		Session: SessionConfig{
			TTL:         DefaultSessionTTL,
			MaxSessions: DefaultMaxSessions,
		},
		Reconcile: ReconcileConfig{
			StockTypes:      append([]string(nil), DefaultStockTypes...),
			StorageTypes:    append([]string(nil), DefaultStorageTypes...),
			OwnerCodes:      append([]string(nil), DefaultOwnerCodes...),
			DuplicatePolicy: "keep_all",
		},
		Export: ExportConfig{
			PivotGap:       DefaultPivotGap,
			MasterTabColor: "#00B050",
			FileName:       DefaultExportFileName,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			TracingEnabled: false,
			TraceExporter:  "none",
			MetricsEnabled: true,
		},
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
