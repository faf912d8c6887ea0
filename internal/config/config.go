package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultCatalogPath is used when neither DUCKALOG_CONFIG nor --config is set.
const DefaultCatalogPath = "catalog.yaml"

type Config struct {
	// Catalog.
	CatalogPath string // path to the catalog YAML
	Database    string // overrides duckdb.database from the catalog when set

	// Query limits.
	ReadOnly     bool // open the built catalog read-only for queries
	MaxRows      int
	QueryTimeout time.Duration
	StrictParse  bool // run the pg_query parse check after the gate

	// Logging.
	LogLevel slog.Level

	// Dashboard.
	HTTPAddr        string
	HTTPBearerToken string   // optional; protects every route except /health
	CORSOrigins     []string // allowed origins for /api; empty disables CORS

	// Observability.
	OTelEnabled bool
	AuditLog    string // path to NDJSON audit log file
}

// Overrides holds CLI flag values that override environment variables.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	CatalogPath     *string
	Database        *string
	ReadOnly        *bool
	MaxRows         *int
	QueryTimeout    *time.Duration
	StrictParse     *bool
	LogLevel        *string
	HTTPAddr        *string
	HTTPBearerToken *string
	AuditLog        *string
	OTelEnabled     bool
}

// Load builds a Config from environment variables, then applies CLI overrides,
// then validates the result.
func Load(overrides Overrides) (*Config, error) {
	cfg := defaults()

	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		CatalogPath:  DefaultCatalogPath,
		ReadOnly:     true,
		MaxRows:      1000,
		QueryTimeout: 30 * time.Second,
		LogLevel:     slog.LevelInfo,
		HTTPAddr:     "127.0.0.1:8787",
	}
}

// loadEnvVars reads all supported environment variables into cfg.
func loadEnvVars(cfg *Config) error {
	if v := os.Getenv("DUCKALOG_CONFIG"); v != "" {
		cfg.CatalogPath = v
	}
	cfg.Database = os.Getenv("DUCKALOG_DATABASE")

	if err := envBool("READ_ONLY", &cfg.ReadOnly); err != nil {
		return err
	}
	if err := envBool("STRICT_PARSE", &cfg.StrictParse); err != nil {
		return err
	}
	if err := envBool("OTEL_ENABLED", &cfg.OTelEnabled); err != nil {
		return err
	}

	if v := os.Getenv("MAX_ROWS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid MAX_ROWS value %q: must be a positive integer", v)
		}
		cfg.MaxRows = n
	}

	if v := os.Getenv("QUERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid QUERY_TIMEOUT value %q: %w", v, err)
		}
		cfg.QueryTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.HTTPBearerToken = os.Getenv("HTTP_BEARER_TOKEN")
	cfg.CORSOrigins = splitList(os.Getenv("HTTP_CORS_ORIGINS"))
	cfg.AuditLog = os.Getenv("AUDIT_LOG")

	return nil
}

func envBool(name string, dst *bool) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", name, v, err)
	}
	*dst = b
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// applyOverrides applies CLI flag values on top of the env-loaded config.
func applyOverrides(cfg *Config, o Overrides) error {
	if o.CatalogPath != nil {
		cfg.CatalogPath = *o.CatalogPath
	}
	if o.Database != nil {
		cfg.Database = *o.Database
	}
	if o.ReadOnly != nil {
		cfg.ReadOnly = *o.ReadOnly
	}
	if o.MaxRows != nil {
		if *o.MaxRows <= 0 {
			return fmt.Errorf("invalid --max-rows value: must be a positive integer")
		}
		cfg.MaxRows = *o.MaxRows
	}
	if o.QueryTimeout != nil {
		cfg.QueryTimeout = *o.QueryTimeout
	}
	if o.StrictParse != nil {
		cfg.StrictParse = *o.StrictParse
	}
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if o.HTTPAddr != nil {
		cfg.HTTPAddr = *o.HTTPAddr
	}
	if o.HTTPBearerToken != nil {
		cfg.HTTPBearerToken = *o.HTTPBearerToken
	}
	if o.AuditLog != nil {
		cfg.AuditLog = *o.AuditLog
	}
	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled

	return nil
}

// validate checks cross-field constraints on the final config.
func validate(cfg *Config) error {
	if cfg.CatalogPath == "" {
		return fmt.Errorf("DUCKALOG_CONFIG must not be empty (set via env var or --config flag)")
	}
	if cfg.QueryTimeout <= 0 {
		return fmt.Errorf("invalid QUERY_TIMEOUT %s: must be positive", cfg.QueryTimeout)
	}
	if cfg.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}
