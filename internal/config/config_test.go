package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(Overrides{})
	require.NoError(t, err)

	assert.Equal(t, DefaultCatalogPath, cfg.CatalogPath)
	assert.Empty(t, cfg.Database)
	assert.True(t, cfg.ReadOnly)
	assert.Equal(t, 1000, cfg.MaxRows)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.StrictParse)
	assert.Nil(t, cfg.CORSOrigins)
}

func TestLoad_EnvVars(t *testing.T) {
	t.Setenv("DUCKALOG_CONFIG", "/etc/duckalog/catalog.yaml")
	t.Setenv("DUCKALOG_DATABASE", "/data/cat.duckdb")
	t.Setenv("READ_ONLY", "false")
	t.Setenv("MAX_ROWS", "500")
	t.Setenv("QUERY_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STRICT_PARSE", "true")
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("HTTP_BEARER_TOKEN", "tok")
	t.Setenv("HTTP_CORS_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("AUDIT_LOG", "/tmp/audit.jsonl")
	t.Setenv("OTEL_ENABLED", "1")

	cfg, err := Load(Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "/etc/duckalog/catalog.yaml", cfg.CatalogPath)
	assert.Equal(t, "/data/cat.duckdb", cfg.Database)
	assert.False(t, cfg.ReadOnly)
	assert.Equal(t, 500, cfg.MaxRows)
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.StrictParse)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, "tok", cfg.HTTPBearerToken)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, "/tmp/audit.jsonl", cfg.AuditLog)
	assert.True(t, cfg.OTelEnabled)
}

func TestLoad_OverridesWinOverEnv(t *testing.T) {
	t.Setenv("DUCKALOG_CONFIG", "env.yaml")
	t.Setenv("MAX_ROWS", "500")
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := Load(Overrides{
		CatalogPath:  ptr("flag.yaml"),
		MaxRows:      ptr(10),
		LogLevel:     ptr("warn"),
		ReadOnly:     ptr(false),
		StrictParse:  ptr(true),
		QueryTimeout: ptr(time.Second),
		OTelEnabled:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, "flag.yaml", cfg.CatalogPath)
	assert.Equal(t, 10, cfg.MaxRows)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.False(t, cfg.ReadOnly)
	assert.True(t, cfg.StrictParse)
	assert.Equal(t, time.Second, cfg.QueryTimeout)
	assert.True(t, cfg.OTelEnabled)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		overrides Overrides
		want      string
	}{
		{"read only", map[string]string{"READ_ONLY": "nope"}, Overrides{}, "READ_ONLY"},
		{"strict parse", map[string]string{"STRICT_PARSE": "maybe"}, Overrides{}, "STRICT_PARSE"},
		{"max rows env", map[string]string{"MAX_ROWS": "-1"}, Overrides{}, "MAX_ROWS"},
		{"max rows flag", nil, Overrides{MaxRows: ptr(0)}, "--max-rows"},
		{"timeout", map[string]string{"QUERY_TIMEOUT": "soon"}, Overrides{}, "QUERY_TIMEOUT"},
		{"zero timeout", nil, Overrides{QueryTimeout: ptr(time.Duration(0))}, "must be positive"},
		{"log level", map[string]string{"LOG_LEVEL": "loud"}, Overrides{}, "LOG_LEVEL"},
		{"log level flag", nil, Overrides{LogLevel: ptr("trace")}, "LOG_LEVEL"},
		{"empty catalog", nil, Overrides{CatalogPath: ptr("")}, "DUCKALOG_CONFIG"},
		{"empty addr", nil, Overrides{HTTPAddr: ptr("")}, "HTTP_ADDR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.overrides)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" INFO ", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"Error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := parseLogLevel(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
