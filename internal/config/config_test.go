package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Database.ApplySchema)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.False(t, cfg.Ingest.SortByDateBeforeCumSum)
	assert.Equal(t, int64(32<<20), cfg.Ingest.MaxUploadBytes)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RETAILPULSE_SERVER_PORT", "9090")
	t.Setenv("RETAILPULSE_DATABASE_URL", "postgres://localhost:5432/retailpulse_test")
	t.Setenv("RETAILPULSE_INGEST_SORT_BY_DATE_BEFORE_CUMSUM", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres://localhost:5432/retailpulse_test", cfg.Database.URL)
	assert.True(t, cfg.Ingest.SortByDateBeforeCumSum)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("RETAILPULSE_DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Database.URL = "postgres://localhost/db"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"zero read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }, true},
		{"zero write timeout", func(c *Config) { c.Server.WriteTimeout = 0 }, true},
		{"no database url", func(c *Config) { c.Database.URL = "" }, true},
		{"zero upload limit", func(c *Config) { c.Ingest.MaxUploadBytes = 0 }, true},
		{"bad logging output", func(c *Config) { c.Logging.Output = "syslog" }, true},
		{"file output without path", func(c *Config) {
			c.Logging.Output = "file"
			c.Logging.FilePath = ""
		}, true},
		{"file output with path", func(c *Config) {
			c.Logging.Output = "file"
			c.Logging.FilePath = "logs/app.log"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
