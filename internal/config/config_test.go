package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.MetricsPort)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "migrations", cfg.Database.MigrationsPath)
	assert.Equal(t, 587, cfg.Notifications.Email.SMTPPort)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  port: "9000"
log:
  level: debug
notifications:
  base_url: https://status.example.com
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "https://status.example.com", cfg.Notifications.BaseURL)
	// Untouched keys keep their defaults.
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))

	t.Setenv("PULSEWATCH_LOG__LEVEL", "warn")
	t.Setenv("PULSEWATCH_DATABASE__URL", "postgres://env:env@db:5432/pulsewatch")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "postgres://env:env@db:5432/pulsewatch", cfg.Database.URL)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	t.Run("missing database url", func(t *testing.T) {
		cfg := defaults()
		cfg.Database.URL = ""
		assert.ErrorContains(t, cfg.validate(), "database.url")
	})

	t.Run("email enabled without smtp host", func(t *testing.T) {
		cfg := defaults()
		cfg.Notifications.Email.Enabled = true
		cfg.Notifications.Email.FromAddress = "alerts@example.com"
		assert.ErrorContains(t, cfg.validate(), "smtp_host")
	})

	t.Run("email enabled without from address", func(t *testing.T) {
		cfg := defaults()
		cfg.Notifications.Email.Enabled = true
		cfg.Notifications.Email.SMTPHost = "smtp.example.com"
		assert.ErrorContains(t, cfg.validate(), "from_address")
	})
}
