package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "./bundles", cfg.Store.BundleRoot)
	assert.Equal(t, int64(33554432), cfg.Store.MaxUploadSize)
	assert.Equal(t, 30*time.Minute, cfg.Generator.TokenTTL)
	assert.False(t, cfg.Generator.RequireComplete)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("BUNDLE_ROOT", "/var/lib/blueprints")
	t.Setenv("GENERATOR_TOKEN_TTL", "5m")
	t.Setenv("GENERATOR_REQUIRE_COMPLETE", "true")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/var/lib/blueprints", cfg.Store.BundleRoot)
	assert.Equal(t, 5*time.Minute, cfg.Generator.TokenTTL)
	assert.True(t, cfg.Generator.RequireComplete)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidateCatchesBadConfig(t *testing.T) {
	t.Setenv("SERVER_PORT", "99999")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT")

	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("LOG_LEVEL", "loud")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_LEVEL")
}
