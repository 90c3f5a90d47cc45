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

	assert.Equal(t, "be-mm-reports", cfg.Service.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.RateLimit.MaxReportsPerWindow)
	assert.Equal(t, time.Hour, cfg.RateLimit.Window)
	assert.Equal(t, 365, cfg.Retention.Days)
	assert.Empty(t, cfg.NATS.URL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("RATE_LIMIT_MAX_REPORTS", "3")
	t.Setenv("RATE_LIMIT_WINDOW", "30m")
	t.Setenv("NATS_URL", "nats://localhost:4222")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3, cfg.RateLimit.MaxReportsPerWindow)
	assert.Equal(t, 30*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("port out of range", func(t *testing.T) {
		t.Setenv("HTTP_PORT", "99999")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("zero rate limit", func(t *testing.T) {
		t.Setenv("RATE_LIMIT_MAX_REPORTS", "0")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("zero retention", func(t *testing.T) {
		t.Setenv("RETENTION_DAYS", "0")
		_, err := Load()
		assert.Error(t, err)
	})
}
