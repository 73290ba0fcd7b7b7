package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JOBTRAIL_JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 90, cfg.Audit.RetentionDays)
	assert.Equal(t, "0 3 * * *", cfg.Audit.PruneSchedule)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JOBTRAIL_JWT_SECRET", "test-secret")
	t.Setenv("JOBTRAIL_PORT", "9000")
	t.Setenv("JOBTRAIL_ROLE_CACHE_TTL", "30s")
	t.Setenv("JOBTRAIL_ACTIVITY_RETENTION_DAYS", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 30, cfg.Audit.RetentionDays)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JOBTRAIL_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JOBTRAIL_JWT_SECRET")
}

func TestValidate(t *testing.T) {
	t.Run("invalid port", func(t *testing.T) {
		cfg := &Config{
			Server:   ServerConfig{Port: -1},
			Database: DatabaseConfig{URL: "postgres://x"},
			Auth:     AuthConfig{JWTSecret: "s"},
			Audit:    AuditConfig{RetentionDays: 90},
		}
		assert.Error(t, cfg.Validate())
	})

	t.Run("invalid retention", func(t *testing.T) {
		cfg := &Config{
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{URL: "postgres://x"},
			Auth:     AuthConfig{JWTSecret: "s"},
			Audit:    AuditConfig{RetentionDays: 0},
		}
		assert.Error(t, cfg.Validate())
	})

	t.Run("ignores malformed numeric env values", func(t *testing.T) {
		t.Setenv("JOBTRAIL_JWT_SECRET", "test-secret")
		t.Setenv("JOBTRAIL_PORT", "not-a-number")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Server.Port)
	})
}
