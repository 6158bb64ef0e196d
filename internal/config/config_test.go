package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, CacheSQLite, cfg.Cache.Type)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "https://api.jikan.moe/v4", cfg.Remote.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 3, cfg.Remote.RPS)
	assert.Equal(t, 0, cfg.Remote.MaxRetries)
	assert.Equal(t, time.Duration(0), cfg.Refresh.Interval)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CACHE_TYPE", "Mongo")
	t.Setenv("FRESHNESS_TTL", "90m")
	t.Setenv("API_KEYS", "k1,k2")
	t.Setenv("SERVER_PORT", "9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, CacheMongoDB, cfg.Cache.Type)
	assert.Equal(t, 90*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Admin.APIKeys)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Address())
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown cache type", "CACHE_TYPE", "cassandra"},
		{"zero ttl", "FRESHNESS_TTL", "0s"},
		{"zero rps", "REMOTE_RPS", "0"},
		{"negative retries", "REMOTE_MAX_RETRIES", "-1"},
		{"malformed duration", "FRESHNESS_TTL", "soon"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestCacheConfig_DSNs(t *testing.T) {
	c := CacheConfig{
		Host: "db", Name: "anime", User: "u", Password: "p", SSLMode: "disable",
		RedisHost: "cache", RedisPort: 6380,
	}

	assert.Equal(t, "postgres://u:p@db:5432/anime?sslmode=disable", c.PostgresDSN())
	assert.Equal(t, "u:p@tcp(db:3306)/anime?parseTime=true&clientFoundRows=true", c.MySQLDSN())
	assert.Equal(t, "cache:6380", c.RedisAddress())

	c.Port = 15432
	assert.Equal(t, "postgres://u:p@db:15432/anime?sslmode=disable", c.PostgresDSN())
}
