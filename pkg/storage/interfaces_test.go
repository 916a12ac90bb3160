package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 20, cfg.PostgresMaxConns)
	assert.Equal(t, 2, cfg.PostgresMinConns)
	assert.Equal(t, 10*time.Second, cfg.PostgresTimeout)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, 3, cfg.RedisMaxRetries)
	assert.Equal(t, 10, cfg.RedisPoolSize)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, 4096, cfg.L1CacheSize)

	require.NotNil(t, cfg.CacheTTL)
	assert.Equal(t, 1*time.Hour, cfg.CacheTTL["library"])
	assert.Equal(t, 1*time.Hour, cfg.CacheTTL["version"])
	assert.Equal(t, 1*time.Minute, cfg.CacheTTL["version_cache"])
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL["sitemap"])
}

func TestConfig_Fields(t *testing.T) {
	cfg := Config{
		PostgresURL:         "postgres://localhost:5432/catalog",
		PostgresReplicaURLs: "postgres://replica1:5432/catalog,postgres://replica2:5432/catalog",
		PostgresMaxConns:    50,
		PostgresMinConns:    5,
		PostgresTimeout:     30 * time.Second,

		S3Endpoint:     "https://s3.amazonaws.com",
		S3Region:       "us-west-2",
		S3Bucket:       "catalog-blobs",
		S3AccessKey:    "access-key",
		S3SecretKey:    "secret-key",
		S3UsePathStyle: true,

		RedisURL:        "redis://localhost:6379",
		RedisPassword:   "password",
		RedisDB:         1,
		RedisMaxRetries: 5,
		RedisPoolSize:   20,

		CacheEnabled: false,
		CacheTTL: map[string]time.Duration{
			"custom": 2 * time.Hour,
		},
		L1CacheSize: 8192,
	}

	assert.Equal(t, "postgres://localhost:5432/catalog", cfg.PostgresURL)
	assert.Equal(t, "postgres://replica1:5432/catalog,postgres://replica2:5432/catalog", cfg.PostgresReplicaURLs)
	assert.Equal(t, 50, cfg.PostgresMaxConns)
	assert.Equal(t, 5, cfg.PostgresMinConns)
	assert.Equal(t, 30*time.Second, cfg.PostgresTimeout)
	assert.Equal(t, "https://s3.amazonaws.com", cfg.S3Endpoint)
	assert.Equal(t, "us-west-2", cfg.S3Region)
	assert.Equal(t, "catalog-blobs", cfg.S3Bucket)
	assert.True(t, cfg.S3UsePathStyle)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, 1, cfg.RedisDB)
	assert.False(t, cfg.CacheEnabled)
	assert.Equal(t, 2*time.Hour, cfg.CacheTTL["custom"])
	assert.Equal(t, 8192, cfg.L1CacheSize)
}

func TestConfig_ZeroValues(t *testing.T) {
	var cfg Config

	assert.Equal(t, 0, cfg.PostgresMaxConns)
	assert.Equal(t, 0, cfg.PostgresMinConns)
	assert.Equal(t, time.Duration(0), cfg.PostgresTimeout)
	assert.False(t, cfg.CacheEnabled)
	assert.Nil(t, cfg.CacheTTL)
	assert.Equal(t, 0, cfg.L1CacheSize)
}

func TestConfig_CacheTTLModification(t *testing.T) {
	cfg := DefaultConfig()

	cfg.CacheTTL["library"] = 2 * time.Hour
	assert.Equal(t, 2*time.Hour, cfg.CacheTTL["library"])

	cfg.CacheTTL["custom"] = 5 * time.Minute
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL["custom"])

	delete(cfg.CacheTTL, "library")
	_, exists := cfg.CacheTTL["library"]
	assert.False(t, exists)
}
