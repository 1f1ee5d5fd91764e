package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetenv clears key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "CATALOG_SIZE", "PROBE_COUNT", "CATALOG_SEED", "RUNSTORE_DRIVER",
		"DATABASE_URL", "EXPORT_DRIVER", "EXPORT_DIR", "ADMIN_TOKEN_HASH", "ADMIN_TOKEN_SALT",
		"PURCHASE_RATE_PER_MINUTE"} {
		unsetenv(t, key)
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, 10000, cfg.CatalogSize)
	assert.Equal(t, 100, cfg.ProbeCount)
	assert.Equal(t, 60, cfg.PurchasesPerMinute)
	assert.Zero(t, cfg.Seed)
	assert.Equal(t, "sqlite", cfg.RunStoreDriver)
	assert.Equal(t, "shelfsort.db", cfg.DatabaseURL)
	assert.Equal(t, "fs", cfg.ExportDriver)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CATALOG_SIZE", "500")
	t.Setenv("CATALOG_SEED", "42")
	t.Setenv("RUNSTORE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("EXPORT_DRIVER", "s3")
	t.Setenv("EXPORT_S3_BUCKET", "exports")
	t.Setenv("EXPORT_S3_PATH_STYLE", "TRUE")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.CatalogSize)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, "postgres", cfg.RunStoreDriver)
	assert.Equal(t, "postgres://x", cfg.DatabaseURL)
	assert.Equal(t, "s3", cfg.ExportDriver)
	assert.True(t, cfg.S3PathStyle)
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]map[string]string{
		"bad size":        {"CATALOG_SIZE": "many"},
		"negative probes": {"PROBE_COUNT": "-1"},
		"bad driver":      {"RUNSTORE_DRIVER": "mysql"},
		"s3 no bucket":    {"EXPORT_DRIVER": "s3", "EXPORT_S3_BUCKET": ""},
		"hash no salt":    {"ADMIN_TOKEN_HASH": "abc", "ADMIN_TOKEN_SALT": ""},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
