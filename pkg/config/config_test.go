package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"LEDGER_STORE", "LEDGER_BOLT_PATH", "LEDGER_SQLITE_PATH", "MONGO_URI", "MONGO_DATABASE",
	"REDIS_URL", "IDEMPOTENCY_TTL", "PORT", "LOG_LEVEL", "LOG_FORMAT", "DEBUG",
	"LEDGER_API_URL", "FAILED_WRITE_ATTEMPTS", "BEANCOUNT_ROOT", "BEANCOUNT_DB_PATH", "BEANCOUNT_MAPPING",
}

// clearEnv unsets every key for the test. Setenv registers the restore;
// godotenv only fills keys that are absent.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverBolt, cfg.Store.Driver)
	assert.Equal(t, "./data/ledger.db", cfg.Store.BoltPath)
	assert.Equal(t, "txn-demo", cfg.Store.MongoDatabase)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Server.IdempotencyTTL)
	assert.Equal(t, 3, cfg.Server.FailedWriteAttempts)
	assert.Equal(t, "http://localhost:8080", cfg.Client.APIURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "config/account-mapping.yaml", cfg.Beancount.Mapping)
	assert.False(t, cfg.Debug)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)

	envPath := filepath.Join(t.TempDir(), ".env")
	content := "LEDGER_STORE=mongo\nMONGO_URI=mongodb://localhost:27017/?replicaSet=rs0\nPORT=9090\nIDEMPOTENCY_TTL=10m\nDEBUG=true\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))

	cfg, err := Load(envPath)
	require.NoError(t, err)

	assert.Equal(t, DriverMongo, cfg.Store.Driver)
	assert.Equal(t, "mongodb://localhost:27017/?replicaSet=rs0", cfg.Store.MongoURI)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10*time.Minute, cfg.Server.IdempotencyTTL)
	assert.True(t, cfg.Debug)
	assert.NoError(t, cfg.Validate(cfg.StoreRequirements()...))
}

func TestLoadMissingEnvFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"LEDGER_STORE", "postgres"},
		{"PORT", "http"},
		{"FAILED_WRITE_ATTEMPTS", "0"},
		{"IDEMPOTENCY_TTL", "forever"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{Store: StoreConfig{Driver: DriverMongo, MongoDatabase: "txn-demo"}}

	err := cfg.Validate(cfg.StoreRequirements()...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.mongoUri")
	assert.NotContains(t, err.Error(), "store.mongoDatabase")

	err = cfg.Validate([]string{"beancount", "dbPath"}, []string{"server", "redisUrl"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "beancount.dbPath")
	assert.Contains(t, err.Error(), "server.redisUrl")

	assert.NoError(t, cfg.Validate())
}
