package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, uint32(250), cfg.Directory.PageSize)
	assert.Equal(t, "Every 24 hours", cfg.Sync.BackgroundSyncInterval)
	assert.True(t, cfg.Sync.ImportNewUsers)
	assert.False(t, cfg.Sync.Enabled)
	assert.Nil(t, cfg.Kafka.BrokerList())
}

func TestLoadFromFile(t *testing.T) {
	path := writeEnvFile(t, `LDAP_SYNC_ENABLED=true
LDAP_URL=ldap://directory:389
LDAP_MERGE_EXISTING_USERS=true
LDAP_USERNAME_FIELD="#{givenName}.#{sn}"
KAFKA_BROKERS=broker-1:9092, broker-2:9092
REDIS_READ_TIMEOUT=750ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Sync.Enabled)
	assert.True(t, cfg.Sync.MergeExistingUsers)
	assert.Equal(t, "ldap://directory:389", cfg.Directory.URL)
	assert.Equal(t, "#{givenName}.#{sn}", cfg.Sync.UsernameField)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.BrokerList())
	assert.Equal(t, 750*time.Millisecond, cfg.Redis.ReadTimeout)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeEnvFile(t, "SERVER_ADDR=:9000\n")
	t.Setenv("SERVER_ADDR", ":9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Server.Addr)
}

func TestLoadValidation(t *testing.T) {
	tests := map[string]string{
		"sync without directory url":       "LDAP_SYNC_ENABLED=true\n",
		"unknown log format":               "LOG_FORMAT=xml\n",
		"background sync without interval": "LDAP_BACKGROUND_SYNC=true\nLDAP_BACKGROUND_SYNC_INTERVAL=\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeEnvFile(t, content))
			assert.Error(t, err)
		})
	}
}
