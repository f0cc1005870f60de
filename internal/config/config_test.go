package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultConfig(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "eidos-typeddata", cfg.Service.Name)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Redis.Enabled)
	assert.True(t, cfg.EIP712.MockMode)
	assert.Equal(t, int64(31337), cfg.EIP712.Domain.ChainID)
	assert.Equal(t, int64(3600), cfg.EIP712.LoginMaxAgeSec)
	assert.Equal(t, 10*time.Minute, cfg.Resolver.CacheTTL)
}

func TestLoad_FromFile(t *testing.T) {
	t.Setenv("TYPEDHASH_TEST_CONTRACT", "0x5FbDB2315678afecb367f032d93F642f64180aa3")

	content := `
service:
  name: typedhash-test
  env: test
log:
  level: debug
  format: console
redis:
  enabled: true
  host: redis.internal
  port: 6380
eip712:
  domain:
    name: EidosExchange
    version: "2"
    chain_id: 1
    verifying_contract: ${TYPEDHASH_TEST_CONTRACT}
  mock_mode: false
  login_max_age_sec: 600
resolver:
  cache_ttl: 30s
  address_book:
    treasury.eidos.eth: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "typedhash-test", cfg.Service.Name)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr())
	assert.Equal(t, "2", cfg.EIP712.Domain.Version)
	assert.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", cfg.EIP712.Domain.VerifyingContract)
	assert.False(t, cfg.EIP712.MockMode)
	assert.Equal(t, int64(600), cfg.EIP712.LoginMaxAgeSec)
	// untouched defaults survive
	assert.Equal(t, "typeddata:name:", cfg.Resolver.KeyPrefix)
	assert.Equal(t, 30*time.Second, cfg.Resolver.CacheTTL)
	assert.Equal(t, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", cfg.Resolver.AddressBook["treasury.eidos.eth"])
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EIP712_MOCK_MODE", "false")
	t.Setenv("EIP712_CHAIN_ID", "10")
	t.Setenv("REDIS_PORT", "7000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.False(t, cfg.EIP712.MockMode)
	assert.Equal(t, int64(10), cfg.EIP712.Domain.ChainID)
	assert.Equal(t, 7000, cfg.Redis.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("service: [unclosed"), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("invalid contract", func(t *testing.T) {
		t.Setenv("EIP712_VERIFYING_CONTRACT", "0x1234")
		_, err := Load("")
		assert.Error(t, err)
	})
}

func TestConfig_Validate(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Redis.Enabled = true
	cfg.Resolver.CacheTTL = 0
	assert.Error(t, cfg.Validate())
}
