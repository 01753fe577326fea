package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.hubapi.com", cfg.HubSpot.BaseURL)
	assert.Empty(t, cfg.HubSpot.AccessToken)
	assert.InDelta(t, 9.0, cfg.HubSpot.RateLimitRPS, 0.001)
	assert.Equal(t, []string{"859017476", "859172223", "859283831"}, cfg.HubSpot.TargetPipelines)
	assert.Equal(t, 3, cfg.HubSpot.Retry.MaxRetries)
	assert.Equal(t, 1000, cfg.HubSpot.Retry.InitialBackoffMs)
	assert.InDelta(t, 2.0, cfg.HubSpot.Retry.Multiplier, 0.001)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, 300, cfg.Cache.DealsTTLSecs)
	assert.Equal(t, 3600, cfg.Cache.StagesTTLSecs)
	assert.Equal(t, 300, cfg.Cache.PipelinesTTLSecs)
	assert.Equal(t, 3600, cfg.Cache.OwnersTTLSecs)
	assert.Equal(t, "localhost:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "dealdesk.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 2000, cfg.Export.InitialDelayMs)
	assert.Equal(t, 3000, cfg.Export.IntervalMs)
	assert.Equal(t, 300, cfg.Export.TimeoutSecs)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
hubspot:
  access_token: pat-na1-abc
  target_pipelines: ["111", "222"]
  retry:
    max_retries: 5
cache:
  driver: redis
  redis:
    addr: redis:6379
store:
  driver: postgres
  database_url: postgres://localhost/dealdesk
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "pat-na1-abc", cfg.HubSpot.AccessToken)
	assert.Equal(t, []string{"111", "222"}, cfg.HubSpot.TargetPipelines)
	assert.Equal(t, 5, cfg.HubSpot.Retry.MaxRetries)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 1000, cfg.HubSpot.Retry.InitialBackoffMs)
	assert.Equal(t, 300, cfg.Export.TimeoutSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("DEALDESK_STORE_DRIVER", "postgres")
	t.Setenv("DEALDESK_LOG_LEVEL", "warn")
	t.Setenv("DEALDESK_HUBSPOT_ACCESS_TOKEN", "from-env")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "from-env", cfg.HubSpot.AccessToken)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("DEALDESK_SERVER_PORT", "3000")
	t.Setenv("DEALDESK_EXPORT_TIMEOUT_SECS", "60")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 60, cfg.Export.TimeoutSecs)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [port"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.HubSpot.AccessToken = "pat-token"
	cfg.HubSpot.Retry.MaxRetries = 3
	cfg.Cache.Driver = "memory"
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "dealdesk.db"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_AllPresent(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"api", "serve", "store"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidate_MissingToken(t *testing.T) {
	cfg := validDefaults()
	cfg.HubSpot.AccessToken = ""

	err := cfg.Validate("api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hubspot.access_token is required")

	// Ledger-only commands do not need a token.
	assert.NoError(t, cfg.Validate("store"))
}

func TestValidate_StoreDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidate_CacheDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Cache.Driver = "memcached"

	err := cfg.Validate("api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.driver")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
