package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("VESTING_ENV_PATH", t.TempDir())
	t.Setenv("VESTING_CONFIG_PATH", "")
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "http", cfg.Transport.Mode)
	require.Equal(t, uint16(36), cfg.Vesting.DefaultMonths)
	require.Equal(t, 5*time.Minute, cfg.Auth.MaxSkew)
}

func TestLoad_FileThenEnv(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
db:
  path: /tmp/v.db
auth:
  max_skew: 30s
vesting:
  default_months: 24
  beneficiary_deposit: 1500
`), 0o644))

	t.Setenv("VESTING_CONFIG_PATH", path)
	t.Setenv("VESTING_DB_PATH", "/tmp/override.db")
	t.Setenv("VESTING_TRANSPORT_MODE", "stdio")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "/tmp/override.db", cfg.DB.Path)
	require.Equal(t, "stdio", cfg.Transport.Mode)
	require.Equal(t, 30*time.Second, cfg.Auth.MaxSkew)
	require.Equal(t, uint16(24), cfg.Vesting.DefaultMonths)
	require.Equal(t, uint64(1500), cfg.Vesting.BeneficiaryDeposit)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("VESTING_LOG_LEVEL=debug\n"), 0o644))
	t.Setenv("VESTING_ENV_PATH", dir)
	t.Setenv("VESTING_CONFIG_PATH", "")
	// Register for cleanup; godotenv sets the variable directly.
	t.Setenv("VESTING_LOG_LEVEL", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidValues(t *testing.T) {
	isolate(t)
	t.Setenv("VESTING_SERVER_PORT", "abc")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("VESTING_SERVER_PORT", "")
	t.Setenv("VESTING_TRANSPORT_MODE", "carrier-pigeon")
	_, err = Load()
	require.Error(t, err)
}
