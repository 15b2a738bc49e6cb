package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  env: test
broker:
  simulated: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":9980", cfg.App.HTTPAddr)
	assert.Equal(t, 5, cfg.Broker.ProbeTimeoutSeconds)
	assert.Equal(t, 30, cfg.Broker.ProbeIntervalSeconds)
	assert.Equal(t, "data/ledger.db", cfg.Ledger.DBPath)
	assert.Equal(t, "data/fees_config.json", cfg.Fees.RulesPath)
	assert.Equal(t, "data/market.db", cfg.MarketData.DBPath)
	assert.Equal(t, 24, cfg.MarketData.SyncIntervalHours)
	assert.Equal(t, defaultSectors, cfg.Instrument.Sectors)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
app:
  log_level: debug
  http_addr: ":8100"
broker:
  account: "10001"
  terminal_path: /opt/terminal/bridge.sock
  probe_interval_seconds: 10
ledger:
  db_path: /tmp/l.db
marketdata:
  db_path: /tmp/m.db
instrument:
  sectors: ["SHSZ-A"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, ":8100", cfg.App.HTTPAddr)
	assert.Equal(t, "10001", cfg.Broker.Account)
	assert.Equal(t, 10, cfg.Broker.ProbeIntervalSeconds)
	assert.Equal(t, []string{"SHSZ-A"}, cfg.Instrument.Sectors)
}

func TestLoadRejectsSharedDatabaseFile(t *testing.T) {
	path := writeConfig(t, `
ledger:
  db_path: data/one.db
marketdata:
  db_path: data/one.db
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRequiresTerminalPathForRealAccount(t *testing.T) {
	path := writeConfig(t, `
broker:
  account: "10001"
`)
	_, err := Load(path)
	assert.Error(t, err)

	path = writeConfig(t, `
broker:
  account: "10001"
  simulated: true
`)
	_, err = Load(path)
	assert.NoError(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
	_, err = Load("")
	assert.Error(t, err)
}
