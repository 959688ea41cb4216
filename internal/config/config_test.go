package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
cycle:
  budget: 0.01
  pairs: [BTC_ETH]
  algorithm: TSF
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "poloniex", cfg.Exchange.Name)
	assert.Equal(t, 500*time.Millisecond, cfg.Exchange.Retry.MinDelay)
	assert.True(t, cfg.Execution.Simulation)
	assert.Equal(t, 0.0001, cfg.Execution.MinNotional)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.LoopInterval)
	assert.Equal(t, []string{"stdout"}, cfg.Logging.OutputPaths)
	assert.Equal(t, 0.01, cfg.Cycle["budget"])
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TRADER_EXECUTION_SIMULATION", "false")
	t.Setenv("TRADER_MONITOR_PORT", "9100")

	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	assert.False(t, cfg.Execution.Simulation)
	assert.Equal(t, 9100, cfg.Monitor.Port)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	_, err := Load(writeConfig(t, "exchange:\n  name: binance\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchange.name")
	assert.Contains(t, err.Error(), "cycle")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
