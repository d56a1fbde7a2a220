package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
binance:
  testnet: true
trading:
  symbols:
    - "BTCUSDT"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.True(t, cfg.Binance.Testnet)
	assert.Equal(t, []string{"BTCUSDT"}, cfg.Trading.Symbols)
	assert.Equal(t, 15, cfg.Trading.IntervalMinutes)
	assert.Equal(t, 200, cfg.Trading.CandleLimit)
	assert.Equal(t, 300, cfg.Trading.AnalysisIntervalSeconds)
	assert.Equal(t, 3, cfg.Strategy.ConfirmationCandles)
	assert.Equal(t, 20, cfg.Strategy.SupportResistancePeriod)
	assert.Equal(t, 10000.0, cfg.Demo.Balance)
	assert.Equal(t, 2.0, cfg.Demo.RiskPercent)
	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, 1000, cfg.UI.RefreshRate)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
trading:
  interval_minutes: 60
  analysis_interval_seconds: 30
strategy:
  confirmation_candles: 5
demo:
  balance: 50000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Trading.IntervalMinutes)
	assert.Equal(t, 30, cfg.Trading.AnalysisIntervalSeconds)
	assert.Equal(t, 5, cfg.Strategy.ConfirmationCandles)
	assert.Equal(t, 50000.0, cfg.Demo.Balance)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trading: [broken"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
