package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WHALEFLOW_STORAGE_USE_MEMORY", "true")

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, 24, cfg.Backtest.WindowHours)
	assert.Equal(t, 100.0, cfg.Backtest.Notional)
	assert.Equal(t, 10.0, cfg.Backtest.TakerFeeBps)
	assert.Equal(t, 5.0, cfg.Backtest.SlippageBps)
	assert.Equal(t, 60*time.Second, cfg.Backtest.Deadline)
	assert.Equal(t, 1200*time.Millisecond, cfg.Price.CallDelay)
	assert.Less(t, cfg.Price.CallDelay*time.Duration(cfg.Backtest.AutoDetectLimit), cfg.Backtest.Deadline,
		"a full auto-detected run must fit the deadline on spacing alone")
	assert.Equal(t, 30, cfg.Backtest.AutoDetectLimit)
	assert.Equal(t, 1.27, cfg.FX.FallbackRate)
	assert.Equal(t, 15*time.Minute, cfg.Composite.Interval)
	assert.Equal(t, "provider", cfg.Price.Source)
	assert.True(t, cfg.Storage.UseMemory)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WHALEFLOW_STORAGE_USE_MEMORY", "true")
	t.Setenv("WHALEFLOW_BACKTEST_WINDOW_HOURS", "168")
	t.Setenv("WHALEFLOW_PRICE_CALL_DELAY", "500ms")

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, 168, cfg.Backtest.WindowHours)
	assert.Equal(t, 500*time.Millisecond, cfg.Price.CallDelay)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whaleflow.yaml")
	content := `
postgres:
  dsn: postgres://u:p@localhost:5432/whales
backtest:
  notional: 250
composite:
  tokens: [BTC, ETH]
price:
  symbols:
    PEPE: pepe
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@localhost:5432/whales", cfg.Postgres.DSN)
	assert.Equal(t, 250.0, cfg.Backtest.Notional)
	assert.Equal(t, []string{"BTC", "ETH"}, cfg.Composite.Tokens)
	assert.Equal(t, "pepe", cfg.Price.Symbols["pepe"])
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("WHALEFLOW_STORAGE_USE_MEMORY", "true")
	t.Setenv("WHALEFLOW_BACKTEST_WINDOW_HOURS", "0")

	_, err := Load(New(), "")
	assert.Error(t, err)
}

func TestLoad_RequiresPostgresWithoutMemory(t *testing.T) {
	_, err := Load(New(), "")
	assert.Error(t, err)
}

func TestLoad_RejectsCallDelayBeyondDeadline(t *testing.T) {
	t.Setenv("WHALEFLOW_STORAGE_USE_MEMORY", "true")
	t.Setenv("WHALEFLOW_PRICE_CALL_DELAY", "2s")
	t.Setenv("WHALEFLOW_BACKTEST_AUTO_DETECT_LIMIT", "31")
	t.Setenv("WHALEFLOW_BACKTEST_DEADLINE", "60s")

	_, err := Load(New(), "")
	assert.ErrorContains(t, err, "backtest.deadline")
}
