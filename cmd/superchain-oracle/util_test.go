package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/InjectiveLabs/metrics"
	log "github.com/InjectiveLabs/suplog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadNetworksConfigDefaults(t *testing.T) {
	cfg, err := loadNetworksConfig("")
	require.NoError(t, err)
	assert.Contains(t, cfg.Networks, "sepolia")
	assert.Contains(t, cfg.Networks, "optimismSepolia")
}

func TestLoadNetworksConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
assets = ["ethereum"]

[networks.local]
rpc = "http://localhost:8545"
contract = "0x9a6C16DbB82a5158Db462b2F48e887B8ae1Dfc07"
`), 0o600))

	cfg, err := loadNetworksConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ethereum"}, cfg.Assets)
	assert.Equal(t, "http://localhost:8545", cfg.Networks["local"].RPC)

	_, err = loadNetworksConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestOptionParsers(t *testing.T) {
	assert.True(t, toBool("TRUE"))
	assert.True(t, toBool("1"))
	assert.False(t, toBool("off"))

	assert.Equal(t, 90*time.Second, duration("90s", time.Minute))
	assert.Equal(t, time.Minute, duration("soon", time.Minute))

	assert.Equal(t, "oracle.", checkStatsdPrefix("oracle"))
	assert.Equal(t, "oracle.", checkStatsdPrefix("oracle."))

	assert.Equal(t, log.DebugLevel, logLevel("debug"))
	assert.Equal(t, log.WarnLevel, logLevel("2"))
	assert.Equal(t, log.FatalLevel, logLevel("verbose"))
}

func TestStatterConfig(t *testing.T) {
	cfg := statterConfig("prod", metrics.TelegrafAgent, "1m", "false")
	assert.Equal(t, metrics.TelegrafAgent, cfg.Agent)
	assert.Equal(t, "prod", cfg.EnvName)
	assert.Equal(t, time.Minute, cfg.StuckFunctionTimeout)
	assert.False(t, cfg.MockingEnabled)

	// a real statsd client over UDP needs no listener to init
	require.NoError(t, metrics.Init("127.0.0.1:8125", checkStatsdPrefix("oracle_test"), cfg))
	metrics.Close()

	assert.True(t, statterConfig("local", metrics.DatadogAgent, "", "false").MockingEnabled)
}

func TestStartMetricsGatheringDisabled(t *testing.T) {
	prefix, addr, agent := "oracle", "127.0.0.1:8125", metrics.TelegrafAgent
	stuck, mocking, disabled := "5m", "false", "true"

	assert.NotPanics(t, func() {
		startMetricsGathering(&prefix, &addr, &agent, &stuck, &mocking, &disabled)
	})
}
