package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		DryRun:               true,
		ScanInterval:         5 * time.Minute,
		MaxRotationsPerDay:   4,
		CooldownSeconds:      1800,
		MinHoldSeconds:       21600,
		DefaultTradeSizeUsd:  10000,
		RotationDeltaApyBps:  200,
		MaxPaybackHours:      72,
		MaxDepegDeviationBps: 100,
		MaxSlippageBps:       50,
		AprCliffMinDropBps:   5000,
		PriceTimeoutSeconds:  8,
		StableSymbols:        []string{"USDC", "USDT"},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateFailsFast(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero scan interval", func(c *Config) { c.ScanInterval = 0 }},
		{"zero rotation cap", func(c *Config) { c.MaxRotationsPerDay = 0 }},
		{"negative cooldown", func(c *Config) { c.CooldownSeconds = -1 }},
		{"zero trade size", func(c *Config) { c.DefaultTradeSizeUsd = 0 }},
		{"zero depeg threshold", func(c *Config) { c.MaxDepegDeviationBps = 0 }},
		{"zero payback cap", func(c *Config) { c.MaxPaybackHours = 0 }},
		{"no stable symbols", func(c *Config) { c.StableSymbols = nil }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateLiveModeRequirements(t *testing.T) {
	cfg := validConfig()
	cfg.DryRun = false
	cfg.LiveArmed = true

	require.Error(t, cfg.Validate(), "live mode without a vault address must fail at startup")

	cfg.VaultAddress = "0x5f95a453e8c59b327c27ef47ba45b4d9a78e1791"
	require.Error(t, cfg.Validate(), "live mode without an RPC endpoint must fail at startup")

	cfg.RPCURL = "https://rpc.example.org"
	assert.NoError(t, cfg.Validate())
}

func writePoolsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPools(t *testing.T) {
	t.Run("loads and indexes the catalog", func(t *testing.T) {
		path := writePoolsFile(t, `
pools:
  - id: aprio-usdc
    enabled: true
    token: usdc
    adapter_id: lending_v1
    reward_token: mon
    base_apy_bps: 420
  - id: nitro-usdt
    enabled: false
    token: USDT
    adapter_id: lending_v1
`)
		catalog, err := LoadPools(path)
		require.NoError(t, err)
		assert.Len(t, catalog.Pools, 2)
		assert.Len(t, catalog.Enabled(), 1)

		pool, ok := catalog.PoolByID["aprio-usdc"]
		require.True(t, ok)
		assert.Equal(t, "USDC", string(pool.Token), "symbols are normalized on load")
		assert.Equal(t, "MON", string(pool.RewardToken))
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		path := writePoolsFile(t, `
pools:
  - id: aprio-usdc
    token: USDC
    adapter_id: lending_v1
  - id: aprio-usdc
    token: USDC
    adapter_id: lending_v1
`)
		_, err := LoadPools(path)
		assert.ErrorContains(t, err, "duplicate")
	})

	t.Run("rejects missing adapter id", func(t *testing.T) {
		path := writePoolsFile(t, `
pools:
  - id: aprio-usdc
    token: USDC
`)
		_, err := LoadPools(path)
		assert.ErrorContains(t, err, "adapter_id")
	})

	t.Run("rejects empty catalog", func(t *testing.T) {
		path := writePoolsFile(t, `pools: []`)
		_, err := LoadPools(path)
		assert.Error(t, err)
	})
}
