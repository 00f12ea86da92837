package adapters

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stablerotor/rotor/internal/types"
)

func testPool() types.PoolConfig {
	return types.PoolConfig{
		ID:            "aprio-usdc",
		Protocol:      "Aprio",
		Enabled:       true,
		Token:         "USDC",
		TokenDecimals: 6,
		AdapterID:     "lending_v1",
		Target:        "0x5f95a453e8c59b327c27ef47ba45b4d9a78e1791",
		PoolAddress:   "0x9a3d8c12de41e8ee66f3f0e9bf6fca2ab5d3c001",
		LPToken:       "0x41c0b1a2f6e4785b6c1d9e9d0ac5132a7f20d88e",
	}
}

func testIntent(amount float64) types.RequestIntent {
	return types.RequestIntent{
		Pool:           testPool(),
		Amount:         decimal.NewFromFloat(amount),
		MaxSlippageBps: 50,
		Deadline:       time.Now().Add(5 * time.Minute),
	}
}

func TestRegistryForPool(t *testing.T) {
	registry := NewRegistry(nil)

	t.Run("known adapter resolves", func(t *testing.T) {
		adapter, err := registry.ForPool(testPool())
		require.NoError(t, err)
		_, isDisabled := adapter.(disabledAdapter)
		assert.False(t, isDisabled)
	})

	t.Run("unknown adapter id is a hard failure", func(t *testing.T) {
		pool := testPool()
		pool.AdapterID = "perp_v9"
		_, err := registry.ForPool(pool)
		require.ErrorIs(t, err, ErrUnknownAdapter)
	})

	t.Run("disabled pool resolves to failing adapter", func(t *testing.T) {
		pool := testPool()
		pool.Enabled = false
		adapter, err := registry.ForPool(pool)
		require.NoError(t, err)

		_, err = adapter.FetchPoolState(context.Background(), pool)
		assert.ErrorIs(t, err, ErrAdapterDisabled)
		_, err = adapter.BuildEnterRequest(testIntent(100))
		assert.ErrorIs(t, err, ErrAdapterDisabled)
		_, err = adapter.BuildExitRequest(testIntent(100))
		assert.ErrorIs(t, err, ErrAdapterDisabled)
	})
}

func TestEstimatePriceImpactBps(t *testing.T) {
	adapter := newLendingAdapter(nil)

	t.Run("drained reserve reports full impact", func(t *testing.T) {
		state := types.PoolOnChainState{LiquidityUsd: 0}
		assert.Equal(t, int64(10000), adapter.EstimatePriceImpactBps(state, 10000))
	})

	t.Run("deep liquidity reports low impact", func(t *testing.T) {
		state := types.PoolOnChainState{LiquidityUsd: 9_990_000}
		// 10000 / (9990000 + 10000) * 10000 = 10 bps
		assert.Equal(t, int64(10), adapter.EstimatePriceImpactBps(state, 10000))
	})

	t.Run("zero trade size has no impact", func(t *testing.T) {
		state := types.PoolOnChainState{LiquidityUsd: 100}
		assert.Equal(t, int64(0), adapter.EstimatePriceImpactBps(state, 0))
	})
}

func TestEstimateRotationCostBps(t *testing.T) {
	adapter := newLendingAdapter(nil)
	pool := testPool()
	pool.RotationCostBps = 12

	state := types.PoolOnChainState{LiquidityUsd: 9_990_000}
	assert.Equal(t, int64(22), adapter.EstimateRotationCostBps(pool, state, 10000))
}

func TestBuildEnterRequest(t *testing.T) {
	adapter := newLendingAdapter(nil)

	t.Run("encodes deposit call data", func(t *testing.T) {
		req, err := adapter.BuildEnterRequest(testIntent(100))
		require.NoError(t, err)

		assert.Equal(t, types.PoolID("aprio-usdc"), req.PoolID)
		assert.Equal(t, testPool().Target, req.Target)

		// selector + 32-byte word holding 100 * 10^6
		require.Len(t, req.CallData, 36)
		assert.Equal(t, "b6b55f25", hex.EncodeToString(req.CallData[:4]))
		assert.Equal(t,
			"0000000000000000000000000000000000000000000000000000000005f5e100",
			hex.EncodeToString(req.CallData[4:]))

		// 50 bps slippage bound on 100 units
		assert.True(t, req.MinOut.Equal(decimal.RequireFromString("99.5")), "got %s", req.MinOut)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := adapter.BuildEnterRequest(testIntent(0))
		require.Error(t, err)
	})

	t.Run("rejects elapsed deadline", func(t *testing.T) {
		intent := testIntent(100)
		intent.Deadline = time.Now().Add(-time.Minute)
		_, err := adapter.BuildEnterRequest(intent)
		require.Error(t, err)
	})
}

func TestBuildExitRequest(t *testing.T) {
	adapter := newLendingAdapter(nil)

	req, err := adapter.BuildExitRequest(testIntent(250))
	require.NoError(t, err)
	require.Len(t, req.CallData, 36)
	assert.Equal(t, "2e1a7d4d", hex.EncodeToString(req.CallData[:4]))
	assert.True(t, req.Amount.Equal(decimal.NewFromInt(250)))
}
