/*

Reference adapter for single-sided stable lending vaults (ERC4626-shaped).
The deposit token is the stable asset itself, so on-chain asset amounts map
one-to-one onto USD for TVL and slippage estimation.

*/

package adapters

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/stablerotor/rotor/internal/chain"
	"github.com/stablerotor/rotor/internal/logger"
	"github.com/stablerotor/rotor/internal/types"
)

// Precomputed selectors for the venue's enter/exit entry points.
const (
	selDeposit  = "0xb6b55f25" // deposit(uint256)
	selWithdraw = "0x2e1a7d4d" // withdraw(uint256)
)

type lendingAdapter struct {
	logger zerolog.Logger
	client *chain.Client
}

func newLendingAdapter(client *chain.Client) *lendingAdapter {
	return &lendingAdapter{
		logger: logger.GetForComponent("lending_adapter"),
		client: client,
	}
}

// FetchPoolState reads the venue's TVL and liquid reserve. The reserve is
// the stable balance sitting in the pool contract, i.e. what an exit can
// draw on without utilization pressure.
func (a *lendingAdapter) FetchPoolState(ctx context.Context, pool types.PoolConfig) (types.PoolOnChainState, error) {
	totalAssets, err := a.client.TotalAssets(ctx, pool.PoolAddress, pool.TokenDecimals)
	if err != nil {
		return types.PoolOnChainState{}, fmt.Errorf("failed to read pool %s state: %w", pool.ID, err)
	}

	reserve, err := a.client.TokenBalance(ctx, pool.Target, pool.PoolAddress)
	if err != nil {
		return types.PoolOnChainState{}, fmt.Errorf("failed to read pool %s reserve: %w", pool.ID, err)
	}

	tvl, _ := totalAssets.Float64()
	reserveUsd, _ := reserve.Float64()
	if tvl < 0 || math.IsNaN(tvl) || math.IsInf(tvl, 0) {
		return types.PoolOnChainState{}, fmt.Errorf("pool %s returned invalid TVL %f", pool.ID, tvl)
	}

	return types.PoolOnChainState{
		PoolID:       pool.ID,
		TvlUsd:       tvl,
		ReserveUsd:   reserveUsd,
		LiquidityUsd: reserveUsd,
	}, nil
}

// EstimatePriceImpactBps models exit pressure against the liquid reserve:
// the share of the reserve a trade consumes, in bps. A drained reserve is
// reported as full impact so the slippage guard trips.
func (a *lendingAdapter) EstimatePriceImpactBps(state types.PoolOnChainState, tradeSizeUsd float64) int64 {
	if tradeSizeUsd <= 0 {
		return 0
	}
	if state.LiquidityUsd <= 0 {
		return 10000
	}
	impact := tradeSizeUsd / (state.LiquidityUsd + tradeSizeUsd) * 10000
	if impact > 10000 {
		impact = 10000
	}
	return int64(math.Round(impact))
}

// EstimateRotationCostBps is the configured exit cost plus the estimated
// price impact of pulling the trade size out of this venue.
func (a *lendingAdapter) EstimateRotationCostBps(pool types.PoolConfig, state types.PoolOnChainState, tradeSizeUsd float64) int64 {
	return pool.RotationCostBps + a.EstimatePriceImpactBps(state, tradeSizeUsd)
}

// BuildEnterRequest constructs the deposit call shape. Pure: no I/O, no
// global state.
func (a *lendingAdapter) BuildEnterRequest(intent types.RequestIntent) (types.VaultEnterRequest, error) {
	callData, minOut, err := buildAmountCall(selDeposit, intent)
	if err != nil {
		return types.VaultEnterRequest{}, err
	}
	return types.VaultEnterRequest{
		PoolID:       intent.Pool.ID,
		Target:       intent.Pool.Target,
		PoolAddress:  intent.Pool.PoolAddress,
		Token:        intent.Pool.Token,
		LPToken:      intent.Pool.LPToken,
		Amount:       intent.Amount,
		MinOut:       minOut,
		Deadline:     intent.Deadline,
		CallData:     callData,
		NetApyBps:    intent.NetApyBps,
		IntendedHold: intent.IntendedHold,
	}, nil
}

// BuildExitRequest constructs the withdraw call shape. Pure.
func (a *lendingAdapter) BuildExitRequest(intent types.RequestIntent) (types.VaultExitRequest, error) {
	callData, minOut, err := buildAmountCall(selWithdraw, intent)
	if err != nil {
		return types.VaultExitRequest{}, err
	}
	return types.VaultExitRequest{
		PoolID:      intent.Pool.ID,
		Target:      intent.Pool.Target,
		PoolAddress: intent.Pool.PoolAddress,
		Token:       intent.Pool.Token,
		LPToken:     intent.Pool.LPToken,
		Amount:      intent.Amount,
		MinOut:      minOut,
		Deadline:    intent.Deadline,
		CallData:    callData,
	}, nil
}

// buildAmountCall encodes selector+uint256(amount in raw units) and derives
// the slippage-bounded minimum out.
func buildAmountCall(selector string, intent types.RequestIntent) ([]byte, decimal.Decimal, error) {
	if intent.Amount.Sign() <= 0 {
		return nil, decimal.Zero, fmt.Errorf("enter/exit amount must be positive, got %s", intent.Amount)
	}
	if intent.Deadline.Before(time.Now()) {
		return nil, decimal.Zero, fmt.Errorf("deadline %s already elapsed", intent.Deadline)
	}

	rawAmount := intent.Amount.Shift(intent.Pool.TokenDecimals).Truncate(0)
	encoded, err := encodeUint256Call(selector, rawAmount)
	if err != nil {
		return nil, decimal.Zero, err
	}

	slippage := decimal.NewFromInt(intent.MaxSlippageBps).Div(decimal.NewFromInt(10000))
	minOut := intent.Amount.Mul(decimal.NewFromInt(1).Sub(slippage))

	return encoded, minOut, nil
}
