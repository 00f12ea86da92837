/*

Risk circuit-breakers. Each evaluator is pure over its inputs: no I/O, no
hidden state, always a fully-populated GuardResult. A triggered result is a
first-class decision outcome, not an error.

*/

package guards

import (
	"fmt"
	"math"

	"github.com/stablerotor/rotor/internal/types"
)

// CheckDepeg measures each stable symbol's deviation from the $1 peg in bps
// and triggers when any symbol exceeds maxDeviationBps. An empty price map
// is treated as worst case, not as "no data".
func CheckDepeg(stablePrices map[types.TokenSymbol]float64, maxDeviationBps int64) types.GuardResult {
	if len(stablePrices) == 0 {
		return types.GuardResult{
			Triggered: true,
			Reason:    types.GuardReasonNoPriceData,
			Details:   "no stable prices available",
		}
	}

	for symbol, price := range stablePrices {
		deviationBps := math.Abs(price-1.0) * 10000
		if int64(deviationBps) > maxDeviationBps {
			return types.GuardResult{
				Triggered: true,
				Reason:    types.GuardReasonDepeg,
				Details:   fmt.Sprintf("%s deviates %.0f bps from peg (max %d)", symbol, deviationBps, maxDeviationBps),
			}
		}
	}
	return types.GuardOK
}

// CheckSlippage triggers when a snapshot's estimated price impact for the
// intended trade size exceeds maxSlippageBps.
func CheckSlippage(snap types.PoolSnapshot, maxSlippageBps int64) types.GuardResult {
	if snap.SlippageBps > maxSlippageBps {
		return types.GuardResult{
			Triggered: true,
			Reason:    types.GuardReasonSlippage,
			Details:   fmt.Sprintf("pool %s slippage %d bps exceeds max %d", snap.Config.ID, snap.SlippageBps, maxSlippageBps),
		}
	}
	return types.GuardOK
}

// CheckAprCliff compares a pool's current incentive APR against its previous
// tick. A zero or missing baseline means insufficient history: the guard
// does not trigger, which is not the same as "safe".
func CheckAprCliff(history *History, snap types.PoolSnapshot, minDropBps int64) types.GuardResult {
	prev, ok := history.Previous(snap.Config.ID)
	if !ok || prev.IncentiveAprBps <= 0 {
		return types.GuardOK
	}

	drop := prev.IncentiveAprBps - snap.IncentiveAprBps
	if drop <= 0 {
		return types.GuardOK
	}
	dropFractionBps := int64(float64(drop) / float64(prev.IncentiveAprBps) * 10000)
	if dropFractionBps > minDropBps {
		return types.GuardResult{
			Triggered: true,
			Reason:    types.GuardReasonAprCliff,
			Details: fmt.Sprintf("pool %s incentive APR dropped %d bps of baseline (%d -> %d, min drop %d)",
				snap.Config.ID, dropFractionBps, prev.IncentiveAprBps, snap.IncentiveAprBps, minDropBps),
		}
	}
	return types.GuardOK
}
