/*

Pure yield arithmetic. Everything here is deterministic over its inputs and
safe to call with degenerate values (zero TVL, zero delta) without panicking.

*/

package yieldmath

import "math"

const (
	secondsPerYear = 365 * 24 * 3600
	hoursPerYear   = 24 * 365
)

// IncentiveAprBps annualizes a pool's reward emissions against its TVL and
// expresses the result in basis points, rounded to the nearest integer.
// A TVL of zero or less yields 0: no division by zero, no exception.
func IncentiveAprBps(rewardRatePerSecond, rewardPriceUsd, tvlUsd float64) int64 {
	if tvlUsd <= 0 {
		return 0
	}
	annualRewardUsd := rewardRatePerSecond * rewardPriceUsd * secondsPerYear
	aprBps := annualRewardUsd / tvlUsd * 10000
	if aprBps <= 0 || math.IsNaN(aprBps) || math.IsInf(aprBps, 0) {
		return 0
	}
	return int64(math.Round(aprBps))
}

// NetApyBps is base yield plus incentive yield minus protocol fee, floored
// at zero. A pool can never have negative net APY by construction.
func NetApyBps(baseApyBps, incentiveAprBps, protocolFeeBps int64) int64 {
	net := baseApyBps + incentiveAprBps - protocolFeeBps
	if net < 0 {
		return 0
	}
	return net
}

// PaybackHours is the time needed for the incremental APY of a rotation to
// recoup its cost. A non-positive delta can never be recouped and returns
// +Inf.
func PaybackHours(costBps, deltaApyBps int64) float64 {
	if deltaApyBps <= 0 {
		return math.Inf(1)
	}
	return float64(costBps) / float64(deltaApyBps) * hoursPerYear
}
