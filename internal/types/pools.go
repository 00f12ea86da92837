/*

Static and point-in-time views of yield venues. PoolConfig is the immutable
catalog entry loaded at startup; PoolOnChainState and PoolSnapshot are
rebuilt fresh on every decision tick.

*/

package types

import "strings"

// TokenSymbol is an uppercase ticker used as the pricing key (e.g. "USDC").
type TokenSymbol string

// NormalizeSymbol trims and upper-cases a raw ticker into the canonical
// cache/lookup key form.
func NormalizeSymbol(raw string) TokenSymbol {
	return TokenSymbol(strings.ToUpper(strings.TrimSpace(raw)))
}

// PoolID uniquely identifies a configured venue within one catalog load.
type PoolID string

// PoolConfig is the static description of a yield venue. Immutable after
// load; one instance per configured venue.
type PoolConfig struct {
	ID       PoolID `yaml:"id" json:"id"`
	Protocol string `yaml:"protocol" json:"protocol"`
	Pair     string `yaml:"pair" json:"pair"`
	Tier     string `yaml:"tier" json:"tier"`
	Enabled  bool   `yaml:"enabled" json:"enabled"`

	Token         TokenSymbol `yaml:"token" json:"token"`
	TokenDecimals int32       `yaml:"token_decimals" json:"token_decimals"`
	AdapterID     string      `yaml:"adapter_id" json:"adapter_id"`
	Target      string      `yaml:"target" json:"target"`        // venue/adapter contract
	PoolAddress string      `yaml:"pool_address" json:"pool_address"`
	LPToken     string      `yaml:"lp_token" json:"lp_token"` // receipt token

	BaseApyBps        int64   `yaml:"base_apy_bps" json:"base_apy_bps"`
	RewardRatePerSec  float64 `yaml:"reward_rate_per_sec" json:"reward_rate_per_sec"`
	RewardToken       TokenSymbol `yaml:"reward_token" json:"reward_token"`
	ProtocolFeeBps    int64   `yaml:"protocol_fee_bps" json:"protocol_fee_bps"`
	RotationCostBps   int64   `yaml:"rotation_cost_bps" json:"rotation_cost_bps"`
}

// PoolOnChainState is a point-in-time read of a venue, produced fresh by an
// adapter each tick. Never persisted.
type PoolOnChainState struct {
	PoolID      PoolID  `json:"pool_id"`
	TvlUsd      float64 `json:"tvl_usd"`
	ReserveUsd  float64 `json:"reserve_usd"` // liquid reserve available for exits
	LiquidityUsd float64 `json:"liquidity_usd"`
}

// PoolSnapshot combines a pool's config and fresh on-chain state with the
// derived yield figures for a candidate trade size. Held in memory for the
// current tick plus the immediately preceding one (APR-cliff baseline).
type PoolSnapshot struct {
	Config          PoolConfig       `json:"config"`
	State           PoolOnChainState `json:"state"`
	IncentiveAprBps int64            `json:"incentive_apr_bps"`
	NetApyBps       int64            `json:"net_apy_bps"`
	SlippageBps     int64            `json:"slippage_bps"`
}
