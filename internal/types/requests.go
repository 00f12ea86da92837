/*

Adapter-built call payloads handed to the external execution layer. The
engine only constructs these; it never broadcasts or verifies settlement.

*/

package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// VaultEnterRequest describes an enter (deposit) call shape for one venue.
type VaultEnterRequest struct {
	PoolID      PoolID          `json:"pool_id"`
	Target      string          `json:"target"`
	PoolAddress string          `json:"pool_address"`
	Token       TokenSymbol     `json:"token"`
	LPToken     string          `json:"lp_token"`
	Amount      decimal.Decimal `json:"amount"`
	MinOut      decimal.Decimal `json:"min_out"`
	Deadline    time.Time       `json:"deadline"`
	CallData    []byte          `json:"call_data"`

	// Decision context carried for journaling, not for execution.
	NetApyBps    int64         `json:"net_apy_bps"`
	IntendedHold time.Duration `json:"intended_hold"`
}

// VaultExitRequest describes an exit (withdraw) call shape for one venue.
type VaultExitRequest struct {
	PoolID      PoolID          `json:"pool_id"`
	Target      string          `json:"target"`
	PoolAddress string          `json:"pool_address"`
	Token       TokenSymbol     `json:"token"`
	LPToken     string          `json:"lp_token"`
	Amount      decimal.Decimal `json:"amount"`
	MinOut      decimal.Decimal `json:"min_out"`
	Deadline    time.Time       `json:"deadline"`
	CallData    []byte          `json:"call_data"`
}

// RequestIntent is the pure input an adapter transforms into a call payload.
type RequestIntent struct {
	Pool         PoolConfig
	Amount       decimal.Decimal
	MaxSlippageBps int64
	Deadline     time.Time
	NetApyBps    int64
	IntendedHold time.Duration
}
