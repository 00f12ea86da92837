/*

Types for the blue/green vault cutover readiness report. The report is an
ordered sequence of checks plus the raw snapshots it was derived from, and
is never mutated after generation.

*/

package types

import "time"

// CheckStatus is the outcome of one readiness check.
type CheckStatus string

const (
	CheckPass CheckStatus = "PASS"
	CheckWarn CheckStatus = "WARN"
	CheckFail CheckStatus = "FAIL"
)

// CheckRow is one line of the migration readiness checklist.
type CheckRow struct {
	ID     string      `json:"id"`
	Status CheckStatus `json:"status"`
	Detail string      `json:"detail"`
}

// VaultProbe is the raw snapshot of one deployed vault taken by the monitor.
type VaultProbe struct {
	Address          string             `json:"address"`
	StableBalance    float64            `json:"stable_balance"`
	LPBalances       map[PoolID]float64 `json:"lp_balances"`
	HasLpExposure    bool               `json:"has_lp_exposure"`
	SupportsUserFlow bool               `json:"supports_user_flow"`
	DepositToken     string             `json:"deposit_token,omitempty"`
	TotalUserShares  float64            `json:"total_user_shares,omitempty"`
	ProbeError       string             `json:"probe_error,omitempty"`
}

// ServiceProbe is the raw snapshot of one running bot instance.
type ServiceProbe struct {
	URL        string `json:"url,omitempty"`
	Configured bool   `json:"configured"`
	Reachable  bool   `json:"reachable"`
	StatusCode int    `json:"status_code,omitempty"`
	Healthy    bool   `json:"healthy"`
	Ready      bool   `json:"ready"`
	Reason     string `json:"reason,omitempty"`
	Snapshots  int    `json:"snapshots"`
	Decisions  int    `json:"decisions"`
}

// MigrationReport is the full structured output of one monitor run.
type MigrationReport struct {
	GeneratedAt time.Time    `json:"generatedAt"`
	ChainID     int64        `json:"chainId"`
	RPCURL      string       `json:"rpcUrl"`
	OldVault    VaultProbe   `json:"oldVault"`
	NewVault    VaultProbe   `json:"newVault"`
	OldService  ServiceProbe `json:"oldService"`
	NewService  ServiceProbe `json:"newService"`
	Checks      []CheckRow   `json:"checks"`
}

// Failed reports whether any check is FAIL. WARNs never fail the run.
func (r *MigrationReport) Failed() bool {
	for _, c := range r.Checks {
		if c.Status == CheckFail {
			return true
		}
	}
	return false
}
