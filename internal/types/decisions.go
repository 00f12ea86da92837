package types

import "time"

// Action is the single outcome of one decision tick.
type Action string

const (
	ActionHold   Action = "HOLD"
	ActionEnter  Action = "ENTER"
	ActionExit   Action = "EXIT"
	ActionRotate Action = "ROTATE"
)

// Position is the engine's one logical position: the pool currently held
// and when it was entered. A nil *Position means unpositioned.
type Position struct {
	PoolID    PoolID    `json:"pool_id"`
	EnteredAt time.Time `json:"entered_at"`
}

// Decision is the journaled record of one tick's outcome.
type Decision struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	Action      Action        `json:"action"`
	FromPool    PoolID        `json:"from_pool,omitempty"`
	ToPool      PoolID        `json:"to_pool,omitempty"`
	Reason      string        `json:"reason"`
	Guard       GuardResult   `json:"guard,omitempty"`
	HeldNetApyBps      int64  `json:"held_net_apy_bps"`
	CandidateNetApyBps int64  `json:"candidate_net_apy_bps"`
	PaybackHours       float64 `json:"payback_hours,omitempty"`
	DryRun      bool          `json:"dry_run"`
	Executed    bool          `json:"executed"`
}
