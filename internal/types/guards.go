package types

// GuardReason is a fixed code identifying which circuit-breaker fired.
// Never free text.
type GuardReason string

const (
	GuardReasonNone       GuardReason = ""
	GuardReasonDepeg      GuardReason = "depeg"
	GuardReasonNoPriceData GuardReason = "no_price_data"
	GuardReasonSlippage   GuardReason = "slippage"
	GuardReasonAprCliff   GuardReason = "apr_cliff"
)

// GuardResult is the atomic output of every guard evaluator. A triggered
// result always carries a non-empty reason.
type GuardResult struct {
	Triggered bool        `json:"triggered"`
	Reason    GuardReason `json:"reason,omitempty"`
	Details   string      `json:"details,omitempty"`
}

// GuardOK is the untriggered result shared by all evaluators.
var GuardOK = GuardResult{}
