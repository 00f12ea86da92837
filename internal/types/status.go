package types

// BotState is the status document served on /state and polled by the
// migration monitor.
type BotState struct {
	Healthy bool   `json:"healthy"`
	Ready   bool   `json:"ready"`
	Reason  string `json:"reason,omitempty"`
	State   struct {
		Snapshots int `json:"snapshots"`
		Decisions int `json:"decisions"`
		Tweets    int `json:"tweets"`
	} `json:"state"`
	Runtime map[string]interface{} `json:"runtime,omitempty"`
}
