package types

// StatusResponse is served by GET /v1/status.
type StatusResponse struct {
	OK             bool    `json:"ok"`
	MachineID      string  `json:"machine_id"`
	Group          string  `json:"machine_group"`
	State          string  `json:"state"`
	Since          string  `json:"since"`
	Outputs        Outputs `json:"outputs"`
	RequireCard    bool    `json:"require_card"`
	Ticks          uint64  `json:"ticks"`
	JournalDropped uint64  `json:"journal_dropped"`
	ServerTime     string  `json:"server_time"`
}

// EventView is one journal row as served by GET /v1/events.
type EventView struct {
	Kind       string `json:"kind"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	CardIDHash string `json:"card_id_hash,omitempty"`
	Decision   string `json:"decision,omitempty"`
	Reason     string `json:"reason,omitempty"`
	At         string `json:"at"`
}
