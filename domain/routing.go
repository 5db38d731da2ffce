package domain

// Outcome classifies how a message was handled.
type Outcome string

const (
	// OutcomeLocal means the message never left this bridge.
	OutcomeLocal Outcome = "local"
	// OutcomeDelegated means at least one remote target received the message.
	OutcomeDelegated Outcome = "delegated"
	// OutcomeFailed means no target could be reached or resolved.
	OutcomeFailed Outcome = "failed"
)

// RoutingResult is produced once per inbound message. It is ephemeral and
// never persisted.
type RoutingResult struct {
	Outcome   Outcome `json:"outcome"`
	ReplyText string  `json:"reply_text"`
	Source    string  `json:"source"`
}
