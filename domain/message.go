// Package domain defines the core domain models for the bridge.
package domain

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Content is the typed payload carried inside an envelope. Only "text" is
// handled by the router; other types are rejected at the boundary.
type Content struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// ContentTypeText is the only content type the router processes.
const ContentTypeText = "text"

// Envelope is the wire shape shared by every bridge endpoint. The same shape
// is used for inbound requests, outbound replies and peer-to-peer forwards,
// which keeps bridges interchangeable.
type Envelope struct {
	Content        Content           `json:"content"`
	Role           Role              `json:"role"`
	ConversationID string            `json:"conversation_id"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Metadata keys set on forwarded envelopes so the receiving agent can tell
// relayed traffic apart from direct traffic.
const (
	MetaFromAgent   = "from_agent_id"
	MetaToAgent     = "to_agent_id"
	MetaMessageType = "message_type"

	MessageTypeAgentToAgent = "agent_to_agent"
)

// Message is the dispatcher's view of one inbound message. ConversationID is
// caller-supplied and must be forwarded unchanged on any remote hand-off.
type Message struct {
	Text           string
	Role           Role
	ConversationID string
	Sender         string // originating agent identifier, empty for direct traffic
	Metadata       map[string]string
}

// IsRelayed reports whether the message arrived via another bridge's forward.
func (m *Message) IsRelayed() bool {
	return m.Metadata[MetaMessageType] == MessageTypeAgentToAgent
}
