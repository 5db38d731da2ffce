package domain

import "time"

// AgentRecord describes one registered agent. Records are owned by the
// directory; a record is never created with an empty endpoint.
type AgentRecord struct {
	AgentID      string     `json:"agent_id"`
	Endpoint     string     `json:"endpoint"`
	Description  string     `json:"description,omitempty"`
	Capabilities []string   `json:"capabilities,omitempty"`
	RegisteredAt time.Time  `json:"registered_at"`
	LastSeen     *time.Time `json:"last_seen,omitempty"`
}

// AgentCard is the public self-description served at /a2a/agent.json.
type AgentCard struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	URL          string   `json:"url"`
	Capabilities []string `json:"capabilities"`
}
