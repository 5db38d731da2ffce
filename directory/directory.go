// Package directory maps agent identifiers to reachable endpoints.
//
// Resolution is exact-match first. When no exact match exists, the token is
// treated as a prefix so a sender can write @pirate and still reach an agent
// registered as pirate-a91f3c. When several identifiers share the prefix the
// most recently registered record wins.
package directory

import (
	"context"
	"errors"

	"github.com/a2alab/agentbridge/domain"
)

// ErrNotFound is returned when a token resolves to no registered agent.
var ErrNotFound = errors.New("agent not found")

// ErrEmptyEndpoint is returned when a registration carries no endpoint.
var ErrEmptyEndpoint = errors.New("agent endpoint is required")

// ErrEmptyAgentID is returned when a registration carries no identifier.
var ErrEmptyAgentID = errors.New("agent_id is required")

// Directory is the registry of reachable agents. Register must behave as an
// atomic upsert so concurrent registrations for the same identifier never
// interleave into a corrupt record.
type Directory interface {
	// Register creates or replaces the record for rec.AgentID.
	Register(ctx context.Context, rec *domain.AgentRecord) error

	// Resolve maps a mention token to a record, exact match first, then
	// most-recently-registered prefix match. Returns ErrNotFound otherwise.
	Resolve(ctx context.Context, token string) (*domain.AgentRecord, error)

	// Heartbeat updates the record's last-seen timestamp.
	Heartbeat(ctx context.Context, agentID string) error

	// ListActive returns all records not considered stale.
	ListActive(ctx context.Context) ([]domain.AgentRecord, error)
}

func validate(rec *domain.AgentRecord) error {
	if rec.AgentID == "" {
		return ErrEmptyAgentID
	}
	if rec.Endpoint == "" {
		return ErrEmptyEndpoint
	}
	return nil
}
