package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/a2alab/agentbridge/discovery"
	"github.com/a2alab/agentbridge/domain"
)

const helpText = `Available commands:
/help - Show this help
/ping - Test agent responsiveness
/status - Show agent status
@agent-id message - Send message to another agent
? <query> - Search for agents by capability`

// command answers the small set of system commands locally.
func (d *Dispatcher) command(msg *domain.Message) *domain.RoutingResult {
	name, _, _ := strings.Cut(strings.TrimPrefix(msg.Text, "/"), " ")

	var reply string
	switch name {
	case "help":
		reply = helpText
	case "ping":
		reply = "Pong!"
	case "status":
		reply = fmt.Sprintf("Agent: %s, Status: Running", d.agentID)
		if d.opts.RegistryURL != "" {
			reply += ", Registry: " + d.opts.RegistryURL
		}
	default:
		reply = fmt.Sprintf("Unknown command: %s. Use /help for available commands", name)
	}

	return &domain.RoutingResult{Outcome: domain.OutcomeLocal, ReplyText: reply, Source: d.agentID}
}

const searchUsage = `Usage: ? <search query>
Example: ? Find me a data scientist`

// search answers "? <query>" discovery requests against the directory.
func (d *Dispatcher) search(ctx context.Context, msg *domain.Message) *domain.RoutingResult {
	if d.opts.Searcher == nil {
		return &domain.RoutingResult{
			Outcome:   domain.OutcomeLocal,
			ReplyText: "Agent discovery not available.",
			Source:    d.agentID,
		}
	}

	query := strings.TrimSpace(strings.TrimPrefix(msg.Text, "?"))
	if query == "" {
		return &domain.RoutingResult{Outcome: domain.OutcomeLocal, ReplyText: searchUsage, Source: d.agentID}
	}

	results, err := d.opts.Searcher.Search(ctx, query, discovery.DefaultLimit)
	if err != nil {
		d.opts.Logger.Error("discovery search failed", "query", query, "error", err)
		return &domain.RoutingResult{
			Outcome:   domain.OutcomeFailed,
			ReplyText: fmt.Sprintf("Search failed: %v", err),
			Source:    d.agentID,
		}
	}

	return &domain.RoutingResult{
		Outcome:   domain.OutcomeLocal,
		ReplyText: discovery.Format(query, results),
		Source:    d.agentID,
	}
}
