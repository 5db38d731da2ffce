// Package discovery ranks directory records against a free-text query using
// keyword scoring. It backs the "? <query>" search command and the registry's
// /search endpoint.
package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/a2alab/agentbridge/directory"
	"github.com/a2alab/agentbridge/domain"
)

// Result is one scored candidate.
type Result struct {
	Record  domain.AgentRecord
	Score   float64
	Reasons []string
}

// DefaultLimit bounds the number of results returned by a search.
const DefaultLimit = 5

// minScore filters out weak matches.
const minScore = 0.3

// Searcher scores agents from a directory.
type Searcher struct {
	dir directory.Directory
}

// NewSearcher creates a Searcher over dir.
func NewSearcher(dir directory.Directory) *Searcher {
	return &Searcher{dir: dir}
}

// Search returns up to limit agents ranked by relevance to query. A limit of
// zero applies DefaultLimit.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	agents, err := s.dir.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return Rank(agents, query, limit), nil
}

// Rank scores records against query and returns the strongest matches in
// descending score order.
func Rank(agents []domain.AgentRecord, query string, limit int) []Result {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return nil
	}

	var results []Result
	for _, agent := range agents {
		score, reasons := score(agent, words)
		if score >= minScore {
			results = append(results, Result{Record: agent, Score: score, Reasons: reasons})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// score mirrors the registry's client-side fallback ranking: whole-word
// matches against the agent's combined text, a bonus when the query matches
// the normalized identifier, and smaller bonuses for partial matches.
func score(agent domain.AgentRecord, words []string) (float64, []string) {
	var total float64
	var reasons []string

	combined := strings.ToLower(agent.AgentID + " " + agent.Description + " " + strings.Join(agent.Capabilities, " "))

	matches := 0
	for _, w := range words {
		if strings.Contains(combined, w) {
			matches++
		}
	}
	if matches > 0 {
		total += float64(matches) / float64(len(words)) * 0.8
		reasons = append(reasons, fmt.Sprintf("matched %d of %d query words", matches, len(words)))
	}

	normalizedID := strings.ToLower(strings.NewReplacer("-", " ", "_", " ").Replace(agent.AgentID))
	for _, w := range words {
		if strings.Contains(normalizedID, w) {
			total += 0.5
			reasons = append(reasons, "query matches agent identifier")
			break
		}
	}

	for _, w := range words {
		if strings.Contains(combined, w) {
			total += 0.2
		}
		if strings.Contains(strings.ToLower(agent.AgentID), w) {
			total += 0.3
		}
	}

	return total, reasons
}

// Format renders ranked results as the reply shown to the user.
func Format(query string, results []Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No agents found for: %q", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d agents for: %q\n", len(results), query)
	for i, r := range results {
		fmt.Fprintf(&b, "\n%d. @%s (score: %.2f)\n", i+1, r.Record.AgentID, r.Score)
		if r.Record.Description != "" {
			fmt.Fprintf(&b, "   %s\n", r.Record.Description)
		}
		if len(r.Record.Capabilities) > 0 {
			fmt.Fprintf(&b, "   capabilities: %s\n", strings.Join(r.Record.Capabilities, ", "))
		}
		if len(r.Reasons) > 0 {
			fmt.Fprintf(&b, "   %s\n", r.Reasons[0])
		}
	}
	b.WriteString("\nTo contact an agent, use: @agent-id your message")
	return b.String()
}
