// Package policy evaluates whether one agent may forward a message to
// another. Policies are OPA rego modules; the default policy allows all
// traffic.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

// Decision values produced by a routing policy.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Input is the document handed to the policy for each forward.
type Input struct {
	Sender string `json:"sender"`
	Target string `json:"target"`
	Text   string `json:"text"`
}

// Engine is the OPA routing policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.route_policy.decision"),
		rego.Module("route_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate decides whether the forward described by input may proceed.
// Returns the decision string and an optional reason.
func (e *Engine) Evaluate(ctx context.Context, input Input) (string, string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The policy is expected to define a default.
		return DecisionAllow, "default", nil
	}

	switch val := results[0].Expressions[0].Value.(type) {
	case string:
		return val, "", nil
	case map[string]interface{}:
		decision, _ := val["decision"].(string)
		reason, _ := val["reason"].(string)
		if decision == "" {
			decision = DecisionAllow
		}
		return decision, reason, nil
	default:
		return DecisionAllow, "unexpected return type", nil
	}
}

// DefaultPolicy allows all forwards. Deployments override it via
// configuration to fence off targets or senders.
const DefaultPolicy = `
package route_policy

default decision = "allow"

# Example: fence off a quarantined agent
# decision = "block" if {
# 	input.target == "quarantined-agent"
# }
`
