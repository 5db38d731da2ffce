// Package dispatch routes inbound messages: local messages go to the agent
// logic, mentioned targets are resolved through the directory and forwarded
// over the transport, and the per-target outcomes are composed into a single
// reply. Nothing in this package is fatal; every failure becomes a
// descriptive reply string.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/a2alab/agentbridge/agentlogic"
	"github.com/a2alab/agentbridge/directory"
	"github.com/a2alab/agentbridge/discovery"
	"github.com/a2alab/agentbridge/domain"
	"github.com/a2alab/agentbridge/logging"
	"github.com/a2alab/agentbridge/mention"
	"github.com/a2alab/agentbridge/policy"
	"github.com/a2alab/agentbridge/transport"
)

// Transport delivers an envelope to a remote agent endpoint.
type Transport interface {
	Send(ctx context.Context, endpoint string, env *domain.Envelope) (string, error)
}

// Policy decides whether a forward may proceed.
type Policy interface {
	Evaluate(ctx context.Context, input policy.Input) (decision, reason string, err error)
}

// Metrics receives routing counters. The telemetry package provides the
// production implementation.
type Metrics interface {
	MessageReceived(role string)
	RouteCompleted(outcome string, dur time.Duration)
	ForwardFailed(kind string)
}

// Options holds the dispatcher's optional collaborators.
type Options struct {
	Policy        Policy
	Metrics       Metrics
	Logger        logging.Logger
	Searcher      *discovery.Searcher
	TargetTimeout time.Duration
	RegistryURL   string
}

// Dispatcher routes messages for one agent.
type Dispatcher struct {
	agentID string
	dir     directory.Directory
	tr      Transport
	logic   agentlogic.Func
	opts    Options
}

// New creates a Dispatcher for the agent identified by agentID.
func New(agentID string, dir directory.Directory, tr Transport, logic agentlogic.Func, optFns ...func(*Options)) *Dispatcher {
	opts := Options{
		Logger:        logging.NoOp{},
		TargetTimeout: 30 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Dispatcher{agentID: agentID, dir: dir, tr: tr, logic: logic, opts: opts}
}

// Route handles one inbound message and always produces a result; errors from
// collaborators surface as reply text, never as panics or process faults.
func (d *Dispatcher) Route(ctx context.Context, msg *domain.Message) *domain.RoutingResult {
	start := time.Now()
	if d.opts.Metrics != nil {
		d.opts.Metrics.MessageReceived(string(msg.Role))
	}

	result := d.route(ctx, msg)

	if d.opts.Metrics != nil {
		d.opts.Metrics.RouteCompleted(string(result.Outcome), time.Since(start))
	}
	return result
}

func (d *Dispatcher) route(ctx context.Context, msg *domain.Message) *domain.RoutingResult {
	switch kind := classify(msg); kind {
	case kindRelayed:
		// A peer forwarded this to us; answer locally and never forward
		// again, so two bridges cannot bounce a message between them.
		d.opts.Logger.Info("handling relayed message", "from", msg.Sender, "conversation_id", msg.ConversationID)
		return d.local(ctx, msg, msg.Text)
	case kindCommand:
		return d.command(msg)
	case kindSearch:
		return d.search(ctx, msg)
	}

	mentions := mention.Parse(msg.Text)
	if len(mentions) == 0 {
		return d.local(ctx, msg, msg.Text)
	}
	return d.fanOut(ctx, msg, mentions)
}

// local invokes the agent-logic collaborator. Its failures are swallowed
// into a generic reply because routing must not crash on business logic.
func (d *Dispatcher) local(ctx context.Context, msg *domain.Message, text string) *domain.RoutingResult {
	reply, err := d.logic(ctx, text, msg.ConversationID)
	if err != nil {
		d.opts.Logger.Error("agent logic failed", "error", err, "conversation_id", msg.ConversationID)
		return &domain.RoutingResult{
			Outcome:   domain.OutcomeFailed,
			ReplyText: "The agent could not process this message.",
			Source:    d.agentID,
		}
	}
	return &domain.RoutingResult{Outcome: domain.OutcomeLocal, ReplyText: reply, Source: d.agentID}
}

// fanOut forwards the message to every resolved mention in order. Targets are
// visited sequentially so a shared conversation log stays deterministic.
func (d *Dispatcher) fanOut(ctx context.Context, msg *domain.Message, mentions []mention.Mention) *domain.RoutingResult {
	payload := mention.Strip(msg.Text, mentions)

	var (
		frags          []fragment
		unresolved     []string
		remoteAttempts int
		remoteOK       int
		localFailed    bool
	)

	handleSelf := func() {
		res := d.local(ctx, msg, payload)
		ok := res.Outcome != domain.OutcomeFailed
		if !ok {
			localFailed = true
		}
		frags = append(frags, fragment{target: d.agentID, text: res.ReplyText, ok: ok})
	}

	for _, m := range mentions {
		if d.isSelf(m.Token) {
			handleSelf()
			continue
		}

		rec, err := d.dir.Resolve(ctx, m.Token)
		if err != nil {
			if !errors.Is(err, directory.ErrNotFound) {
				d.opts.Logger.Warn("directory lookup failed", "token", m.Token, "error", err)
			}
			unresolved = append(unresolved, m.Token)
			continue
		}
		if rec.AgentID == d.agentID {
			handleSelf()
			continue
		}

		remoteAttempts++
		frag := d.forward(ctx, msg, rec, payload)
		if frag.ok {
			remoteOK++
		}
		frags = append(frags, frag)
	}

	if len(frags) == 0 {
		return &domain.RoutingResult{
			Outcome:   domain.OutcomeFailed,
			ReplyText: fmt.Sprintf("Could not find agent %s", strings.Join(unresolved, ", ")),
			Source:    d.agentID,
		}
	}
	if len(unresolved) > 0 {
		d.opts.Logger.Warn("dropping unresolved mentions", "tokens", strings.Join(unresolved, ","))
	}

	outcome := domain.OutcomeLocal
	if remoteOK > 0 {
		outcome = domain.OutcomeDelegated
	} else if remoteAttempts > 0 || localFailed {
		outcome = domain.OutcomeFailed
	}

	return &domain.RoutingResult{Outcome: outcome, ReplyText: compose(frags), Source: d.agentID}
}

// forward delivers the payload to one resolved target and captures the
// outcome; a failure here never aborts the remaining targets.
func (d *Dispatcher) forward(ctx context.Context, msg *domain.Message, rec *domain.AgentRecord, payload string) fragment {
	// The overall request deadline may already have expired; skip the
	// target and report it instead of leaving it pending.
	if ctx.Err() != nil {
		d.countForwardFailure(transport.KindTimeout.String())
		return fragment{target: rec.AgentID, text: fmt.Sprintf("%s was not contacted: request deadline exceeded", rec.AgentID)}
	}

	if d.opts.Policy != nil {
		decision, reason, err := d.opts.Policy.Evaluate(ctx, policy.Input{Sender: d.agentID, Target: rec.AgentID, Text: payload})
		if err != nil {
			d.opts.Logger.Error("policy evaluation failed", "target", rec.AgentID, "error", err)
		} else if decision == policy.DecisionBlock {
			d.countForwardFailure("policy")
			text := fmt.Sprintf("forward to %s blocked by policy", rec.AgentID)
			if reason != "" {
				text += ": " + reason
			}
			return fragment{target: rec.AgentID, text: text}
		}
	}

	env := &domain.Envelope{
		Content:        domain.Content{Text: payload, Type: domain.ContentTypeText},
		Role:           domain.RoleUser,
		ConversationID: msg.ConversationID,
		Metadata: map[string]string{
			domain.MetaFromAgent:   d.agentID,
			domain.MetaToAgent:     rec.AgentID,
			domain.MetaMessageType: domain.MessageTypeAgentToAgent,
		},
	}

	sendCtx := ctx
	if d.opts.TargetTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.opts.TargetTimeout)
		defer cancel()
	}

	d.opts.Logger.Info("forwarding message", "target", rec.AgentID, "endpoint", rec.Endpoint, "conversation_id", msg.ConversationID)
	reply, err := d.tr.Send(sendCtx, rec.Endpoint, env)
	if err != nil {
		kind := "unknown"
		if k, ok := transport.KindOf(err); ok {
			kind = k.String()
		}
		d.countForwardFailure(kind)
		d.opts.Logger.Warn("forward failed", "target", rec.AgentID, "kind", kind, "error", err)
		return fragment{target: rec.AgentID, text: fmt.Sprintf("could not reach %s: %v", rec.AgentID, err)}
	}
	return fragment{target: rec.AgentID, text: reply, ok: true}
}

// isSelf guards against an agent looping a message to itself. The runtime
// identifier usually carries a generated suffix, so a token is also self
// when it is a prefix of our own identifier.
func (d *Dispatcher) isSelf(token string) bool {
	return token == d.agentID || strings.HasPrefix(d.agentID, token)
}

func (d *Dispatcher) countForwardFailure(kind string) {
	if d.opts.Metrics != nil {
		d.opts.Metrics.ForwardFailed(kind)
	}
}
