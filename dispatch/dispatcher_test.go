package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/a2alab/agentbridge/agentlogic"
	"github.com/a2alab/agentbridge/directory"
	"github.com/a2alab/agentbridge/discovery"
	"github.com/a2alab/agentbridge/domain"
	"github.com/a2alab/agentbridge/policy"
	"github.com/a2alab/agentbridge/transport"
)

// transportFunc adapts a function to the Transport interface.
type transportFunc func(ctx context.Context, endpoint string, env *domain.Envelope) (string, error)

func (f transportFunc) Send(ctx context.Context, endpoint string, env *domain.Envelope) (string, error) {
	return f(ctx, endpoint, env)
}

// recordingTransport captures every Send and replies from a fixed table.
type recordingTransport struct {
	calls   []sentCall
	replies map[string]string
	errs    map[string]error
}

type sentCall struct {
	endpoint string
	env      *domain.Envelope
}

func (r *recordingTransport) Send(_ context.Context, endpoint string, env *domain.Envelope) (string, error) {
	r.calls = append(r.calls, sentCall{endpoint: endpoint, env: env})
	if err, ok := r.errs[endpoint]; ok {
		return "", err
	}
	if reply, ok := r.replies[endpoint]; ok {
		return reply, nil
	}
	return "", &transport.Error{Kind: transport.KindUnreachable, Endpoint: endpoint, Err: errors.New("no stub")}
}

func seededDir(t *testing.T, ids map[string]string) *directory.Memory {
	t.Helper()
	dir := directory.NewMemory(0)
	for id, endpoint := range ids {
		if err := dir.Register(context.Background(), &domain.AgentRecord{AgentID: id, Endpoint: endpoint}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	return dir
}

func userMessage(text string) *domain.Message {
	return &domain.Message{Text: text, Role: domain.RoleUser, ConversationID: "conv-1"}
}

func TestRouteLocalWithoutMentions(t *testing.T) {
	tr := &recordingTransport{}
	d := New("pirate", directory.NewMemory(0), tr, agentlogic.Pirate())

	res := d.Route(context.Background(), userMessage("tell me a joke"))

	if res.Outcome != domain.OutcomeLocal {
		t.Fatalf("expected local outcome, got %s", res.Outcome)
	}
	if !strings.HasPrefix(res.ReplyText, "Arrr!") {
		t.Fatalf("unexpected reply: %q", res.ReplyText)
	}
	if len(tr.calls) != 0 {
		t.Fatalf("transport must not be invoked for local messages")
	}
}

func TestRouteSingleRemoteVerbatim(t *testing.T) {
	dir := seededDir(t, map[string]string{"alpha": "http://alpha"})
	tr := &recordingTransport{replies: map[string]string{"http://alpha": "A-REPLY"}}
	d := New("pirate", dir, tr, agentlogic.Echo())

	res := d.Route(context.Background(), userMessage("@alpha hi there"))

	if res.Outcome != domain.OutcomeDelegated {
		t.Fatalf("expected delegated, got %s", res.Outcome)
	}
	// Single-target replies are passed through byte for byte.
	if res.ReplyText != "A-REPLY" {
		t.Fatalf("expected verbatim reply, got %q", res.ReplyText)
	}

	if len(tr.calls) != 1 {
		t.Fatalf("expected one forward, got %d", len(tr.calls))
	}
	env := tr.calls[0].env
	if env.Content.Text != "hi there" {
		t.Fatalf("mention token must be stripped from the payload, got %q", env.Content.Text)
	}
	if env.ConversationID != "conv-1" {
		t.Fatalf("conversation_id mutated: %q", env.ConversationID)
	}
	if env.Metadata[domain.MetaMessageType] != domain.MessageTypeAgentToAgent {
		t.Fatalf("forwarded metadata missing: %+v", env.Metadata)
	}
	if env.Metadata[domain.MetaFromAgent] != "pirate" {
		t.Fatalf("sender metadata missing: %+v", env.Metadata)
	}
}

func TestRouteTwoTargetFanOut(t *testing.T) {
	dir := seededDir(t, map[string]string{"alpha": "http://alpha", "beta": "http://beta"})
	tr := &recordingTransport{replies: map[string]string{
		"http://alpha": "A-REPLY",
		"http://beta":  "B-REPLY",
	}}
	d := New("pirate", dir, tr, agentlogic.Echo())

	res := d.Route(context.Background(), userMessage("@alpha hi @beta hi"))

	if res.Outcome != domain.OutcomeDelegated {
		t.Fatalf("expected delegated, got %s", res.Outcome)
	}
	alphaIdx := strings.Index(res.ReplyText, "[alpha]: A-REPLY")
	betaIdx := strings.Index(res.ReplyText, "[beta]: B-REPLY")
	if alphaIdx < 0 || betaIdx < 0 {
		t.Fatalf("expected labeled fragments, got %q", res.ReplyText)
	}
	if alphaIdx > betaIdx {
		t.Fatalf("fragments out of mention order: %q", res.ReplyText)
	}

	// Sequential fan-out in mention order.
	if len(tr.calls) != 2 || tr.calls[0].endpoint != "http://alpha" || tr.calls[1].endpoint != "http://beta" {
		t.Fatalf("unexpected call order: %+v", tr.calls)
	}
}

func TestRouteSelfMentionStaysLocal(t *testing.T) {
	tr := &recordingTransport{}
	d := New("pirate", directory.NewMemory(0), tr, agentlogic.Pirate())

	res := d.Route(context.Background(), userMessage("@pirate tell me a joke"))

	if res.Outcome != domain.OutcomeLocal {
		t.Fatalf("expected local outcome, got %s", res.Outcome)
	}
	if !strings.Contains(res.ReplyText, "tell me a joke") {
		t.Fatalf("unexpected reply: %q", res.ReplyText)
	}
	if len(tr.calls) != 0 {
		t.Fatalf("self-mention must never invoke the transport")
	}
}

func TestRouteSelfMentionWithSuffixedIdentifier(t *testing.T) {
	// The runtime identifier carries a generated suffix the sender does not
	// know; @pirate must still resolve to ourselves.
	tr := &recordingTransport{}
	d := New("pirate-a91f3c", directory.NewMemory(0), tr, agentlogic.Pirate())

	res := d.Route(context.Background(), userMessage("@pirate ahoy"))

	if res.Outcome != domain.OutcomeLocal {
		t.Fatalf("expected local outcome, got %s", res.Outcome)
	}
	if len(tr.calls) != 0 {
		t.Fatalf("self-mention must never invoke the transport")
	}
}

func TestRouteUnresolvableMention(t *testing.T) {
	tr := &recordingTransport{}
	d := New("pirate", directory.NewMemory(0), tr, agentlogic.Echo())

	res := d.Route(context.Background(), userMessage("@nope hello"))

	if res.Outcome != domain.OutcomeFailed {
		t.Fatalf("expected failed outcome, got %s", res.Outcome)
	}
	// The reply must name the token that failed to resolve.
	if !strings.Contains(res.ReplyText, "nope") {
		t.Fatalf("reply must name the unresolved token, got %q", res.ReplyText)
	}
}

func TestRoutePartialFailure(t *testing.T) {
	dir := seededDir(t, map[string]string{"alpha": "http://alpha", "beta": "http://beta"})
	tr := &recordingTransport{
		replies: map[string]string{"http://alpha": "A-REPLY"},
		errs: map[string]error{
			"http://beta": &transport.Error{Kind: transport.KindTimeout, Endpoint: "http://beta", Err: context.DeadlineExceeded},
		},
	}
	d := New("pirate", dir, tr, agentlogic.Echo())

	res := d.Route(context.Background(), userMessage("@alpha hi @beta hi"))

	// One success is enough for a delegated outcome.
	if res.Outcome != domain.OutcomeDelegated {
		t.Fatalf("expected delegated, got %s", res.Outcome)
	}
	if !strings.Contains(res.ReplyText, "A-REPLY") {
		t.Fatalf("missing successful fragment: %q", res.ReplyText)
	}
	if !strings.Contains(res.ReplyText, "timeout") {
		t.Fatalf("missing timeout notice: %q", res.ReplyText)
	}
}

func TestRouteAllTargetsFail(t *testing.T) {
	dir := seededDir(t, map[string]string{"alpha": "http://alpha"})
	tr := &recordingTransport{errs: map[string]error{
		"http://alpha": &transport.Error{Kind: transport.KindUnreachable, Endpoint: "http://alpha", Err: errors.New("refused")},
	}}
	d := New("pirate", dir, tr, agentlogic.Echo())

	res := d.Route(context.Background(), userMessage("@alpha hi"))

	if res.Outcome != domain.OutcomeFailed {
		t.Fatalf("expected failed, got %s", res.Outcome)
	}
	if !strings.Contains(res.ReplyText, "alpha") {
		t.Fatalf("failure must name the target: %q", res.ReplyText)
	}
}

func TestRouteExpiredDeadlineSkipsTargets(t *testing.T) {
	dir := seededDir(t, map[string]string{"alpha": "http://alpha"})
	tr := &recordingTransport{replies: map[string]string{"http://alpha": "A-REPLY"}}
	d := New("pirate", dir, tr, agentlogic.Echo())

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	res := d.Route(ctx, userMessage("@alpha hi"))

	if res.Outcome != domain.OutcomeFailed {
		t.Fatalf("expected failed, got %s", res.Outcome)
	}
	if !strings.Contains(res.ReplyText, "deadline") {
		t.Fatalf("expected deadline notice, got %q", res.ReplyText)
	}
	if len(tr.calls) != 0 {
		t.Fatalf("expired deadline must skip the transport entirely")
	}
}

func TestRoutePolicyBlock(t *testing.T) {
	const blockBeta = `
package route_policy

default decision = "allow"

decision = "block" if {
	input.target == "beta"
}
`
	engine, err := policy.NewEngine(context.Background(), blockBeta)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	dir := seededDir(t, map[string]string{"alpha": "http://alpha", "beta": "http://beta"})
	tr := &recordingTransport{replies: map[string]string{
		"http://alpha": "A-REPLY",
		"http://beta":  "B-REPLY",
	}}
	d := New("pirate", dir, tr, agentlogic.Echo(), func(o *Options) { o.Policy = engine })

	res := d.Route(context.Background(), userMessage("@beta psst"))

	if res.Outcome != domain.OutcomeFailed {
		t.Fatalf("expected failed, got %s", res.Outcome)
	}
	if !strings.Contains(res.ReplyText, "blocked by policy") {
		t.Fatalf("expected policy notice, got %q", res.ReplyText)
	}
	if len(tr.calls) != 0 {
		t.Fatalf("blocked forward must not reach the transport")
	}

	// The block rule is conditional on its target; other forwards proceed.
	res = d.Route(context.Background(), userMessage("@alpha psst"))

	if res.Outcome != domain.OutcomeDelegated {
		t.Fatalf("expected delegated for unblocked target, got %s", res.Outcome)
	}
	if res.ReplyText != "A-REPLY" {
		t.Fatalf("unexpected reply: %q", res.ReplyText)
	}
}

func TestRouteLogicFailure(t *testing.T) {
	failing := func(_ context.Context, _, _ string) (string, error) {
		return "", errors.New("boom")
	}
	d := New("pirate", directory.NewMemory(0), &recordingTransport{}, failing)

	res := d.Route(context.Background(), userMessage("hello"))

	if res.Outcome != domain.OutcomeFailed {
		t.Fatalf("expected failed, got %s", res.Outcome)
	}
	if strings.Contains(res.ReplyText, "boom") {
		t.Fatalf("internal error must not leak into the reply: %q", res.ReplyText)
	}
}

func TestRouteSelfMentionLogicFailure(t *testing.T) {
	// A self-mention answered by failing logic reports failed, the same as
	// the no-mention path would.
	failing := func(_ context.Context, _, _ string) (string, error) {
		return "", errors.New("boom")
	}
	tr := &recordingTransport{}
	d := New("pirate", directory.NewMemory(0), tr, failing)

	res := d.Route(context.Background(), userMessage("@pirate hello"))

	if res.Outcome != domain.OutcomeFailed {
		t.Fatalf("expected failed, got %s", res.Outcome)
	}
	if len(tr.calls) != 0 {
		t.Fatalf("self-mention must never invoke the transport")
	}
}

func TestRouteRelayedMessageNeverForwards(t *testing.T) {
	dir := seededDir(t, map[string]string{"alpha": "http://alpha"})
	tr := &recordingTransport{replies: map[string]string{"http://alpha": "A-REPLY"}}
	d := New("pirate", dir, tr, agentlogic.Echo())

	msg := &domain.Message{
		Text:           "@alpha hi",
		Role:           domain.RoleUser,
		ConversationID: "conv-1",
		Sender:         "beta",
		Metadata: map[string]string{
			domain.MetaFromAgent:   "beta",
			domain.MetaToAgent:     "pirate",
			domain.MetaMessageType: domain.MessageTypeAgentToAgent,
		},
	}
	res := d.Route(context.Background(), msg)

	if res.Outcome != domain.OutcomeLocal {
		t.Fatalf("expected local, got %s", res.Outcome)
	}
	if len(tr.calls) != 0 {
		t.Fatalf("relayed messages must never be forwarded again")
	}
}

func TestRouteCommands(t *testing.T) {
	d := New("pirate", directory.NewMemory(0), &recordingTransport{}, agentlogic.Echo(),
		func(o *Options) { o.RegistryURL = "http://registry:6900" })

	res := d.Route(context.Background(), userMessage("/ping"))
	if res.ReplyText != "Pong!" {
		t.Fatalf("unexpected ping reply: %q", res.ReplyText)
	}

	res = d.Route(context.Background(), userMessage("/help"))
	if !strings.Contains(res.ReplyText, "/status") {
		t.Fatalf("help must list commands: %q", res.ReplyText)
	}

	res = d.Route(context.Background(), userMessage("/status"))
	if !strings.Contains(res.ReplyText, "pirate") || !strings.Contains(res.ReplyText, "http://registry:6900") {
		t.Fatalf("unexpected status reply: %q", res.ReplyText)
	}

	res = d.Route(context.Background(), userMessage("/frobnicate now"))
	if !strings.Contains(res.ReplyText, "Unknown command: frobnicate") {
		t.Fatalf("unexpected reply: %q", res.ReplyText)
	}
}

func TestRouteSearch(t *testing.T) {
	dir := seededDir(t, map[string]string{"data-scientist-7a2b": "http://ds"})
	d := New("pirate", dir, &recordingTransport{}, agentlogic.Echo(),
		func(o *Options) { o.Searcher = discovery.NewSearcher(dir) })

	res := d.Route(context.Background(), userMessage("? data scientist"))
	if res.Outcome != domain.OutcomeLocal {
		t.Fatalf("expected local, got %s", res.Outcome)
	}
	if !strings.Contains(res.ReplyText, "@data-scientist-7a2b") {
		t.Fatalf("expected ranked agent in reply: %q", res.ReplyText)
	}

	res = d.Route(context.Background(), userMessage("?"))
	if !strings.Contains(res.ReplyText, "Usage") {
		t.Fatalf("expected usage text: %q", res.ReplyText)
	}
}

func TestRouteSearchWithoutSearcher(t *testing.T) {
	d := New("pirate", directory.NewMemory(0), &recordingTransport{}, agentlogic.Echo())

	res := d.Route(context.Background(), userMessage("? anyone out there"))
	if !strings.Contains(res.ReplyText, "not available") {
		t.Fatalf("unexpected reply: %q", res.ReplyText)
	}
}

func TestTransportFuncAdapter(t *testing.T) {
	dir := seededDir(t, map[string]string{"alpha": "http://alpha"})
	var gotConvID string
	tr := transportFunc(func(_ context.Context, _ string, env *domain.Envelope) (string, error) {
		gotConvID = env.ConversationID
		return "ok", nil
	})
	d := New("pirate", dir, tr, agentlogic.Echo())

	msg := userMessage("@alpha hi")
	msg.ConversationID = "conv-xyz"
	d.Route(context.Background(), msg)

	if gotConvID != "conv-xyz" {
		t.Fatalf("conversation_id not threaded: %q", gotConvID)
	}
}
