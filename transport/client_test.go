package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/a2alab/agentbridge/domain"
)

func testEnvelope() *domain.Envelope {
	return &domain.Envelope{
		Content:        domain.Content{Text: "hello", Type: domain.ContentTypeText},
		Role:           domain.RoleUser,
		ConversationID: "conv-123",
		Metadata: map[string]string{
			domain.MetaFromAgent:   "alpha",
			domain.MetaToAgent:     "beta",
			domain.MetaMessageType: domain.MessageTypeAgentToAgent,
		},
	}
}

func TestSendSuccess(t *testing.T) {
	var seen domain.Envelope
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/a2a" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&seen); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"content":{"text":"Arrr!","type":"text"},"role":"assistant","conversation_id":"conv-123"}`)
	}))
	defer server.Close()

	reply, err := NewClient().Send(context.Background(), server.URL, testEnvelope())
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if reply != "Arrr!" {
		t.Fatalf("unexpected reply: %q", reply)
	}

	// conversation_id and forwarded-message metadata cross the wire unchanged.
	if seen.ConversationID != "conv-123" {
		t.Fatalf("conversation_id mutated: %q", seen.ConversationID)
	}
	if seen.Metadata[domain.MetaMessageType] != domain.MessageTypeAgentToAgent {
		t.Fatalf("missing forwarded metadata: %+v", seen.Metadata)
	}
	if seen.Role != domain.RoleUser {
		t.Fatalf("expected forwarded role user, got %s", seen.Role)
	}
}

func TestSendAppendsA2APath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/a2a" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"content":{"text":"ok","type":"text"},"role":"assistant"}`)
	}))
	defer server.Close()

	// Endpoint already carrying /a2a must not be doubled.
	if _, err := NewClient().Send(context.Background(), server.URL+"/a2a", testEnvelope()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
}

func TestSendNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient().Send(context.Background(), server.URL, testEnvelope())
	if kind, ok := KindOf(err); !ok || kind != KindProtocol {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestSendMissingReplyText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content":{"text":"","type":"text"},"role":"assistant"}`)
	}))
	defer server.Close()

	_, err := NewClient().Send(context.Background(), server.URL, testEnvelope())
	if kind, ok := KindOf(err); !ok || kind != KindProtocol {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestSendTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		fmt.Fprint(w, `{"content":{"text":"late","type":"text"},"role":"assistant"}`)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient().Send(ctx, server.URL, testEnvelope())
	if kind, ok := KindOf(err); !ok || kind != KindTimeout {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestSendUnreachable(t *testing.T) {
	_, err := NewClient().Send(context.Background(), "http://127.0.0.1:1", testEnvelope())
	if kind, ok := KindOf(err); !ok || kind != KindUnreachable {
		t.Fatalf("expected unreachable error, got %v", err)
	}
}
