// Package console streams routing activity to WebSocket observers. Each
// observer watches one conversation; the bridge publishes an event for every
// message it routes.
package console

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/a2alab/agentbridge/logging"
)

// Event is one routing observation pushed to watchers.
type Event struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	Sender         string `json:"sender,omitempty"`
	Outcome        string `json:"outcome,omitempty"`
	Reply          string `json:"reply,omitempty"`
	Ts             int64  `json:"ts"`
}

// Event types emitted by the bridge.
const (
	EventMessageReceived  = "message_received"
	EventRoutingCompleted = "routing_completed"
)

// Subscriber receives events for one conversation. Read from C; a closed C
// means the hub dropped the subscriber.
type Subscriber struct {
	ID             string
	ConversationID string
	C              chan []byte

	closed bool
}

// Hub fans events out to the subscribers of each conversation.
type Hub struct {
	mu sync.RWMutex

	// Subscribers indexed by ID, and per-conversation ID sets.
	subscribers   map[string]*Subscriber
	conversations map[string]map[string]bool

	log logging.Logger
}

// NewHub creates an empty hub.
func NewHub(log logging.Logger) *Hub {
	if log == nil {
		log = logging.NoOp{}
	}
	return &Hub{
		subscribers:   make(map[string]*Subscriber),
		conversations: make(map[string]map[string]bool),
		log:           log,
	}
}

// Subscribe registers a watcher for the given conversation.
func (h *Hub) Subscribe(conversationID string) *Subscriber {
	sub := &Subscriber{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		C:              make(chan []byte, 64),
	}

	h.mu.Lock()
	h.subscribers[sub.ID] = sub
	if h.conversations[conversationID] == nil {
		h.conversations[conversationID] = make(map[string]bool)
	}
	h.conversations[conversationID][sub.ID] = true
	h.mu.Unlock()

	h.log.Debug("watcher subscribed", "conversation_id", conversationID, "subscriber", sub.ID)
	return sub
}

// Unsubscribe removes a watcher and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub.ID]; !ok {
		return
	}
	delete(h.subscribers, sub.ID)
	if set := h.conversations[sub.ConversationID]; set != nil {
		delete(set, sub.ID)
		if len(set) == 0 {
			delete(h.conversations, sub.ConversationID)
		}
	}
	if !sub.closed {
		sub.closed = true
		close(sub.C)
	}
}

// Publish sends an event to every watcher of its conversation. A watcher
// that cannot keep up is dropped rather than blocking the router.
func (h *Hub) Publish(ev Event) {
	if ev.Ts == 0 {
		ev.Ts = time.Now().UnixMilli()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("failed to encode console event", "error", err)
		return
	}

	h.mu.RLock()
	var slow []*Subscriber
	for id := range h.conversations[ev.ConversationID] {
		sub, ok := h.subscribers[id]
		if !ok {
			continue
		}
		select {
		case sub.C <- data:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.log.Warn("dropping slow watcher", "subscriber", sub.ID, "conversation_id", sub.ConversationID)
		h.Unsubscribe(sub)
	}
}

// WatcherCount returns the number of active watchers for a conversation.
func (h *Hub) WatcherCount(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conversations[conversationID])
}
