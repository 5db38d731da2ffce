// Package server exposes the bridge's HTTP surface: the A2A message
// endpoint, the agent card, health, metrics, and the watch socket.
package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/a2alab/agentbridge/console"
	"github.com/a2alab/agentbridge/domain"
	"github.com/a2alab/agentbridge/logging"
)

// Router handles one inbound message. The dispatch package provides the
// production implementation.
type Router interface {
	Route(ctx context.Context, msg *domain.Message) *domain.RoutingResult
}

// Handler handles the bridge's HTTP requests.
type Handler struct {
	agentID string
	card    domain.AgentCard
	router  Router
	hub     *console.Hub
	metrics http.Handler
	log     logging.Logger
}

// Options holds the handler's optional collaborators.
type Options struct {
	Hub     *console.Hub
	Metrics http.Handler
	Logger  logging.Logger
}

// NewHandler creates a handler for one bridge agent.
func NewHandler(agentID string, card domain.AgentCard, router Router, optFns ...func(*Options)) *Handler {
	opts := Options{Logger: logging.NoOp{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Handler{
		agentID: agentID,
		card:    card,
		router:  router,
		hub:     opts.Hub,
		metrics: opts.Metrics,
		log:     opts.Logger,
	}
}

// NewEcho builds the echo server with the bridge routes registered.
func NewEcho(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	h.RegisterRoutes(e)
	return e
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/a2a", h.HandleMessage)
	e.GET("/a2a/agent.json", h.AgentCard)
	e.GET("/health", h.Health)

	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.metrics))
	}
	if h.hub != nil {
		watch := console.NewWatchHandler(h.hub, h.log)
		e.GET("/watch", watch.Handle)
	}
}

// HandleMessage accepts one A2A envelope, routes it, and answers with the
// reply envelope.
// POST /a2a
func (h *Handler) HandleMessage(c echo.Context) error {
	var env domain.Envelope
	if err := c.Bind(&env); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid message payload"})
	}

	if env.Content.Type != "" && env.Content.Type != domain.ContentTypeText {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Only text messages supported"})
	}

	conversationID := env.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	msg := &domain.Message{
		Text:           env.Content.Text,
		Role:           env.Role,
		ConversationID: conversationID,
		Sender:         env.Metadata[domain.MetaFromAgent],
		Metadata:       env.Metadata,
	}
	if msg.Role == "" {
		msg.Role = domain.RoleUser
	}

	h.publish(console.Event{
		Type:           console.EventMessageReceived,
		ConversationID: conversationID,
		Sender:         msg.Sender,
	})

	result := h.router.Route(c.Request().Context(), msg)

	h.publish(console.Event{
		Type:           console.EventRoutingCompleted,
		ConversationID: conversationID,
		Sender:         msg.Sender,
		Outcome:        string(result.Outcome),
		Reply:          result.ReplyText,
	})

	reply := domain.Envelope{
		Content:        domain.Content{Text: result.ReplyText, Type: domain.ContentTypeText},
		Role:           domain.RoleAssistant,
		ConversationID: conversationID,
		Metadata: map[string]string{
			domain.MetaFromAgent: h.agentID,
		},
	}
	return c.JSON(http.StatusOK, reply)
}

// AgentCard returns the agent's self-description.
// GET /a2a/agent.json
func (h *Handler) AgentCard(c echo.Context) error {
	return c.JSON(http.StatusOK, h.card)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":   "healthy",
		"agent_id": h.agentID,
	})
}

func (h *Handler) publish(ev console.Event) {
	if h.hub != nil {
		h.hub.Publish(ev)
	}
}
