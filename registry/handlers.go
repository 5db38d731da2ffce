// Package registry implements the shared agent registry service. Bridges
// register themselves here, resolve mention tokens, and search for peers by
// capability.
package registry

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/a2alab/agentbridge/directory"
	"github.com/a2alab/agentbridge/discovery"
	"github.com/a2alab/agentbridge/domain"
	"github.com/a2alab/agentbridge/logging"
)

// Store is the persistence the registry needs; directory.SQLiteStore
// implements it.
type Store interface {
	directory.Directory
	Count(ctx context.Context) (total, active int, err error)
}

// Handler handles the registry's HTTP requests.
type Handler struct {
	store Store
	log   logging.Logger
}

// NewHandler creates a new handler.
func NewHandler(store Store, log logging.Logger) *Handler {
	if log == nil {
		log = logging.NoOp{}
	}
	return &Handler{store: store, log: log}
}

// NewEcho builds the echo server with the registry routes registered.
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
	e.POST("/register", h.RegisterAgent)
	e.GET("/lookup/:agent_id", h.Lookup)
	e.PUT("/agents/:agent_id/status", h.UpdateStatus)
	e.GET("/list", h.ListAgents)
	e.GET("/search", h.SearchAgents)
	e.GET("/stats", h.Stats)
	e.GET("/health", h.Health)
}

// registerRequest and agentPayload are the registry's wire shapes; the
// directory.Remote client speaks the same format.
type registerRequest struct {
	AgentID      string   `json:"agent_id"`
	AgentURL     string   `json:"agent_url"`
	Description  string   `json:"description,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

type agentPayload struct {
	AgentID      string     `json:"agent_id"`
	AgentURL     string     `json:"agent_url"`
	Description  string     `json:"description,omitempty"`
	Capabilities []string   `json:"capabilities,omitempty"`
	RegisteredAt time.Time  `json:"registered_at"`
	LastSeen     *time.Time `json:"last_seen,omitempty"`
}

func toPayload(rec *domain.AgentRecord) agentPayload {
	return agentPayload{
		AgentID:      rec.AgentID,
		AgentURL:     rec.Endpoint,
		Description:  rec.Description,
		Capabilities: rec.Capabilities,
		RegisteredAt: rec.RegisteredAt,
		LastSeen:     rec.LastSeen,
	}
}

// RegisterAgent creates or replaces a registration.
// POST /register
func (h *Handler) RegisterAgent(c echo.Context) error {
	ctx := c.Request().Context()

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid registration payload"})
	}
	if req.AgentID == "" || req.AgentURL == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "agent_id and agent_url are required"})
	}

	rec := &domain.AgentRecord{
		AgentID:      req.AgentID,
		Endpoint:     req.AgentURL,
		Description:  req.Description,
		Capabilities: req.Capabilities,
	}
	if err := h.store.Register(ctx, rec); err != nil {
		h.log.Error("failed to register agent", "agent_id", req.AgentID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to register agent"})
	}

	h.log.Info("agent registered", "agent_id", req.AgentID, "agent_url", req.AgentURL)
	return c.JSON(http.StatusOK, map[string]string{"status": "registered", "agent_id": req.AgentID})
}

// Lookup resolves a mention token, exact match first, then newest prefix
// match.
// GET /lookup/:agent_id
func (h *Handler) Lookup(c echo.Context) error {
	ctx := c.Request().Context()
	token := c.Param("agent_id")

	rec, err := h.store.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "agent not found"})
		}
		h.log.Error("failed to resolve agent", "token", token, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to resolve agent"})
	}

	return c.JSON(http.StatusOK, toPayload(rec))
}

// UpdateStatus records a heartbeat for an agent.
// PUT /agents/:agent_id/status
func (h *Handler) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	agentID := c.Param("agent_id")

	if err := h.store.Heartbeat(ctx, agentID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "agent not found"})
		}
		h.log.Error("failed to record heartbeat", "agent_id", agentID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to record heartbeat"})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "agent_id": agentID})
}

// ListAgents returns all active registrations.
// GET /list
func (h *Handler) ListAgents(c echo.Context) error {
	ctx := c.Request().Context()

	agents, err := h.store.ListActive(ctx)
	if err != nil {
		h.log.Error("failed to list agents", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list agents"})
	}

	payload := make([]agentPayload, 0, len(agents))
	for i := range agents {
		payload = append(payload, toPayload(&agents[i]))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"agents": payload,
		"count":  len(payload),
	})
}

// SearchAgents ranks active registrations against a free-text query.
// GET /search?q=<query>&limit=<n>
func (h *Handler) SearchAgents(c echo.Context) error {
	ctx := c.Request().Context()

	query := c.QueryParam("q")
	if query == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "q is required"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = discovery.DefaultLimit
	}

	agents, err := h.store.ListActive(ctx)
	if err != nil {
		h.log.Error("failed to list agents for search", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to search agents"})
	}

	results := discovery.Rank(agents, query, limit)
	type match struct {
		agentPayload
		Score   float64  `json:"score"`
		Reasons []string `json:"reasons,omitempty"`
	}
	matches := make([]match, 0, len(results))
	for _, r := range results {
		matches = append(matches, match{agentPayload: toPayload(&r.Record), Score: r.Score, Reasons: r.Reasons})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"query":  query,
		"agents": matches,
		"count":  len(matches),
	})
}

// Stats returns registration counts.
// GET /stats
func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	total, active, err := h.store.Count(ctx)
	if err != nil {
		h.log.Error("failed to count agents", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to count agents"})
	}

	return c.JSON(http.StatusOK, map[string]int{
		"total_agents":  total,
		"active_agents": active,
	})
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "agent-registry",
	})
}
