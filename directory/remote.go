package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/a2alab/agentbridge/domain"
)

// Remote is a Directory backed by a registry service reached over HTTP. The
// registry owns staleness and prefix resolution; this client only shuttles
// requests.
type Remote struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemote creates a registry client for the given base URL.
func NewRemote(baseURL string, timeout time.Duration) *Remote {
	return &Remote{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

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

func (p *agentPayload) record() *domain.AgentRecord {
	return &domain.AgentRecord{
		AgentID:      p.AgentID,
		Endpoint:     p.AgentURL,
		Description:  p.Description,
		Capabilities: p.Capabilities,
		RegisteredAt: p.RegisteredAt,
		LastSeen:     p.LastSeen,
	}
}

// Register implements Directory.
func (r *Remote) Register(ctx context.Context, rec *domain.AgentRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	body, err := json.Marshal(registerRequest{
		AgentID:      rec.AgentID,
		AgentURL:     rec.Endpoint,
		Description:  rec.Description,
		Capabilities: rec.Capabilities,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal registration: %w", err)
	}

	resp, err := r.do(ctx, http.MethodPost, "/register", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry returned status %d", resp.StatusCode)
	}
	return nil
}

// Resolve implements Directory.
func (r *Remote) Resolve(ctx context.Context, token string) (*domain.AgentRecord, error) {
	resp, err := r.do(ctx, http.MethodGet, "/lookup/"+url.PathEscape(token), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	var payload agentPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}
	if payload.AgentURL == "" {
		return nil, ErrNotFound
	}
	return payload.record(), nil
}

// Heartbeat implements Directory.
func (r *Remote) Heartbeat(ctx context.Context, agentID string) error {
	body := bytes.NewReader([]byte(`{"status":"healthy"}`))
	resp, err := r.do(ctx, http.MethodPut, "/agents/"+url.PathEscape(agentID)+"/status", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry returned status %d", resp.StatusCode)
	}
	return nil
}

// ListActive implements Directory.
func (r *Remote) ListActive(ctx context.Context) ([]domain.AgentRecord, error) {
	resp, err := r.do(ctx, http.MethodGet, "/list", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	var result struct {
		Agents []agentPayload `json:"agents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode list response: %w", err)
	}
	out := make([]domain.AgentRecord, 0, len(result.Agents))
	for i := range result.Agents {
		out = append(out, *result.Agents[i].record())
	}
	return out, nil
}

// Health reports whether the registry answers its health endpoint.
func (r *Remote) Health(ctx context.Context) bool {
	resp, err := r.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (r *Remote) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry request failed: %w", err)
	}
	return resp, nil
}
