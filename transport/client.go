// Package transport delivers messages to remote agent endpoints.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/a2alab/agentbridge/domain"
)

// Client is an HTTP client for the peer A2A endpoint. A Send is a single
// attempt bounded by the caller's context; retry policy, if any, belongs to
// the dispatcher.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new transport client. Timeouts come from the
// per-call context, not the underlying http.Client.
func NewClient() *Client {
	return &Client{httpClient: &http.Client{}}
}

// Send forwards env to the agent at endpoint and returns the reply text.
// The envelope's conversation_id is transmitted unchanged. Failures are
// returned as *Error with a Timeout, Unreachable or Protocol kind.
func (c *Client) Send(ctx context.Context, endpoint string, env *domain.Envelope) (string, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return "", &Error{Kind: KindProtocol, Endpoint: endpoint, Err: fmt.Errorf("failed to marshal envelope: %w", err)}
	}

	url := strings.TrimSuffix(endpoint, "/")
	if !strings.HasSuffix(url, "/a2a") {
		url += "/a2a"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindUnreachable, Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Kind: classifyDialError(err), Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &Error{
			Kind:     KindProtocol,
			Endpoint: endpoint,
			Err:      fmt.Errorf("agent returned status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var reply domain.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", &Error{Kind: KindProtocol, Endpoint: endpoint, Err: fmt.Errorf("failed to decode reply: %w", err)}
	}
	if reply.Content.Text == "" {
		return "", &Error{Kind: KindProtocol, Endpoint: endpoint, Err: errors.New("reply is missing content.text")}
	}
	return reply.Content.Text, nil
}

func classifyDialError(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindUnreachable
}
