// Package tunnel provisions a reverse tunnel so the engineer can reach a
// dev server running on the customer's machine. The exchange fronts the
// actual tunnel provider; this is a pass-through wrapper.
package tunnel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Tunnel is a provisioned public endpoint for one local port.
type Tunnel struct {
	URL      string `json:"url"`
	Password string `json:"password"`
}

// TokenSource mirrors directory.TokenSource.
type TokenSource interface {
	GetValidToken(ctx context.Context) (string, error)
}

// Client provisions tunnels through the exchange.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     hclog.Logger
}

// NewClient creates a tunnel client rooted at the exchange API URL.
func NewClient(baseURL string, tokens TokenSource, log hclog.Logger) *Client {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
		log:     log.Named("tunnel"),
	}
}

// Create provisions a tunnel exposing the given local port.
func (c *Client) Create(ctx context.Context, port int) (*Tunnel, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}

	body, err := json.Marshal(map[string]int{"port": port})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tunnels", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := c.tokens.GetValidToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provision tunnel: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("tunnel provisioning returned HTTP %d", resp.StatusCode)
	}

	var t Tunnel
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode tunnel response: %w", err)
	}
	c.log.Info("tunnel provisioned", "port", port, "url", t.URL)
	return &t, nil
}
