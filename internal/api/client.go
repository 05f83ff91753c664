// Package api implements the HTTP client for the showcase platform REST
// API. Durable mutations go through here; realtime pushes arrive on the
// transport connector.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"artclient/internal/domain"
)

// Client calls the remote API, attaching the bearer token of the active
// session to every request. The token is set by the session manager on
// login/resume and cleared on logout.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// SetToken installs the bearer token attached to subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ClearToken removes the bearer token.
func (c *Client) ClearToken() {
	c.SetToken("")
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do performs one JSON request/response round trip. Network failures map
// to ErrNetworkUnavailable; HTTP statuses map onto the client error
// taxonomy.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", domain.ErrInvalidInput, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrNetworkUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s %s response: %w", method, path, err)
		}
		return nil
	}

	var detail apiError
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&detail)
	msg := detail.Error
	if msg == "" {
		msg = detail.Message
	}
	if msg == "" {
		msg = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrAuthRejected, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, method, path)
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, msg)
	default:
		return fmt.Errorf("%s %s: %s", method, path, msg)
	}
}
