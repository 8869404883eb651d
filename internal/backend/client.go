package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"slidesense/internal/auth"
	"slidesense/internal/config"
)

// SessionSource provides the identity-provider session attached to every call.
type SessionSource interface {
	CurrentSession(ctx context.Context) (*auth.Session, error)
}

// Client talks to the study backend: deck CRUD, summary generation, chat.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	sessions   SessionSource
}

// NewClient constructs the backend client from app config.
func NewClient(cfg *config.Config, sessions SessionSource) *Client {
	timeout := time.Duration(cfg.BasicConfig.RequestTimeout) * time.Second
	return &Client{
		baseURL:    cfg.Backend.BaseURL,
		timeout:    timeout,
		httpClient: &http.Client{},
		sessions:   sessions,
	}
}

// do performs one JSON round trip against the backend. Every request carries
// the bearer access token and the refresh token header, and runs under its
// own deadline so a hung backend call cannot wedge the deck in processing.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	session, err := c.sessions.CurrentSession(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
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
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	req.Header.Set("X-Refresh-Token", session.RefreshToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s failed (%d): %s", method, path, resp.StatusCode, detail)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// FetchPDF downloads a deck's document from its public URL.
func (c *Client) FetchPDF(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, errors.New("pdf url required")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build pdf request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch pdf: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch pdf failed (%d)", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read pdf body: %w", err)
	}
	return data, nil
}
