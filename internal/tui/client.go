package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/berfenger/meshcard/internal/core/domain"
)

var ErrNotReady = errors.New("card not ready")

// Client fetches snapshots from the meshcard HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Snapshot(ctx context.Context) (domain.ViewSnapshot, error) {
	var snapshot domain.ViewSnapshot
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/snapshot", nil)
	if err != nil {
		return snapshot, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return snapshot, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusServiceUnavailable:
		return snapshot, ErrNotReady
	default:
		return snapshot, fmt.Errorf("fetch snapshot: unexpected status %d", res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(&snapshot); err != nil {
		return snapshot, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, nil
}
