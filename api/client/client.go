// Package client is the HTTP client used by the tiermem CLI to talk to a
// running tiermem API server.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/papercomputeco/tiermem/api"
	"github.com/papercomputeco/tiermem/pkg/tiered"
)

const defaultTimeout = 30 * time.Second

// Client calls the tiermem API.
type Client struct {
	target *url.URL
	http   *http.Client
}

// New creates a client for the API server at target.
func New(target string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API target URL: %q", target)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{target: u, http: httpClient}, nil
}

// Remember posts an entry. The server scores it asynchronously.
func (c *Client) Remember(ctx context.Context, e tiered.Entry) error {
	return c.do(ctx, http.MethodPost, "/v1/memories", e, http.StatusAccepted, nil)
}

// Recall queries both tiers.
func (c *Client) Recall(ctx context.Context, req tiered.RecallRequest) (*api.RecallResponse, error) {
	var out api.RecallResponse
	if err := c.do(ctx, http.MethodPost, "/v1/recall", req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Window reads one recency window.
func (c *Client) Window(ctx context.Context, req tiered.ShortTermRequest) (*api.WindowResponse, error) {
	path := "/v1/windows/" + url.PathEscape(req.OwnerID) + "/" + url.PathEscape(req.ActorID)
	if req.Window != "" {
		path += "/" + url.PathEscape(req.Window)
	}
	if req.TopicTag != "" {
		path += "?topic_tag=" + url.QueryEscape(req.TopicTag)
	}

	var out api.WindowResponse
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Thresholds reads the live admission thresholds.
func (c *Client) Thresholds(ctx context.Context) (*api.ThresholdsResponse, error) {
	var out api.ThresholdsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/thresholds", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, want int, out any) error {
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("building request path: %w", err)
	}
	endpoint := c.target.ResolveReference(ref)

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to tiermem API at %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != want {
		var e api.ErrorResponse
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return fmt.Errorf("request failed (HTTP %d): %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("request failed (HTTP %d): %s", resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
