package tripapi

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

	"github.com/newrelic/go-agent/v3/newrelic"

	"commute/internal/monitor"
)

// HTTPDoer is the subset of *http.Client the trip API client needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the rewards backend start and arrive endpoints.
type Client struct {
	baseURL string
	apiKey  string
	http    HTTPDoer
}

// NewClient creates a Client with an instrumented HTTP transport.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return NewClientWithHTTPDoer(baseURL, apiKey, &http.Client{
		Timeout:   timeout,
		Transport: newrelic.NewRoundTripper(http.DefaultTransport),
	})
}

// NewClientWithHTTPDoer creates a Client with a custom HTTP implementation.
func NewClientWithHTTPDoer(baseURL, apiKey string, doer HTTPDoer) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    doer,
	}
}

type startRequest struct {
	RecommendationID string `json:"recommendation_id"`
}

type startResponse struct {
	TripID string `json:"trip_id"`
}

type arriveResponse struct {
	Points *int `json:"points"`
	Reward *struct {
		Points int `json:"points"`
	} `json:"reward"`
}

// Start begins a trip for the recommendation.
func (c *Client) Start(ctx context.Context, recommendationID string) (monitor.StartResult, error) {
	body, err := json.Marshal(startRequest{RecommendationID: recommendationID})
	if err != nil {
		return monitor.StartResult{}, err
	}

	raw, err := c.post(ctx, "/v1/trips/start", body)
	if err != nil {
		return monitor.StartResult{}, fmt.Errorf("start trip: %w", err)
	}

	var resp startResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return monitor.StartResult{}, fmt.Errorf("start trip: %w: decode response: %v", monitor.ErrRemoteCallFailed, err)
	}
	if resp.TripID == "" {
		return monitor.StartResult{}, fmt.Errorf("start trip: %w: missing trip_id", monitor.ErrRemoteCallFailed)
	}
	return monitor.StartResult{TripID: resp.TripID}, nil
}

// Arrive confirms arrival and returns the reward payload as sent by the server.
func (c *Client) Arrive(ctx context.Context, tripID string) (monitor.ArriveResult, error) {
	raw, err := c.post(ctx, "/v1/trips/"+url.PathEscape(tripID)+"/arrive", nil)
	if err != nil {
		return monitor.ArriveResult{}, fmt.Errorf("arrive trip: %w", err)
	}

	var resp arriveResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return monitor.ArriveResult{}, fmt.Errorf("arrive trip: %w: decode response: %v", monitor.ErrRemoteCallFailed, err)
	}

	result := monitor.ArriveResult{Payload: json.RawMessage(raw)}
	switch {
	case resp.Points != nil:
		result.Points = *resp.Points
	case resp.Reward != nil:
		result.Points = resp.Reward.Points
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", monitor.ErrRemoteCallFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", monitor.ErrRemoteCallFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", monitor.ErrRemoteCallFailed, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

var _ monitor.TripService = (*Client)(nil)
