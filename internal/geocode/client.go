package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"commute/internal/domain"
)

// HTTPDoer is the subset of *http.Client the geocoder needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client performs forward geocoding against a LocationIQ-compatible search API.
type Client struct {
	apiKey  string
	baseURL string
	http    HTTPDoer
}

// NewClient creates a Client with an instrumented HTTP transport.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	return NewClientWithHTTPDoer(apiKey, baseURL, &http.Client{
		Timeout:   timeout,
		Transport: newrelic.NewRoundTripper(http.DefaultTransport),
	})
}

// NewClientWithHTTPDoer creates a Client with a custom HTTP implementation.
func NewClientWithHTTPDoer(apiKey, baseURL string, doer HTTPDoer) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    doer,
	}
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Resolve geocodes address. Zero results and service errors wrap ErrResolutionFailed.
func (c *Client) Resolve(ctx context.Context, address string) (domain.NamedLocation, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/search?"+q.Encode(), nil)
	if err != nil {
		return domain.NamedLocation{}, fmt.Errorf("failed to build geocode request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.NamedLocation{}, fmt.Errorf("%w: %v", ErrResolutionFailed, err)
	}
	defer resp.Body.Close()

	// LocationIQ answers 404 for "Unable to geocode".
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.NamedLocation{}, fmt.Errorf("%w: status %d: %s", ErrResolutionFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return domain.NamedLocation{}, fmt.Errorf("%w: decode response: %v", ErrResolutionFailed, err)
	}
	if len(results) == 0 {
		return domain.NamedLocation{}, fmt.Errorf("%w: no results for %q", ErrResolutionFailed, address)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return domain.NamedLocation{}, fmt.Errorf("%w: parse latitude: %v", ErrResolutionFailed, err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return domain.NamedLocation{}, fmt.Errorf("%w: parse longitude: %v", ErrResolutionFailed, err)
	}

	loc := domain.NamedLocation{
		Coordinate: domain.Coordinate{Lat: lat, Lng: lng},
		Address:    results[0].DisplayName,
		Source:     domain.LocationSourceGeocoded,
	}
	if !loc.Valid() {
		return domain.NamedLocation{}, fmt.Errorf("%w: coordinates out of range", ErrResolutionFailed)
	}
	if loc.Address == "" {
		loc.Address = address
	}
	return loc, nil
}

var _ Resolver = (*Client)(nil)
