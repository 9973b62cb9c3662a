// Package aqi provides the WAQI feed client, the ordered fallback
// resolution chain, and the AQI category classifier.
//
// The feed indexes stations by administrative-boundary names with
// inconsistent granularity, so queries are retried at progressively
// coarser locations. Outbound requests go through a token bucket
// limiter to avoid hammering the feed during a sweep.
package aqi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// ErrUnavailable is returned when a feed query yields no usable reading,
// whether from a transport failure or a non-ok feed status.
var ErrUnavailable = errors.New("feed returned no reading")

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Observation is one raw feed reading for a single query.
type Observation struct {
	AQI          int
	LocationName string
}

// Client is a rate-limited WAQI feed client.
type Client struct {
	httpClient HTTPClient
	baseURL    string
	token      string
	limiter    *rate.Limiter
}

// NewClient creates a feed client. requestsPerMinute bounds outbound calls.
func NewClient(client HTTPClient, baseURL, token string, requestsPerMinute int) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	rps := float64(requestsPerMinute) / 60.0
	return &Client{
		httpClient: client,
		baseURL:    baseURL,
		token:      token,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

type feedResponse struct {
	Status string `json:"status"`
	Data   struct {
		AQI  json.Number `json:"aqi"`
		City struct {
			Name string `json:"name"`
		} `json:"city"`
	} `json:"data"`
}

// Fetch queries the feed for a single location query. A transport error,
// a non-ok status, or a non-numeric AQI all count as ErrUnavailable for
// this query; the caller decides whether to try a coarser one.
func (c *Client) Fetch(ctx context.Context, query string) (*Observation, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	// The feed addresses stations by path, slash-joined queries included
	u := fmt.Sprintf("%s/feed/%s/?token=%s", c.baseURL, query, url.QueryEscape(c.token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: feed returned %d: %s", ErrUnavailable, resp.StatusCode, truncate(body, 200))
	}

	var result feedResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	if result.Status != "ok" {
		return nil, fmt.Errorf("%w: feed status %q for %s", ErrUnavailable, result.Status, query)
	}

	value, err := result.Data.AQI.Int64()
	if err != nil {
		// Stations occasionally report "-" instead of a number
		return nil, fmt.Errorf("%w: non-numeric aqi %q for %s", ErrUnavailable, result.Data.AQI.String(), query)
	}

	name := result.Data.City.Name
	if name == "" {
		name = query
	}

	return &Observation{
		AQI:          int(value),
		LocationName: name,
	}, nil
}

// CoordsQuery returns the direct coordinate feed query for a position.
func CoordsQuery(latitude, longitude float64) string {
	return fmt.Sprintf("geo:%f;%f", latitude, longitude)
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
