// Package geocode resolves device coordinates to feed location queries
// via a reverse-geocoding HTTP service.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when the service yields no usable city.
// Network and parse failures are folded into it as well: the caller
// retries at a coarser granularity, not here.
var ErrNotFound = errors.New("no location found for coordinates")

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Resolver turns coordinates into lowercased feed query strings.
type Resolver struct {
	client  HTTPClient
	baseURL string
	locale  string
}

// NewResolver creates a Resolver against the given reverse-geocoding endpoint.
func NewResolver(client HTTPClient, baseURL, locale string) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Resolver{
		client:  client,
		baseURL: baseURL,
		locale:  locale,
	}
}

type geocodeResponse struct {
	City          string `json:"city"`
	Locality      string `json:"locality"`
	District      string `json:"district"`
	Neighbourhood string `json:"neighbourhood"`
}

// Resolve returns the location query for a coordinate pair.
// With both city and district known the query is "city/district", with only
// a city it is "city", both lowercased. The slash form matters downstream:
// the feed client splits on "/" to derive its city-only fallback.
func (r *Resolver) Resolve(ctx context.Context, latitude, longitude float64) (string, error) {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%f", latitude))
	params.Set("longitude", fmt.Sprintf("%f", longitude))
	params.Set("localityLanguage", r.locale)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: geocoding returned %d", ErrNotFound, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrNotFound, err)
	}

	var geo geocodeResponse
	if err := json.Unmarshal(body, &geo); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrNotFound, err)
	}

	city := strings.TrimSpace(geo.City)
	district := strings.TrimSpace(geo.Locality)
	if district == "" {
		district = strings.TrimSpace(geo.District)
	}

	switch {
	case city != "" && district != "":
		return strings.ToLower(city + "/" + district), nil
	case city != "":
		return strings.ToLower(city), nil
	default:
		return "", ErrNotFound
	}
}
