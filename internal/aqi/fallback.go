package aqi

import (
	"context"
	"log"
	"strings"
	"time"
)

// Reading is the normalized result of the fallback resolution chain.
// QueryUsed is the query that actually produced the reading and becomes
// the storage key downstream. Approximate marks readings that came from
// the major-city fallback list rather than the user's own location.
type Reading struct {
	AQI          int
	LocationName string
	QueryUsed    string
	Approximate  bool
	CapturedAt   time.Time
}

// Fetcher resolves a location query to a reading, trying progressively
// coarser candidate queries until one succeeds.
type Fetcher struct {
	client         *Client
	fallbackCities []string
}

// NewFetcher creates a Fetcher with the given ordered fallback city list.
func NewFetcher(client *Client, fallbackCities []string) *Fetcher {
	return &Fetcher{
		client:         client,
		fallbackCities: fallbackCities,
	}
}

type candidate struct {
	query       string
	approximate bool
}

// FetchWithFallback tries the full query, then the city-only prefix if the
// query was "/"-joined, then each configured fallback city in order. The
// first candidate that yields a reading wins; its query becomes QueryUsed.
// Transport errors at any step are treated as that step failing, with no
// backoff or re-attempt.
func (f *Fetcher) FetchWithFallback(ctx context.Context, query string) (*Reading, error) {
	candidates := []candidate{{query: query}}

	if city, _, found := strings.Cut(query, "/"); found && city != "" {
		candidates = append(candidates, candidate{query: city})
	}

	for _, city := range f.fallbackCities {
		candidates = append(candidates, candidate{query: city, approximate: true})
	}

	var lastErr error
	for i, cand := range candidates {
		obs, err := f.client.Fetch(ctx, cand.query)
		if err != nil {
			lastErr = err
			if i < len(candidates)-1 {
				log.Printf("Feed query %q failed, trying %q: %v", cand.query, candidates[i+1].query, err)
			}
			continue
		}

		if cand.approximate {
			log.Printf("Feed resolved %q via fallback city %q; reading is approximate", query, cand.query)
		}

		return &Reading{
			AQI:          obs.AQI,
			LocationName: obs.LocationName,
			QueryUsed:    cand.query,
			Approximate:  cand.approximate,
			CapturedAt:   time.Now().UTC(),
		}, nil
	}

	return nil, lastErr
}
