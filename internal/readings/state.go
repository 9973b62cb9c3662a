// Package readings tracks the last observed reading per location key in
// Redis, so the poller can tell whether a fresh fetch changed anything.
package readings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// State is the last observed reading for a location key.
type State struct {
	AQI          int       `json:"aqi"`
	LocationName string    `json:"location_name"`
	CapturedAt   time.Time `json:"captured_at"`
}

// StateManager manages last-reading states in Redis
type StateManager struct {
	redis *redis.Client
}

// NewStateManager creates a new state manager
func NewStateManager(redisClient *redis.Client) *StateManager {
	return &StateManager{redis: redisClient}
}

// GetState retrieves the last reading for a location key.
// Returns nil when the location has not been seen before.
func (sm *StateManager) GetState(ctx context.Context, locationQuery string) (*State, error) {
	key := fmt.Sprintf("reading:%s", locationQuery)

	data, err := sm.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state from Redis: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return &state, nil
}

// SetState saves the last reading for a location key
func (sm *StateManager) SetState(ctx context.Context, locationQuery string, state *State) error {
	key := fmt.Sprintf("reading:%s", locationQuery)

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Expire stale locations after a week of no sweeps touching them
	if err := sm.redis.Set(ctx, key, data, 7*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to set state in Redis: %w", err)
	}

	return nil
}

// DeleteState removes the stored reading for a location key
func (sm *StateManager) DeleteState(ctx context.Context, locationQuery string) error {
	key := fmt.Sprintf("reading:%s", locationQuery)
	return sm.redis.Del(ctx, key).Err()
}
