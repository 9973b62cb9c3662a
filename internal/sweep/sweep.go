// Package sweep drives the scheduled per-user air quality check: it fans
// out over all users with notifications enabled and runs each user's
// pipeline independently.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bkaraca/airalert/internal/aqi"
	"github.com/bkaraca/airalert/internal/database"
	"github.com/bkaraca/airalert/internal/events"
	"github.com/bkaraca/airalert/internal/geocode"
	"github.com/bkaraca/airalert/internal/notify"
	"github.com/bkaraca/airalert/internal/readings"
)

// Store provides the user, location, and reading persistence the sweep needs.
type Store interface {
	ListNotifiableUsers() ([]*database.User, error)
	GetCurrentLocation(userID string) (*database.LocationSample, error)
	UpsertReading(r *database.AirQualityReading) error
}

// Geocoder resolves coordinates to feed location queries.
type Geocoder interface {
	Resolve(ctx context.Context, latitude, longitude float64) (string, error)
}

// Fetcher resolves a location query to a normalized reading.
type Fetcher interface {
	FetchWithFallback(ctx context.Context, query string) (*aqi.Reading, error)
}

// ReadingState tracks the previously observed reading per location key.
type ReadingState interface {
	GetState(ctx context.Context, locationQuery string) (*readings.State, error)
	SetState(ctx context.Context, locationQuery string, state *readings.State) error
}

// Publisher publishes messages onto a bus topic.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// SweeperConfig wires the sweep's collaborators and tuning.
type SweeperConfig struct {
	Store           Store
	Geocoder        Geocoder
	Fetcher         Fetcher
	State           ReadingState
	Readings        Publisher
	Notifications   Publisher
	QueryMode       string // "geocode" or "coords"
	Workers         int
	PipelineTimeout time.Duration
}

// Sweeper runs the hourly fan-out over eligible users.
type Sweeper struct {
	store           Store
	geocoder        Geocoder
	fetcher         Fetcher
	state           ReadingState
	readings        Publisher
	notifications   Publisher
	queryMode       string
	workers         int
	pipelineTimeout time.Duration
	now             func() time.Time
}

// NewSweeper creates a new sweeper
func NewSweeper(cfg SweeperConfig) *Sweeper {
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.PipelineTimeout <= 0 {
		cfg.PipelineTimeout = 30 * time.Second
	}

	return &Sweeper{
		store:           cfg.Store,
		geocoder:        cfg.Geocoder,
		fetcher:         cfg.Fetcher,
		state:           cfg.State,
		readings:        cfg.Readings,
		notifications:   cfg.Notifications,
		queryMode:       cfg.QueryMode,
		workers:         cfg.Workers,
		pipelineTimeout: cfg.PipelineTimeout,
		now:             time.Now,
	}
}

// Run executes one full sweep. Per-user pipelines run concurrently on a
// bounded worker pool; a failure in one pipeline is logged at that user's
// scope and never fails siblings or the sweep itself. Run returns once
// every pipeline has finished.
func (s *Sweeper) Run(ctx context.Context) {
	log.Println("Starting scheduled air quality sweep...")

	users, err := s.store.ListNotifiableUsers()
	if err != nil {
		log.Printf("Failed to list users, skipping sweep: %v", err)
		return
	}

	if len(users) == 0 {
		log.Println("No users with notifications enabled")
		return
	}

	jobs := make(chan *database.User)
	var wg sync.WaitGroup

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for user := range jobs {
				s.runPipeline(ctx, user)
			}
		}()
	}

	for _, user := range users {
		jobs <- user
	}
	close(jobs)
	wg.Wait()

	log.Printf("Scheduled air quality sweep completed (%d users)", len(users))
}

func (s *Sweeper) runPipeline(ctx context.Context, user *database.User) {
	pctx, cancel := context.WithTimeout(ctx, s.pipelineTimeout)
	defer cancel()

	if err := s.processUser(pctx, user); err != nil {
		log.Printf("Air quality check failed for user %s: %v", user.ID, err)
	}
}

// processUser runs one user's pipeline: location, query resolution, feed
// fetch, reading persistence, and the poll-triggered dispatch decision.
func (s *Sweeper) processUser(ctx context.Context, user *database.User) error {
	location, err := s.store.GetCurrentLocation(user.ID)
	if err != nil {
		return fmt.Errorf("failed to get location: %w", err)
	}
	if location == nil {
		log.Printf("No location found for user %s, skipping", user.ID)
		return nil
	}

	query, err := s.resolveQuery(ctx, location)
	if err != nil {
		if errors.Is(err, geocode.ErrNotFound) {
			log.Printf("No location query for user %s (%f, %f), skipping",
				user.ID, location.Latitude, location.Longitude)
			return nil
		}
		return err
	}

	reading, err := s.fetcher.FetchWithFallback(ctx, query)
	if err != nil {
		return fmt.Errorf("feed resolution failed for %q: %w", query, err)
	}

	category := aqi.Classify(reading.AQI)
	log.Printf("Reading for user %s: %s AQI %d (%s)", user.ID, reading.LocationName, reading.AQI, category)

	oldAQI := 0
	previous, stateErr := s.state.GetState(ctx, reading.QueryUsed)
	if stateErr != nil {
		log.Printf("Failed to load previous reading for %s: %v", reading.QueryUsed, stateErr)
	} else if previous != nil {
		oldAQI = previous.AQI
	}

	if err := s.store.UpsertReading(&database.AirQualityReading{
		LocationQuery: reading.QueryUsed,
		LocationName:  reading.LocationName,
		AQI:           reading.AQI,
		Approximate:   reading.Approximate,
		CapturedAt:    reading.CapturedAt,
	}); err != nil {
		return fmt.Errorf("failed to store reading: %w", err)
	}

	if err := s.state.SetState(ctx, reading.QueryUsed, &readings.State{
		AQI:          reading.AQI,
		LocationName: reading.LocationName,
		CapturedAt:   reading.CapturedAt,
	}); err != nil {
		log.Printf("Failed to update reading state for %s: %v", reading.QueryUsed, err)
	}

	if stateErr == nil {
		s.publishUpdate(ctx, reading, oldAQI)
	} else {
		// An update event with the previous reading unknown would look
		// like a first sighting and re-alert users already past their
		// threshold, so none is published this cycle.
		log.Printf("Skipping reading update for %s this cycle", reading.QueryUsed)
	}

	if !notify.ShouldNotifyPoll(reading.AQI, user.NotificationThreshold) {
		log.Printf("AQI %d below threshold %d for user %s", reading.AQI, user.NotificationThreshold, user.ID)
		return nil
	}

	req := notify.BuildThresholdAlert(reading.LocationName, category, reading.AQI, reading.Approximate, s.now())
	req.UserID = user.ID

	data, err := events.EncodeNotificationRequest(req)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	if err := s.notifications.Publish(ctx, user.ID, data); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	return nil
}

func (s *Sweeper) resolveQuery(ctx context.Context, location *database.LocationSample) (string, error) {
	if s.queryMode == "coords" {
		return aqi.CoordsQuery(location.Latitude, location.Longitude), nil
	}
	return s.geocoder.Resolve(ctx, location.Latitude, location.Longitude)
}

// publishUpdate emits the reading-update event that feeds the alerter and
// the history recorder. Every successful fetch with a known previous
// reading emits one; consumers decide whether the change is interesting.
func (s *Sweeper) publishUpdate(ctx context.Context, reading *aqi.Reading, oldAQI int) {
	update := &events.ReadingUpdate{
		LocationQuery: reading.QueryUsed,
		LocationName:  reading.LocationName,
		OldAQI:        oldAQI,
		NewAQI:        reading.AQI,
		Approximate:   reading.Approximate,
		CapturedAt:    reading.CapturedAt,
	}

	data, err := events.EncodeReadingUpdate(update)
	if err != nil {
		log.Printf("Failed to encode reading update for %s: %v", reading.QueryUsed, err)
		return
	}

	if err := s.readings.Publish(ctx, reading.QueryUsed, data); err != nil {
		log.Printf("Failed to publish reading update for %s: %v", reading.QueryUsed, err)
	}
}
