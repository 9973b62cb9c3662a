package sweep

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bkaraca/airalert/internal/aqi"
	"github.com/bkaraca/airalert/internal/database"
	"github.com/bkaraca/airalert/internal/events"
	"github.com/bkaraca/airalert/internal/geocode"
	"github.com/bkaraca/airalert/internal/readings"
)

type fakeStore struct {
	mu        sync.Mutex
	users     []*database.User
	locations map[string]*database.LocationSample
	upserts   []*database.AirQualityReading
}

func (f *fakeStore) ListNotifiableUsers() ([]*database.User, error) {
	return f.users, nil
}

func (f *fakeStore) GetCurrentLocation(userID string) (*database.LocationSample, error) {
	return f.locations[userID], nil
}

func (f *fakeStore) UpsertReading(r *database.AirQualityReading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, r)
	return nil
}

type fakeGeocoder struct {
	query string
	err   error
	calls int
	mu    sync.Mutex
}

func (f *fakeGeocoder) Resolve(_ context.Context, _, _ float64) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.query, nil
}

type fakeFetcher struct {
	readings map[string]*aqi.Reading
}

func (f *fakeFetcher) FetchWithFallback(_ context.Context, query string) (*aqi.Reading, error) {
	r, ok := f.readings[query]
	if !ok {
		return nil, aqi.ErrUnavailable
	}
	cp := *r
	return &cp, nil
}

type fakeState struct {
	mu     sync.Mutex
	states map[string]*readings.State
	getErr error
}

func newFakeState() *fakeState {
	return &fakeState{states: make(map[string]*readings.State)}
}

func (f *fakeState) GetState(_ context.Context, key string) (*readings.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.states[key], nil
}

func (f *fakeState) SetState(_ context.Context, key string, state *readings.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[key] = state
	return nil
}

type capturePublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (c *capturePublisher) Publish(_ context.Context, _ string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, value)
	return nil
}

func (c *capturePublisher) notificationUserIDs(t *testing.T) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for _, msg := range c.messages {
		req, err := events.DecodeNotificationRequest(msg)
		if err != nil {
			t.Fatalf("decode notification: %v", err)
		}
		ids = append(ids, req.UserID)
	}
	sort.Strings(ids)
	return ids
}

func (c *capturePublisher) readingUpdates(t *testing.T) []*events.ReadingUpdate {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var updates []*events.ReadingUpdate
	for _, msg := range c.messages {
		upd, err := events.DecodeReadingUpdate(msg)
		if err != nil {
			t.Fatalf("decode reading update: %v", err)
		}
		updates = append(updates, upd)
	}
	return updates
}

func kadikoyReading(value int) *aqi.Reading {
	return &aqi.Reading{
		AQI:          value,
		LocationName: "Kadikoy, Istanbul",
		QueryUsed:    "istanbul/kadikoy",
		CapturedAt:   time.Date(2024, 11, 5, 14, 0, 0, 0, time.UTC),
	}
}

type sweepEnv struct {
	store         *fakeStore
	geocoder      *fakeGeocoder
	fetcher       *fakeFetcher
	state         *fakeState
	readingsPub   *capturePublisher
	notifications *capturePublisher
	sweeper       *Sweeper
}

func newSweepEnv(cfgMut func(*SweeperConfig)) *sweepEnv {
	env := &sweepEnv{
		store: &fakeStore{
			users: []*database.User{
				{ID: "u1", NotificationsEnabled: true, NotificationThreshold: 100},
			},
			locations: map[string]*database.LocationSample{
				"u1": {UserID: "u1", Latitude: 40.99, Longitude: 29.03, IsCurrent: true},
			},
		},
		geocoder: &fakeGeocoder{query: "istanbul/kadikoy"},
		fetcher: &fakeFetcher{readings: map[string]*aqi.Reading{
			"istanbul/kadikoy": kadikoyReading(120),
		}},
		state:         newFakeState(),
		readingsPub:   &capturePublisher{},
		notifications: &capturePublisher{},
	}

	cfg := SweeperConfig{
		Store:           env.store,
		Geocoder:        env.geocoder,
		Fetcher:         env.fetcher,
		State:           env.state,
		Readings:        env.readingsPub,
		Notifications:   env.notifications,
		QueryMode:       "geocode",
		Workers:         4,
		PipelineTimeout: 5 * time.Second,
	}
	if cfgMut != nil {
		cfgMut(&cfg)
	}

	env.sweeper = NewSweeper(cfg)
	env.sweeper.now = func() time.Time { return time.Date(2024, 11, 5, 14, 30, 0, 0, time.UTC) }
	return env
}

func TestRunDispatchesAboveThreshold(t *testing.T) {
	env := newSweepEnv(nil)

	env.sweeper.Run(context.Background())

	if got := env.notifications.notificationUserIDs(t); !cmp.Equal([]string{"u1"}, got) {
		t.Errorf("expected notification for u1, got %v", got)
	}

	if len(env.store.upserts) != 1 {
		t.Fatalf("expected one reading upsert, got %d", len(env.store.upserts))
	}
	upsert := env.store.upserts[0]
	if upsert.LocationQuery != "istanbul/kadikoy" || upsert.AQI != 120 {
		t.Errorf("unexpected upsert: %+v", upsert)
	}

	updates := env.readingsPub.readingUpdates(t)
	if len(updates) != 1 {
		t.Fatalf("expected one reading update, got %d", len(updates))
	}
	if updates[0].OldAQI != 0 || updates[0].NewAQI != 120 {
		t.Errorf("first-seen update must carry old AQI zero: %+v", updates[0])
	}
}

func TestRunBelowThresholdStoresButDoesNotDispatch(t *testing.T) {
	env := newSweepEnv(nil)
	env.fetcher.readings["istanbul/kadikoy"] = kadikoyReading(60)

	env.sweeper.Run(context.Background())

	if got := env.notifications.notificationUserIDs(t); len(got) != 0 {
		t.Errorf("expected no notifications, got %v", got)
	}
	if len(env.store.upserts) != 1 {
		t.Errorf("reading must still be stored, got %d upserts", len(env.store.upserts))
	}
	if len(env.readingsPub.readingUpdates(t)) != 1 {
		t.Error("reading update must still be published")
	}
}

func TestRunSkipsUserWithoutLocation(t *testing.T) {
	env := newSweepEnv(nil)
	delete(env.store.locations, "u1")

	env.sweeper.Run(context.Background())

	if len(env.store.upserts) != 0 || len(env.notifications.messages) != 0 {
		t.Error("user without location must be skipped entirely")
	}
}

func TestRunSkipsWhenGeocodeFails(t *testing.T) {
	env := newSweepEnv(nil)
	env.geocoder.err = geocode.ErrNotFound

	env.sweeper.Run(context.Background())

	if len(env.store.upserts) != 0 || len(env.notifications.messages) != 0 {
		t.Error("unresolvable location must abandon the pipeline")
	}
}

func TestRunSkipsWhenFeedUnavailable(t *testing.T) {
	env := newSweepEnv(nil)
	env.fetcher.readings = map[string]*aqi.Reading{}

	env.sweeper.Run(context.Background())

	if len(env.store.upserts) != 0 || len(env.notifications.messages) != 0 || len(env.readingsPub.messages) != 0 {
		t.Error("feed failure must persist and publish nothing")
	}
}

func TestRunIsolatesPerUserFailures(t *testing.T) {
	env := newSweepEnv(nil)
	env.store.users = []*database.User{
		{ID: "u1", NotificationsEnabled: true, NotificationThreshold: 100},
		{ID: "u2", NotificationsEnabled: true, NotificationThreshold: 100},
		{ID: "u3", NotificationsEnabled: true, NotificationThreshold: 100},
	}
	env.store.locations = map[string]*database.LocationSample{
		"u1": {UserID: "u1", Latitude: 40.99, Longitude: 29.03, IsCurrent: true},
		// u2 has no location at all
		"u3": {UserID: "u3", Latitude: 40.99, Longitude: 29.03, IsCurrent: true},
	}

	env.sweeper.Run(context.Background())

	want := []string{"u1", "u3"}
	if got := env.notifications.notificationUserIDs(t); !cmp.Equal(want, got) {
		t.Errorf("one failing user must not affect siblings: want %v, got %v", want, got)
	}
}

func TestRunIdempotentWithUnchangedData(t *testing.T) {
	env := newSweepEnv(nil)

	env.sweeper.Run(context.Background())
	first := env.notifications.notificationUserIDs(t)

	env.sweeper.Run(context.Background())
	second := env.notifications.notificationUserIDs(t)[len(first):]

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("dispatch decisions drifted across identical runs (-first +second):\n%s", diff)
	}

	// The second run sees the first run's reading as previous state.
	updates := env.readingsPub.readingUpdates(t)
	if len(updates) != 2 {
		t.Fatalf("expected two reading updates, got %d", len(updates))
	}
	if updates[1].OldAQI != 120 || updates[1].NewAQI != 120 {
		t.Errorf("second update must carry previous AQI: %+v", updates[1])
	}
}

func TestRunStateErrorSkipsUpdatePublish(t *testing.T) {
	env := newSweepEnv(nil)
	env.state.states["istanbul/kadikoy"] = &readings.State{
		AQI:          90,
		LocationName: "Kadikoy, Istanbul",
	}
	env.state.getErr = errors.New("connection refused")

	env.sweeper.Run(context.Background())

	// A failed previous-reading lookup must not masquerade as a first
	// sighting: no update event, so the alerter never sees OldAQI zero
	// for a location it already knows.
	if got := len(env.readingsPub.messages); got != 0 {
		t.Errorf("expected no reading updates when previous reading is unknown, got %d", got)
	}

	// The poll-triggered path is unaffected.
	if len(env.store.upserts) != 1 {
		t.Errorf("reading must still be stored, got %d upserts", len(env.store.upserts))
	}
	if got := env.notifications.notificationUserIDs(t); !cmp.Equal([]string{"u1"}, got) {
		t.Errorf("expected poll-triggered notification for u1, got %v", got)
	}
}

func TestRunCoordsModeBypassesGeocoder(t *testing.T) {
	env := newSweepEnv(func(cfg *SweeperConfig) {
		cfg.QueryMode = "coords"
	})
	env.fetcher.readings[aqi.CoordsQuery(40.99, 29.03)] = kadikoyReading(120)

	env.sweeper.Run(context.Background())

	if env.geocoder.calls != 0 {
		t.Errorf("coords mode must not call the geocoder, got %d calls", env.geocoder.calls)
	}
	if got := env.notifications.notificationUserIDs(t); !cmp.Equal([]string{"u1"}, got) {
		t.Errorf("expected notification for u1, got %v", got)
	}
}
