package database

import (
	"time"
)

// User represents an app user with notification preferences.
// Preferences are mutated by the mobile app; this backend only reads them.
type User struct {
	ID                    string
	NotificationsEnabled  bool
	NotificationThreshold int
	FCMToken              *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// LocationSample is one reported device location for a user.
// Samples are append-only; the backend reads only the newest current one.
type LocationSample struct {
	ID         int64
	UserID     string
	Latitude   float64
	Longitude  float64
	IsCurrent  bool
	RecordedAt time.Time
}

// AirQualityReading is the latest reading stored per location key.
// Approximate marks readings resolved through the major-city fallback.
type AirQualityReading struct {
	LocationQuery string
	LocationName  string
	AQI           int
	Approximate   bool
	CapturedAt    time.Time
	UpdatedAt     time.Time
}

// NotificationEvent is one delivered notification, recorded per user.
type NotificationEvent struct {
	ID        string
	UserID    string
	Title     string
	Body      string
	Data      string // JSON
	Read      bool
	CreatedAt time.Time
}

// ReadingHistory is an append-only record of reading updates.
type ReadingHistory struct {
	ID            int64
	LocationQuery string
	LocationName  string
	AQI           int
	Approximate   bool
	CapturedAt    time.Time
}

// DailyReadingSummary holds per-location daily min/max AQI.
type DailyReadingSummary struct {
	ID            int64
	LocationQuery string
	Date          time.Time
	MinAQI        *int
	MaxAQI        *int
	SampleCount   int
	CreatedAt     time.Time
}
