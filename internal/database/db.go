package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &DB{db}, nil
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		fmt.Printf("Running migration: %s\n", filename)

		filePath := filepath.Join(migrationsDir, filename)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	fmt.Println("All migrations completed successfully")
	return nil
}

// ListNotifiableUsers returns all users with notifications enabled
func (db *DB) ListNotifiableUsers() ([]*User, error) {
	query := `
		SELECT id, notifications_enabled, notification_threshold, fcm_token, created_at, updated_at
		FROM users
		WHERE notifications_enabled = true
		ORDER BY id
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanUsers(rows)
}

// ListUsersInThresholdBand returns users with notifications enabled whose
// threshold lies in (oldAQI, newAQI]. These are the users newly crossed by
// a worsening reading update.
func (db *DB) ListUsersInThresholdBand(oldAQI, newAQI int) ([]*User, error) {
	query := `
		SELECT id, notifications_enabled, notification_threshold, fcm_token, created_at, updated_at
		FROM users
		WHERE notifications_enabled = true
		  AND notification_threshold <= $1
		  AND notification_threshold > $2
		ORDER BY id
	`

	rows, err := db.Query(query, newAQI, oldAQI)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanUsers(rows)
}

func scanUsers(rows *sql.Rows) ([]*User, error) {
	var users []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(
			&u.ID,
			&u.NotificationsEnabled,
			&u.NotificationThreshold,
			&u.FCMToken,
			&u.CreatedAt,
			&u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}

	return users, rows.Err()
}

// GetUser retrieves a user by ID, or nil if none exists
func (db *DB) GetUser(id string) (*User, error) {
	query := `
		SELECT id, notifications_enabled, notification_threshold, fcm_token, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var u User
	err := db.QueryRow(query, id).Scan(
		&u.ID,
		&u.NotificationsEnabled,
		&u.NotificationThreshold,
		&u.FCMToken,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &u, nil
}

// GetCurrentLocation returns the most recent current location sample for a
// user, or nil if the user has never reported one
func (db *DB) GetCurrentLocation(userID string) (*LocationSample, error) {
	query := `
		SELECT id, user_id, latitude, longitude, is_current, recorded_at
		FROM locations
		WHERE user_id = $1 AND is_current = true
		ORDER BY recorded_at DESC
		LIMIT 1
	`

	var loc LocationSample
	err := db.QueryRow(query, userID).Scan(
		&loc.ID,
		&loc.UserID,
		&loc.Latitude,
		&loc.Longitude,
		&loc.IsCurrent,
		&loc.RecordedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &loc, nil
}

// GetReading retrieves the stored reading for a location key, or nil
func (db *DB) GetReading(locationQuery string) (*AirQualityReading, error) {
	query := `
		SELECT location_query, location_name, aqi, approximate, captured_at, updated_at
		FROM air_quality_readings
		WHERE location_query = $1
	`

	var r AirQualityReading
	err := db.QueryRow(query, locationQuery).Scan(
		&r.LocationQuery,
		&r.LocationName,
		&r.AQI,
		&r.Approximate,
		&r.CapturedAt,
		&r.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &r, nil
}

// UpsertReading inserts or overwrites the reading for a location key
func (db *DB) UpsertReading(r *AirQualityReading) error {
	query := `
		INSERT INTO air_quality_readings (location_query, location_name, aqi, approximate, captured_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (location_query) DO UPDATE
		SET location_name = EXCLUDED.location_name,
		    aqi = EXCLUDED.aqi,
		    approximate = EXCLUDED.approximate,
		    captured_at = EXCLUDED.captured_at,
		    updated_at = CURRENT_TIMESTAMP
	`
	_, err := db.Exec(query, r.LocationQuery, r.LocationName, r.AQI, r.Approximate, r.CapturedAt)
	return err
}

// InsertNotificationEvent records a delivered notification for a user
func (db *DB) InsertNotificationEvent(ev *NotificationEvent) error {
	query := `
		INSERT INTO notification_events (id, user_id, title, body, data, read)
		VALUES ($1, $2, $3, $4, $5, false)
	`

	_, err := db.Exec(query, ev.ID, ev.UserID, ev.Title, ev.Body, ev.Data)
	return err
}

// InsertReadingHistory appends one reading update to the history table
func (db *DB) InsertReadingHistory(h *ReadingHistory) error {
	query := `
		INSERT INTO reading_history (location_query, location_name, aqi, approximate, captured_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	return db.QueryRow(
		query,
		h.LocationQuery,
		h.LocationName,
		h.AQI,
		h.Approximate,
		h.CapturedAt,
	).Scan(&h.ID)
}
