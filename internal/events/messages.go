// Package events defines the bus message formats exchanged between the
// poller, alerter, recorder, and notifier processes.
package events

import (
	"encoding/json"
	"time"
)

// ReadingUpdate is published whenever the stored reading for a location
// changes. OldAQI is zero for a location seen for the first time.
type ReadingUpdate struct {
	LocationQuery string    `json:"location_query"`
	LocationName  string    `json:"location_name"`
	OldAQI        int       `json:"old_aqi"`
	NewAQI        int       `json:"new_aqi"`
	Approximate   bool      `json:"approximate"`
	CapturedAt    time.Time `json:"captured_at"`
}

// NotificationRequest asks the notifier to deliver one push to one user.
// Requests published outside the threshold pipelines are delivered verbatim.
type NotificationRequest struct {
	UserID  string            `json:"user_id"`
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Data    map[string]string `json:"data"`
	Channel string            `json:"channel"`
}

// Notification channels, mapped to mobile notification channel IDs.
const (
	ChannelAirQuality = "air_quality_alerts"
	ChannelGeneral    = "general_notifications"
)

// Data payload type tags.
const (
	TypeAirQualityAlert  = "air_quality_alert"
	TypeGeneral          = "general"
	TypeTestNotification = "test_notification"
)

// EncodeReadingUpdate encodes a ReadingUpdate to JSON
func EncodeReadingUpdate(update *ReadingUpdate) ([]byte, error) {
	return json.Marshal(update)
}

// DecodeReadingUpdate decodes JSON to ReadingUpdate
func DecodeReadingUpdate(data []byte) (*ReadingUpdate, error) {
	var update ReadingUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return nil, err
	}
	return &update, nil
}

// EncodeNotificationRequest encodes a NotificationRequest to JSON
func EncodeNotificationRequest(req *NotificationRequest) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeNotificationRequest decodes JSON to NotificationRequest
func DecodeNotificationRequest(data []byte) (*NotificationRequest, error) {
	var req NotificationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
