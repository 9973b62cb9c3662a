package notify

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bkaraca/airalert/internal/events"
)

const alertTitle = "Hava Kalitesi Uyarısı"

// BuildThresholdAlert builds the poll-triggered notification: the current
// reading sits at or above the user's threshold.
func BuildThresholdAlert(location, category string, aqi int, approximate bool, now time.Time) *events.NotificationRequest {
	data := map[string]string{
		"type":      events.TypeAirQualityAlert,
		"aqi":       strconv.Itoa(aqi),
		"location":  location,
		"category":  category,
		"timestamp": now.UTC().Format(time.RFC3339),
	}
	if approximate {
		data["approximate"] = "true"
	}

	return &events.NotificationRequest{
		Title:   alertTitle,
		Body:    fmt.Sprintf("%s bölgesinde hava kalitesi %s seviyesinde (AQI: %d). Lütfen gerekli önlemleri alın.", location, category, aqi),
		Data:    data,
		Channel: events.ChannelAirQuality,
	}
}

// BuildWorseningAlert builds the change-triggered notification: the
// reading worsened past the user's threshold. Unlike the poll-triggered
// variant it carries the previous AQI and no category.
func BuildWorseningAlert(location string, oldAQI, newAQI int, approximate bool, now time.Time) *events.NotificationRequest {
	data := map[string]string{
		"type":      events.TypeAirQualityAlert,
		"aqi":       strconv.Itoa(newAQI),
		"oldAqi":    strconv.Itoa(oldAQI),
		"location":  location,
		"timestamp": now.UTC().Format(time.RFC3339),
	}
	if approximate {
		data["approximate"] = "true"
	}

	return &events.NotificationRequest{
		Title:   alertTitle,
		Body:    fmt.Sprintf("%s bölgesinde hava kalitesi kötüleşti (AQI: %d -> %d)", location, oldAQI, newAQI),
		Data:    data,
		Channel: events.ChannelAirQuality,
	}
}
