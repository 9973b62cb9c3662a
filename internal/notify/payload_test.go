package notify

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bkaraca/airalert/internal/events"
)

var testNow = time.Date(2024, 11, 5, 14, 30, 0, 0, time.UTC)

func TestBuildThresholdAlert(t *testing.T) {
	got := BuildThresholdAlert("Kadikoy, Istanbul", "Unhealthy", 160, false, testNow)

	want := &events.NotificationRequest{
		Title: "Hava Kalitesi Uyarısı",
		Body:  "Kadikoy, Istanbul bölgesinde hava kalitesi Unhealthy seviyesinde (AQI: 160). Lütfen gerekli önlemleri alın.",
		Data: map[string]string{
			"type":      "air_quality_alert",
			"aqi":       "160",
			"location":  "Kadikoy, Istanbul",
			"category":  "Unhealthy",
			"timestamp": "2024-11-05T14:30:00Z",
		},
		Channel: events.ChannelAirQuality,
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildThresholdAlertApproximate(t *testing.T) {
	got := BuildThresholdAlert("Istanbul", "Moderate", 90, true, testNow)

	if got.Data["approximate"] != "true" {
		t.Errorf("approximate flag missing from data: %v", got.Data)
	}
}

func TestBuildWorseningAlert(t *testing.T) {
	got := BuildWorseningAlert("Istanbul", 80, 120, false, testNow)

	want := &events.NotificationRequest{
		Title: "Hava Kalitesi Uyarısı",
		Body:  "Istanbul bölgesinde hava kalitesi kötüleşti (AQI: 80 -> 120)",
		Data: map[string]string{
			"type":      "air_quality_alert",
			"aqi":       "120",
			"oldAqi":    "80",
			"location":  "Istanbul",
			"timestamp": "2024-11-05T14:30:00Z",
		},
		Channel: events.ChannelAirQuality,
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}

	if _, ok := got.Data["category"]; ok {
		t.Error("worsening alert must not carry a category")
	}
}
