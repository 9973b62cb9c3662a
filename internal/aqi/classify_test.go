package aqi

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		aqi  int
		want string
	}{
		{0, CategoryGood},
		{25, CategoryGood},
		{50, CategoryGood},
		{51, CategoryModerate},
		{100, CategoryModerate},
		{101, CategorySensitive},
		{150, CategorySensitive},
		{151, CategoryUnhealthy},
		{200, CategoryUnhealthy},
		{201, CategoryVeryUnhealthy},
		{300, CategoryVeryUnhealthy},
		{301, CategoryHazardous},
		{999, CategoryHazardous},
	}

	for _, tt := range tests {
		if got := Classify(tt.aqi); got != tt.want {
			t.Errorf("Classify(%d) = %q, want %q", tt.aqi, got, tt.want)
		}
	}
}
