// Package notify holds the threshold dispatch rules, push payload
// construction, and delivery of notifications to user devices.
package notify

// ShouldNotifyPoll reports whether a scheduled sweep dispatches for a
// user: the current AQI has reached the user's threshold. The boundary
// is inclusive.
func ShouldNotifyPoll(aqi, threshold int) bool {
	return aqi >= threshold
}

// ShouldNotifyChange reports whether a reading update dispatches for a
// user: the reading worsened and the user's threshold was crossed by
// this update. Users whose threshold was already exceeded before the
// update are excluded, so consecutive worsening updates do not re-fire.
func ShouldNotifyChange(oldAQI, newAQI, threshold int) bool {
	return newAQI > oldAQI && threshold <= newAQI && threshold > oldAQI
}
