// Package alerting applies the change-triggered notification policy to
// reading updates coming off the bus.
package alerting

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bkaraca/airalert/internal/database"
	"github.com/bkaraca/airalert/internal/events"
	"github.com/bkaraca/airalert/internal/notify"
)

// UserSource selects the users eligible for a worsening reading update.
type UserSource interface {
	ListUsersInThresholdBand(oldAQI, newAQI int) ([]*database.User, error)
}

// Publisher publishes notification requests onto the bus.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Evaluator fans a reading update out to the users it newly affects.
type Evaluator struct {
	users         UserSource
	notifications Publisher
	now           func() time.Time
}

// NewEvaluator creates a new evaluator
func NewEvaluator(users UserSource, notifications Publisher) *Evaluator {
	return &Evaluator{
		users:         users,
		notifications: notifications,
		now:           time.Now,
	}
}

// EvaluateUpdate publishes one worsening alert per user whose threshold
// was crossed by this update. Improving or unchanged readings never fire.
// A failure for one user is logged and does not stop the others; the
// batch itself only fails when the user query fails.
func (e *Evaluator) EvaluateUpdate(ctx context.Context, update *events.ReadingUpdate) error {
	if update.NewAQI <= update.OldAQI {
		log.Printf("Reading for %s improved or unchanged (AQI: %d -> %d), nothing to do",
			update.LocationQuery, update.OldAQI, update.NewAQI)
		return nil
	}

	users, err := e.users.ListUsersInThresholdBand(update.OldAQI, update.NewAQI)
	if err != nil {
		return fmt.Errorf("failed to list users for update: %w", err)
	}

	if len(users) == 0 {
		log.Printf("No users newly crossed by %s (AQI: %d -> %d)",
			update.LocationQuery, update.OldAQI, update.NewAQI)
		return nil
	}

	dispatched := 0
	for _, user := range users {
		if !notify.ShouldNotifyChange(update.OldAQI, update.NewAQI, user.NotificationThreshold) {
			continue
		}

		req := notify.BuildWorseningAlert(update.LocationName, update.OldAQI, update.NewAQI, update.Approximate, e.now())
		req.UserID = user.ID

		data, err := events.EncodeNotificationRequest(req)
		if err != nil {
			log.Printf("Failed to encode notification for user %s: %v", user.ID, err)
			continue
		}

		if err := e.notifications.Publish(ctx, user.ID, data); err != nil {
			log.Printf("Failed to publish notification for user %s: %v", user.ID, err)
			continue
		}
		dispatched++
	}

	log.Printf("Reading update %s (AQI: %d -> %d) dispatched %d notifications",
		update.LocationQuery, update.OldAQI, update.NewAQI, dispatched)
	return nil
}
