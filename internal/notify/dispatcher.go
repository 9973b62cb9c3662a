package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/bkaraca/airalert/internal/database"
	"github.com/bkaraca/airalert/internal/events"
)

// UserStore provides the user lookups and event records the dispatcher needs.
type UserStore interface {
	GetUser(id string) (*database.User, error)
	InsertNotificationEvent(ev *database.NotificationEvent) error
}

// Sender delivers one notification to one device token.
type Sender interface {
	Send(ctx context.Context, token string, req *events.NotificationRequest) error
}

// Dispatcher delivers notification requests to users and records the
// resulting notification events.
type Dispatcher struct {
	store UserStore
	push  Sender
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(store UserStore, push Sender) *Dispatcher {
	return &Dispatcher{
		store: store,
		push:  push,
	}
}

// Deliver sends one notification request. A user without a device token
// is skipped silently; that is the expected state for users who have not
// registered a device, not an error. An event row is recorded only after
// the push was accepted.
func (d *Dispatcher) Deliver(ctx context.Context, req *events.NotificationRequest) error {
	if req.Data["type"] == events.TypeTestNotification {
		log.Printf("Dropping test notification for user %s", req.UserID)
		return nil
	}

	user, err := d.store.GetUser(req.UserID)
	if err != nil {
		return fmt.Errorf("failed to get user %s: %w", req.UserID, err)
	}
	if user == nil {
		log.Printf("User %s not found, dropping notification", req.UserID)
		return nil
	}

	if user.FCMToken == nil || *user.FCMToken == "" {
		log.Printf("User %s has no device token, skipping", req.UserID)
		return nil
	}

	if err := d.push.Send(ctx, *user.FCMToken, req); err != nil {
		return fmt.Errorf("failed to send push to user %s: %w", req.UserID, err)
	}

	data, err := json.Marshal(req.Data)
	if err != nil {
		return fmt.Errorf("failed to encode event data: %w", err)
	}

	event := &database.NotificationEvent{
		ID:     uuid.NewString(),
		UserID: req.UserID,
		Title:  req.Title,
		Body:   req.Body,
		Data:   string(data),
	}

	if err := d.store.InsertNotificationEvent(event); err != nil {
		return fmt.Errorf("failed to record notification event: %w", err)
	}

	log.Printf("Notification delivered to user %s", req.UserID)
	return nil
}
