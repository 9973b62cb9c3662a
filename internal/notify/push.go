package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bkaraca/airalert/internal/events"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// PushClient delivers notifications to devices through the FCM HTTP API.
type PushClient struct {
	httpClient HTTPClient
	endpoint   string
	projectID  string
	authToken  string
}

// NewPushClient creates a push client. With no project ID or auth token
// configured, sends are logged and skipped instead of attempted.
func NewPushClient(client HTTPClient, endpoint, projectID, authToken string) *PushClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &PushClient{
		httpClient: client,
		endpoint:   endpoint,
		projectID:  projectID,
		authToken:  authToken,
	}
}

type pushMessage struct {
	Message struct {
		Token        string            `json:"token"`
		Notification pushNotification  `json:"notification"`
		Data         map[string]string `json:"data,omitempty"`
		Android      androidConfig     `json:"android"`
		APNS         apnsConfig        `json:"apns"`
	} `json:"message"`
}

type pushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type androidConfig struct {
	Notification androidNotification `json:"notification"`
}

type androidNotification struct {
	ChannelID   string `json:"channel_id"`
	Priority    string `json:"notification_priority"`
	Sound       string `json:"sound"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
	ClickAction string `json:"click_action"`
}

type apnsConfig struct {
	Headers map[string]string `json:"headers"`
	Payload apnsPayload       `json:"payload"`
}

type apnsPayload struct {
	APS apsDictionary `json:"aps"`
}

type apsDictionary struct {
	Sound            string `json:"sound"`
	Badge            int    `json:"badge"`
	ContentAvailable int    `json:"content-available"`
	Category         string `json:"category"`
}

// Send delivers one notification request to the given device token.
func (c *PushClient) Send(ctx context.Context, token string, req *events.NotificationRequest) error {
	// Skip sending if push delivery is not configured
	if c.projectID == "" || c.authToken == "" {
		fmt.Printf("Push not configured, skipping send:\nTitle: %s\n%s\n", req.Title, req.Body)
		return nil
	}

	msg := buildPushMessage(token, req)

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode push message: %w", err)
	}

	u := fmt.Sprintf("%s/%s/messages:send", c.endpoint, c.projectID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("push delivery returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

func buildPushMessage(token string, req *events.NotificationRequest) *pushMessage {
	apnsCategory := "AIR_QUALITY_ALERT"
	if req.Channel == events.ChannelGeneral {
		apnsCategory = "GENERAL_NOTIFICATION"
	}

	var msg pushMessage
	msg.Message.Token = token
	msg.Message.Notification = pushNotification{
		Title: req.Title,
		Body:  req.Body,
	}
	msg.Message.Data = req.Data
	msg.Message.Android = androidConfig{
		Notification: androidNotification{
			ChannelID:   req.Channel,
			Priority:    "PRIORITY_HIGH",
			Sound:       "default",
			Color:       "#4CAF50",
			Icon:        "ic_notification",
			ClickAction: "FLUTTER_NOTIFICATION_CLICK",
		},
	}
	msg.Message.APNS = apnsConfig{
		Headers: map[string]string{"apns-priority": "10"},
		Payload: apnsPayload{
			APS: apsDictionary{
				Sound:            "default",
				Badge:            1,
				ContentAvailable: 1,
				Category:         apnsCategory,
			},
		},
	}

	return &msg
}
