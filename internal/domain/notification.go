package domain

import "time"

// NotificationType classifies stored notifications
type NotificationType string

const (
	NotificationTypeChallengeRequest NotificationType = "challenge_request"
)

// Notification is the payload handed to the notification service
type Notification struct {
	UserID     string            `json:"user_id"`
	Type       NotificationType  `json:"type"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	TeamID     string            `json:"team_id,omitempty"`
	FromUserID string            `json:"from_user_id"`
	EventID    string            `json:"event_id"`
	ActionData map[string]string `json:"action_data"`
	CreatedAt  time.Time         `json:"created_at"`
}
