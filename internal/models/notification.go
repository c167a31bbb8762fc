package models

import "time"

// NotificationType mirrors the kind of feed item a notification was derived
// from
type NotificationType string

const (
	NotificationAssignment   NotificationType = "assignment"
	NotificationEvent        NotificationType = "event"
	NotificationAnnouncement NotificationType = "announcement"
)

// Notification is a persisted alert derived from a feed item. ReferenceID is
// the originating FeedItem ID; (UserID, ReferenceID) is unique so repeated
// feed builds never duplicate a notification.
type Notification struct {
	ID          string           `json:"notification_id"`
	UserID      string           `json:"user_id"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Content     string           `json:"content"`
	ReferenceID string           `json:"reference_id"`
	CreatedAt   time.Time        `json:"created_at"`
	IsRead      bool             `json:"is_read"`
	ReadAt      *time.Time       `json:"read_at,omitempty"`
}

// CreateNotificationParams holds the fields for inserting a notification
type CreateNotificationParams struct {
	Type        NotificationType
	Title       string
	Content     string
	ReferenceID string
}
