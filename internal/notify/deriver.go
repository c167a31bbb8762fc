// Package notify derives persisted notifications from feed items.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/campusfeed/campusfeed/internal/logging"
	"github.com/campusfeed/campusfeed/internal/models"
)

const (
	urgentHorizon  = 24 * time.Hour
	standardWindow = 7 // days
)

// Creator is the slice of the notification store the deriver writes through
type Creator interface {
	CreateIfAbsent(ctx context.Context, userID string, params models.CreateNotificationParams) (*models.Notification, error)
}

// Deriver decides which feed items warrant a notification, composes the text
// and persists them idempotently. The unique (user, reference) index in the
// store makes repeated derivations over the same feed a no-op.
type Deriver struct {
	store  Creator
	logger *logging.Logger
	now    func() time.Time
}

// New creates a notification deriver
func New(store Creator, logger *logging.Logger) *Deriver {
	return &Deriver{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// DeriveAndPersist walks the items and inserts a notification for each
// eligible one that does not already exist. A failed insert is logged and
// skipped; the remaining items are still processed. Returns the notifications
// actually created.
func (d *Deriver) DeriveAndPersist(ctx context.Context, userID string, items []models.FeedItem) []models.Notification {
	created := make([]models.Notification, 0)

	for _, item := range items {
		if !d.eligible(item) {
			continue
		}

		params := models.CreateNotificationParams{
			Type:        notificationType(item),
			Title:       d.composeTitle(item),
			Content:     d.composeContent(item),
			ReferenceID: item.ID,
		}

		notification, err := d.store.CreateIfAbsent(ctx, userID, params)
		if err != nil {
			d.logger.Error("Failed to persist notification", logging.WithFields(map[string]interface{}{
				"user":  userID,
				"item":  item.ID,
				"error": err.Error(),
			}))
			continue
		}
		if notification == nil {
			// Already notified for this item
			continue
		}

		d.logger.Info("Created notification", logging.WithFields(map[string]interface{}{
			"user": userID,
			"item": item.ID,
		}))
		created = append(created, *notification)
	}

	return created
}

// eligible applies the urgent rule first, then the standard 7-day window.
// Only assignments and events qualify, and only when they carry an effective
// date that is not in the past.
func (d *Deriver) eligible(item models.FeedItem) bool {
	if item.Kind != models.KindAssignment && item.Kind != models.KindEvent {
		return false
	}

	target := item.EffectiveDate()
	if target == nil {
		return false
	}

	until := target.Sub(d.now())
	if d.urgent(item, until) {
		return true
	}

	days := int(until.Hours() / 24)
	return until >= 0 && days <= standardWindow
}

func (d *Deriver) urgent(item models.FeedItem, until time.Duration) bool {
	return until > 0 && until <= urgentHorizon && item.Priority == models.PriorityHigh
}

func (d *Deriver) composeTitle(item models.FeedItem) string {
	until := item.EffectiveDate().Sub(d.now())

	if d.urgent(item, until) {
		hours := int(until.Hours())
		if item.Kind == models.KindAssignment {
			return fmt.Sprintf("URGENT: %s - Due in %d hours!", item.Title, hours)
		}
		return fmt.Sprintf("URGENT: %s - Starts in %d hours!", item.Title, hours)
	}

	switch item.Kind {
	case models.KindAssignment:
		return "New Assignment: " + item.Title
	case models.KindEvent:
		return "Upcoming Event: " + item.Title
	}
	return item.Title
}

func (d *Deriver) composeContent(item models.FeedItem) string {
	target := item.EffectiveDate()
	until := target.Sub(d.now())
	days := int(until.Hours() / 24)

	var phrase string
	switch {
	case d.urgent(item, until):
		hours := int(until.Hours())
		minutes := int(until.Minutes()) - hours*60
		phrase = fmt.Sprintf("ONLY %dh %dm remaining! Act now!", hours, minutes)
	case days == 0:
		phrase = "Due today"
	case days == 1:
		phrase = "Due tomorrow"
	case days <= standardWindow:
		phrase = fmt.Sprintf("Due in %d days", days)
	default:
		phrase = "Due " + target.Format("Jan 2, 2006")
	}

	if item.Course != "" {
		return phrase + " - " + item.Course
	}
	return phrase
}

func notificationType(item models.FeedItem) models.NotificationType {
	switch item.Kind {
	case models.KindEvent:
		return models.NotificationEvent
	case models.KindAnnouncement:
		return models.NotificationAnnouncement
	}
	return models.NotificationAssignment
}
