package database

import (
	"context"
	"database/sql"

	"github.com/campusfeed/campusfeed/internal/models"
)

// NotificationStore handles notification database operations
type NotificationStore struct {
	db *DB
}

// NewNotificationStore creates a new notification store
func NewNotificationStore(db *DB) *NotificationStore {
	return &NotificationStore{db: db}
}

// CreateIfAbsent inserts a notification unless one already exists for
// (user, reference). The unique index on (user_id, reference_id) makes the
// write race-free across concurrent feed builds; it returns (nil, nil) when
// the row already existed.
func (s *NotificationStore) CreateIfAbsent(ctx context.Context, userID string, params models.CreateNotificationParams) (*models.Notification, error) {
	query := `
		INSERT INTO notifications (user_id, type, title, content, reference_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, reference_id) DO NOTHING
		RETURNING notification_id, user_id, type, title, content, reference_id, created_at, is_read, read_at
	`

	notification, err := s.scanNotification(s.db.QueryRowContext(ctx, query,
		userID, params.Type, params.Title, params.Content, params.ReferenceID,
	))
	if err != nil {
		return nil, err
	}
	return notification, nil
}

// Exists reports whether a notification exists for (user, reference)
func (s *NotificationStore) Exists(ctx context.Context, userID, referenceID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM notifications WHERE user_id = $1 AND reference_id = $2)`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, userID, referenceID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// List retrieves the most recent notifications for a user
func (s *NotificationStore) List(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT notification_id, user_id, type, title, content, reference_id, created_at, is_read, read_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var content sql.NullString
		var readAt sql.NullTime

		err := rows.Scan(
			&n.ID, &n.UserID, &n.Type, &n.Title, &content,
			&n.ReferenceID, &n.CreatedAt, &n.IsRead, &readAt,
		)
		if err != nil {
			return nil, err
		}

		n.Content = content.String
		if readAt.Valid {
			n.ReadAt = &readAt.Time
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// MarkRead marks one notification as read
func (s *NotificationStore) MarkRead(ctx context.Context, notificationID, userID string) error {
	query := `
		UPDATE notifications SET is_read = TRUE, read_at = NOW()
		WHERE notification_id = $1 AND user_id = $2
	`
	_, err := s.db.ExecContext(ctx, query, notificationID, userID)
	return err
}

// MarkAllRead marks every notification for a user as read
func (s *NotificationStore) MarkAllRead(ctx context.Context, userID string) error {
	query := `
		UPDATE notifications SET is_read = TRUE, read_at = NOW()
		WHERE user_id = $1 AND is_read = FALSE
	`
	_, err := s.db.ExecContext(ctx, query, userID)
	return err
}

// Delete removes one notification
func (s *NotificationStore) Delete(ctx context.Context, notificationID, userID string) error {
	query := `DELETE FROM notifications WHERE notification_id = $1 AND user_id = $2`
	_, err := s.db.ExecContext(ctx, query, notificationID, userID)
	return err
}

func (s *NotificationStore) scanNotification(row *sql.Row) (*models.Notification, error) {
	n := &models.Notification{}
	var content sql.NullString
	var readAt sql.NullTime

	err := row.Scan(
		&n.ID, &n.UserID, &n.Type, &n.Title, &content,
		&n.ReferenceID, &n.CreatedAt, &n.IsRead, &readAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	n.Content = content.String
	if readAt.Valid {
		n.ReadAt = &readAt.Time
	}

	return n, nil
}
