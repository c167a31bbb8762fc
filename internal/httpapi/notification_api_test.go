package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/campusfeed/campusfeed/internal/models"
	"github.com/campusfeed/campusfeed/internal/testutil"
)

type mockNotifications struct {
	notifications []models.Notification
	markedRead    []string
	markedAllRead bool
	deleted       []string
}

func (m *mockNotifications) List(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit < len(m.notifications) {
		return m.notifications[:limit], nil
	}
	return m.notifications, nil
}

func (m *mockNotifications) MarkRead(ctx context.Context, notificationID, userID string) error {
	m.markedRead = append(m.markedRead, notificationID)
	return nil
}

func (m *mockNotifications) MarkAllRead(ctx context.Context, userID string) error {
	m.markedAllRead = true
	return nil
}

func (m *mockNotifications) Delete(ctx context.Context, notificationID, userID string) error {
	m.deleted = append(m.deleted, notificationID)
	return nil
}

func newNotificationAPI(store NotificationReader) *NotificationAPI {
	return NewNotificationAPI(store, nil, testutil.NullLogger())
}

func TestHandleNotificationList(t *testing.T) {
	store := &mockNotifications{
		notifications: []models.Notification{
			{ID: "n-1", UserID: "user-1", Title: "New Assignment: PS3", CreatedAt: time.Now()},
			{ID: "n-2", UserID: "user-1", Title: "Upcoming Event: Review", IsRead: true, CreatedAt: time.Now()},
		},
	}
	api := newNotificationAPI(store)

	w := httptest.NewRecorder()
	api.handleList(w, authedRequest(http.MethodGet, "/api/notifications", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var response struct {
		Success     bool                  `json:"success"`
		Count       int                   `json:"count"`
		UnreadCount int                   `json:"unread_count"`
		Data        []models.Notification `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.Count != 2 {
		t.Errorf("count = %d, want 2", response.Count)
	}
	if response.UnreadCount != 1 {
		t.Errorf("unread_count = %d, want 1", response.UnreadCount)
	}
}

func TestHandleNotificationList_Limit(t *testing.T) {
	store := &mockNotifications{
		notifications: []models.Notification{
			{ID: "n-1"}, {ID: "n-2"}, {ID: "n-3"},
		},
	}
	api := newNotificationAPI(store)

	w := httptest.NewRecorder()
	api.handleList(w, authedRequest(http.MethodGet, "/api/notifications?limit=2", nil))

	var response struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Count != 2 {
		t.Errorf("count = %d, want limit applied", response.Count)
	}
}

func TestHandleNotificationMarkRead(t *testing.T) {
	store := &mockNotifications{}
	api := newNotificationAPI(store)

	w := httptest.NewRecorder()
	api.handleItem(w, authedRequest(http.MethodPut, "/api/notifications/n-42/read", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if len(store.markedRead) != 1 || store.markedRead[0] != "n-42" {
		t.Errorf("markedRead = %v, want [n-42]", store.markedRead)
	}
}

func TestHandleNotificationMarkAllRead(t *testing.T) {
	store := &mockNotifications{}
	api := newNotificationAPI(store)

	w := httptest.NewRecorder()
	api.handleMarkAllRead(w, authedRequest(http.MethodPut, "/api/notifications/read-all", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !store.markedAllRead {
		t.Error("MarkAllRead was not called")
	}
}

func TestHandleNotificationDelete(t *testing.T) {
	store := &mockNotifications{}
	api := newNotificationAPI(store)

	w := httptest.NewRecorder()
	api.handleItem(w, authedRequest(http.MethodDelete, "/api/notifications/n-7", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "n-7" {
		t.Errorf("deleted = %v, want [n-7]", store.deleted)
	}
}

func TestHandleNotificationItem_WrongMethod(t *testing.T) {
	api := newNotificationAPI(&mockNotifications{})

	w := httptest.NewRecorder()
	api.handleItem(w, authedRequest(http.MethodGet, "/api/notifications/n-7", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}
