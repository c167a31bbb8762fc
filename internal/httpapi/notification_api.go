package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/campusfeed/campusfeed/internal/auth"
	"github.com/campusfeed/campusfeed/internal/logging"
	"github.com/campusfeed/campusfeed/internal/models"
)

// NotificationReader covers the notification store operations the HTTP layer
// uses
type NotificationReader interface {
	List(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, notificationID, userID string) error
}

// NotificationAPI handles notification HTTP endpoints
type NotificationAPI struct {
	store          NotificationReader
	authMiddleware *auth.Middleware
	logger         *logging.Logger
}

// NewNotificationAPI creates a notification API handler
func NewNotificationAPI(store NotificationReader, authMiddleware *auth.Middleware, logger *logging.Logger) *NotificationAPI {
	return &NotificationAPI{
		store:          store,
		authMiddleware: authMiddleware,
		logger:         logger,
	}
}

// RegisterRoutes registers notification routes on the given mux
func (api *NotificationAPI) RegisterRoutes(mux *http.ServeMux, corsMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/api/notifications", corsMiddleware(api.authMiddleware.RequireAuth(api.handleList)))
	mux.HandleFunc("/api/notifications/read-all", corsMiddleware(api.authMiddleware.RequireAuth(api.handleMarkAllRead)))
	mux.HandleFunc("/api/notifications/", corsMiddleware(api.authMiddleware.RequireAuth(api.handleItem)))
}

func (api *NotificationAPI) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := auth.GetUserID(r.Context())

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	notifications, err := api.store.List(r.Context(), userID, limit)
	if err != nil {
		api.logger.Error("Failed to list notifications", logging.WithField("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load notifications")
		return
	}

	unread := 0
	for _, n := range notifications {
		if !n.IsRead {
			unread++
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"count":        len(notifications),
		"unread_count": unread,
		"data":         notifications,
	})
}

func (api *NotificationAPI) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := auth.GetUserID(r.Context())

	if err := api.store.MarkAllRead(r.Context(), userID); err != nil {
		api.logger.Error("Failed to mark notifications read", logging.WithField("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to mark notifications read")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// handleItem dispatches /api/notifications/{id} and /api/notifications/{id}/read
func (api *NotificationAPI) handleItem(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/notifications/")
	userID := auth.GetUserID(r.Context())

	if id, ok := strings.CutSuffix(path, "/read"); ok {
		if r.Method != http.MethodPut {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if id == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "notification id is required")
			return
		}

		if err := api.store.MarkRead(r.Context(), id, userID); err != nil {
			api.logger.Error("Failed to mark notification read", logging.WithField("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to mark notification read")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
		return
	}

	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if path == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "notification id is required")
		return
	}

	if err := api.store.Delete(r.Context(), path, userID); err != nil {
		api.logger.Error("Failed to delete notification", logging.WithField("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete notification")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
