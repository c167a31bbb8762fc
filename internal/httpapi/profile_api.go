package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/campusfeed/campusfeed/internal/auth"
	"github.com/campusfeed/campusfeed/internal/logging"
	"github.com/campusfeed/campusfeed/internal/models"
)

// ProfileStore covers the user store operations behind the profile routes
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, id string, params models.UpdateUserParams) (*models.User, error)
}

// ProfileAPI handles the student profile endpoints
type ProfileAPI struct {
	users          ProfileStore
	authMiddleware *auth.Middleware
	logger         *logging.Logger
}

// NewProfileAPI creates a profile API handler
func NewProfileAPI(users ProfileStore, authMiddleware *auth.Middleware, logger *logging.Logger) *ProfileAPI {
	return &ProfileAPI{
		users:          users,
		authMiddleware: authMiddleware,
		logger:         logger,
	}
}

// RegisterRoutes registers profile routes on the given mux
func (api *ProfileAPI) RegisterRoutes(mux *http.ServeMux, corsMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/api/profile", corsMiddleware(api.authMiddleware.RequireAuth(api.handleProfile)))
}

func (api *ProfileAPI) handleProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		api.handleGet(w, r)
	case http.MethodPut:
		api.handleUpdate(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (api *ProfileAPI) handleGet(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())

	user, err := api.users.GetByID(r.Context(), userID)
	if err != nil {
		api.logger.Error("Failed to load profile", logging.WithField("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load profile")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "not_found", "user not found")
		return
	}

	writeJSON(w, http.StatusOK, profileResponse(user))
}

func (api *ProfileAPI) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var params struct {
		Name  *string `json:"name"`
		Major *string `json:"major"`
		Year  *string `json:"year"`
		GPA   *string `json:"gpa"`
	}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	userID := auth.GetUserID(r.Context())

	update := models.UpdateUserParams{
		DisplayName: params.Name,
	}

	if params.Major != nil || params.Year != nil || params.GPA != nil {
		current, err := api.users.GetByID(r.Context(), userID)
		if err != nil {
			api.logger.Error("Failed to load profile for update", logging.WithField("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to update profile")
			return
		}
		if current == nil {
			writeError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}

		prefs := current.Preferences
		if params.Major != nil {
			prefs.Major = *params.Major
		}
		if params.Year != nil {
			prefs.Year = *params.Year
		}
		if params.GPA != nil {
			prefs.GPA = *params.GPA
		}
		update.Preferences = &prefs
	}

	user, err := api.users.Update(r.Context(), userID, update)
	if err != nil {
		api.logger.Error("Failed to update profile", logging.WithField("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to update profile")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "not_found", "user not found")
		return
	}

	writeJSON(w, http.StatusOK, profileResponse(user))
}

// profileResponse fills in the placeholder profile fields a new student sees
// before editing anything.
func profileResponse(user *models.User) map[string]interface{} {
	prefs := user.Preferences
	defaults := models.DefaultProfilePreferences()
	if prefs.Major == "" {
		prefs.Major = defaults.Major
	}
	if prefs.Year == "" {
		prefs.Year = defaults.Year
	}
	if prefs.GPA == "" {
		prefs.GPA = defaults.GPA
	}

	return map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"id":        user.ID,
			"email":     user.Email,
			"name":      user.DisplayName,
			"major":     prefs.Major,
			"year":      prefs.Year,
			"gpa":       prefs.GPA,
			"createdAt": user.CreatedAt,
		},
	}
}
