package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/campusfeed/campusfeed/internal/auth"
	"github.com/campusfeed/campusfeed/internal/logging"
	"github.com/campusfeed/campusfeed/internal/sources"
)

// AssignmentSubmitter submits coursework to the LMS on the student's behalf
type AssignmentSubmitter interface {
	SubmitAssignment(ctx context.Context, userID, courseID, assignmentID, body string) (map[string]interface{}, error)
}

// AssignmentAPI handles assignment submission endpoints
type AssignmentAPI struct {
	submitter      AssignmentSubmitter
	feed           FeedBuilder
	authMiddleware *auth.Middleware
	logger         *logging.Logger
}

// NewAssignmentAPI creates an assignment API handler
func NewAssignmentAPI(submitter AssignmentSubmitter, feed FeedBuilder, authMiddleware *auth.Middleware, logger *logging.Logger) *AssignmentAPI {
	return &AssignmentAPI{
		submitter:      submitter,
		feed:           feed,
		authMiddleware: authMiddleware,
		logger:         logger,
	}
}

// RegisterRoutes registers assignment routes on the given mux
func (api *AssignmentAPI) RegisterRoutes(mux *http.ServeMux, corsMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/api/assignments/submit/", corsMiddleware(api.authMiddleware.RequireAuth(api.handleSubmit)))
}

// handleSubmit handles POST /api/assignments/submit/{assignmentId}
func (api *AssignmentAPI) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	assignmentID := strings.TrimPrefix(r.URL.Path, "/api/assignments/submit/")
	if assignmentID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "assignment id is required")
		return
	}

	var params struct {
		CourseID       string `json:"course_id"`
		SubmissionText string `json:"submission_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if params.CourseID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "course_id is required")
		return
	}
	if params.SubmissionText == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "submission_text is required")
		return
	}

	userID := auth.GetUserID(r.Context())

	result, err := api.submitter.SubmitAssignment(r.Context(), userID, params.CourseID, assignmentID, params.SubmissionText)
	if err != nil {
		if errors.Is(err, sources.ErrNoToken) {
			writeError(w, http.StatusBadRequest, "not_linked", "no Canvas account linked")
			return
		}
		api.logger.Error("Assignment submission failed", logging.WithFields(map[string]interface{}{
			"user":       userID,
			"assignment": assignmentID,
			"error":      err.Error(),
		}))
		writeError(w, http.StatusBadGateway, "upstream_error", "submission was rejected by the provider")
		return
	}

	// The submitted assignment's status changed upstream, so the cached feed
	// is stale.
	api.feed.Invalidate(userID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    result,
	})
}
