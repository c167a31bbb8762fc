// Package httpapi exposes the REST surface: auth, the aggregated feed,
// integration linking, notifications, assignment submission and profile.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/campusfeed/campusfeed/internal/auth"
	"github.com/campusfeed/campusfeed/internal/logging"
)

type Server struct {
	authSvc        *auth.Service
	authMiddleware *auth.Middleware
	integrationAPI *IntegrationAPI
	notifyAPI      *NotificationAPI
	assignmentAPI  *AssignmentAPI
	profileAPI     *ProfileAPI
	logger         *logging.Logger
	server         *http.Server
}

func New(authSvc *auth.Service, authMiddleware *auth.Middleware, integrationAPI *IntegrationAPI, notifyAPI *NotificationAPI, assignmentAPI *AssignmentAPI, profileAPI *ProfileAPI, logger *logging.Logger) *Server {
	return &Server{
		authSvc:        authSvc,
		authMiddleware: authMiddleware,
		integrationAPI: integrationAPI,
		notifyAPI:      notifyAPI,
		assignmentAPI:  assignmentAPI,
		profileAPI:     profileAPI,
		logger:         logger,
	}
}

func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()

	// Auth routes
	authAPI := NewAuthAPI(s.authSvc, s.authMiddleware, s.logger)
	authAPI.RegisterRoutes(mux, s.corsMiddleware)

	// Feed and account linking routes
	s.integrationAPI.RegisterRoutes(mux, s.corsMiddleware)

	// Notification routes
	s.notifyAPI.RegisterRoutes(mux, s.corsMiddleware)

	// Assignment submission routes
	s.assignmentAPI.RegisterRoutes(mux, s.corsMiddleware)

	// Profile routes
	s.profileAPI.RegisterRoutes(mux, s.corsMiddleware)

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("HTTP API server starting", logging.WithField("addr", addr))
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
