package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/campusfeed/campusfeed/internal/auth"
	"github.com/campusfeed/campusfeed/internal/logging"
	"github.com/campusfeed/campusfeed/internal/models"
	"github.com/campusfeed/campusfeed/internal/sources"
)

// FeedBuilder is the slice of the feed service the HTTP layer needs
type FeedBuilder interface {
	Build(ctx context.Context, userID string) (*models.FeedResult, error)
	Invalidate(userID string)
}

// AccountManager covers the account store operations behind the linking routes
type AccountManager interface {
	Upsert(ctx context.Context, userID string, platform models.ProviderID, accessToken, refreshToken string) error
	List(ctx context.Context, userID string) ([]models.ConnectedAccount, error)
	Delete(ctx context.Context, userID string, platform models.ProviderID) error
}

// IntegrationAPI handles the aggregated feed and account linking endpoints
type IntegrationAPI struct {
	feed           FeedBuilder
	accounts       AccountManager
	fetchers       map[models.ProviderID]sources.Fetcher
	authMiddleware *auth.Middleware
	logger         *logging.Logger
	titler         cases.Caser
}

// NewIntegrationAPI creates an integration API handler
func NewIntegrationAPI(feed FeedBuilder, accounts AccountManager, fetchers map[models.ProviderID]sources.Fetcher, authMiddleware *auth.Middleware, logger *logging.Logger) *IntegrationAPI {
	return &IntegrationAPI{
		feed:           feed,
		accounts:       accounts,
		fetchers:       fetchers,
		authMiddleware: authMiddleware,
		logger:         logger,
		titler:         cases.Title(language.English),
	}
}

// RegisterRoutes registers integration routes on the given mux
func (api *IntegrationAPI) RegisterRoutes(mux *http.ServeMux, corsMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/api/integrations/feed", corsMiddleware(api.authMiddleware.RequireAuth(api.handleFeed)))
	mux.HandleFunc("/api/integrations/status", corsMiddleware(api.authMiddleware.RequireAuth(api.handleStatus)))
	mux.HandleFunc("/api/integrations/link/", corsMiddleware(api.authMiddleware.RequireAuth(api.handleLink)))
	mux.HandleFunc("/api/integrations/", corsMiddleware(api.authMiddleware.RequireAuth(api.handleDisconnect)))
}

func (api *IntegrationAPI) handleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := auth.GetUserID(r.Context())

	result, err := api.feed.Build(r.Context(), userID)
	if err != nil {
		api.logger.Error("Feed build failed", logging.WithFields(map[string]interface{}{
			"user":  userID,
			"error": err.Error(),
		}))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to build feed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"count":            len(result.Items),
		"source_breakdown": result.Breakdown,
		"data":             result.Items,
	})
}

func (api *IntegrationAPI) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := auth.GetUserID(r.Context())

	accounts, err := api.accounts.List(r.Context(), userID)
	if err != nil {
		api.logger.Error("Failed to list connected accounts", logging.WithField("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load integration status")
		return
	}

	linked := make(map[models.ProviderID]models.ConnectedAccount, len(accounts))
	for _, account := range accounts {
		linked[account.Platform] = account
	}

	statuses := make([]models.AccountStatus, 0, 3)
	for _, provider := range []models.ProviderID{models.ProviderCanvas, models.ProviderOutlook, models.ProviderGoogle} {
		status := models.AccountStatus{
			ID:   provider,
			Name: api.titler.String(string(provider)),
		}
		if account, ok := linked[provider]; ok {
			status.Connected = true
			lastSync := account.LastSync
			status.LastSync = &lastSync
		}
		statuses = append(statuses, status)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"platforms": statuses,
	})
}

func (api *IntegrationAPI) handleLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	provider := models.ProviderID(strings.TrimPrefix(r.URL.Path, "/api/integrations/link/"))
	if !models.IsValidProvider(provider) {
		writeError(w, http.StatusBadRequest, "unknown_platform", "unknown platform")
		return
	}

	var params struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if params.AccessToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "access_token is required")
		return
	}

	// Reject tokens the provider itself will not accept
	if fetcher, ok := api.fetchers[provider]; ok {
		if err := fetcher.ValidateToken(r.Context(), params.AccessToken); err != nil {
			api.logger.Warn("Token validation failed during linking", logging.WithFields(map[string]interface{}{
				"platform": provider,
				"error":    err.Error(),
			}))
			writeError(w, http.StatusUnauthorized, "invalid_token", "the provider rejected this token")
			return
		}
	}

	userID := auth.GetUserID(r.Context())
	if err := api.accounts.Upsert(r.Context(), userID, provider, params.AccessToken, params.RefreshToken); err != nil {
		api.logger.Error("Failed to store connected account", logging.WithField("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to link account")
		return
	}

	api.feed.Invalidate(userID)

	api.logger.Info("Account linked", logging.WithFields(map[string]interface{}{
		"user":     userID,
		"platform": provider,
	}))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"platform": provider,
	})
}

func (api *IntegrationAPI) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	provider := models.ProviderID(strings.TrimPrefix(r.URL.Path, "/api/integrations/"))
	if !models.IsValidProvider(provider) {
		writeError(w, http.StatusBadRequest, "unknown_platform", "unknown platform")
		return
	}

	userID := auth.GetUserID(r.Context())
	if err := api.accounts.Delete(r.Context(), userID, provider); err != nil {
		api.logger.Error("Failed to disconnect account", logging.WithField("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to disconnect account")
		return
	}

	api.feed.Invalidate(userID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"platform": provider,
	})
}
