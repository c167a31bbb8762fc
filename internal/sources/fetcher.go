package sources

import (
	"context"
	"time"

	"github.com/campusfeed/campusfeed/internal/models"
)

// Fetcher is a per-provider source adapter. Fetch resolves the user's token,
// calls the upstream API and returns normalized feed items. A missing
// credential is reported as ErrNoToken; upstream failures are returned as
// ordinary errors and folded into an empty contribution by the feed service.
type Fetcher interface {
	Platform() models.Platform
	ProviderID() models.ProviderID
	Fetch(ctx context.Context, userID string) ([]models.FeedItem, error)
	ValidateToken(ctx context.Context, token string) error
}

// FetchResult captures one adapter's outcome during the fan-out
type FetchResult struct {
	Platform models.Platform
	Items    []models.FeedItem
	Err      error
}

// FetcherConfig bounds adapter behavior
type FetcherConfig struct {
	Timeout         time.Duration // per-upstream-call budget for calendar providers
	UserAgent       string
	MaxCourses      int // Canvas: courses fetched per feed build, caps latency and volume
	MaxEvents       int // calendar providers: events per calendar
	EventWindowDays int // Outlook: upcoming window length
}

// DefaultConfig returns the adapter defaults
func DefaultConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:         8 * time.Second,
		UserAgent:       "CampusFeed/1.0",
		MaxCourses:      3,
		MaxEvents:       20,
		EventWindowDays: 60,
	}
}
