package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/campusfeed/campusfeed/internal/logging"
	"github.com/campusfeed/campusfeed/internal/models"
	"github.com/campusfeed/campusfeed/internal/ratelimit"
)

const googleCalendarBaseURL = "https://www.googleapis.com/calendar/v3"

// GoogleFetcher pulls upcoming events from the user's primary Google
// Calendar.
type GoogleFetcher struct {
	baseURL string
	tokens  *TokenSource
	limiter *ratelimit.Limiter
	config  FetcherConfig
	logger  *logging.Logger
	client  *http.Client
}

// Google Calendar uses dateTime for timed events and date for all-day ones,
// only one of which is set.
type googleEventTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

type googleEvent struct {
	ID          string           `json:"id"`
	Summary     string           `json:"summary"`
	Description string           `json:"description"`
	Start       *googleEventTime `json:"start"`
	End         *googleEventTime `json:"end"`
	HTMLLink    string           `json:"htmlLink"`
}

type googleEventList struct {
	Items []googleEvent `json:"items"`
}

// NewGoogleFetcher creates a Google Calendar source adapter
func NewGoogleFetcher(tokens *TokenSource, limiter *ratelimit.Limiter, config FetcherConfig, logger *logging.Logger) *GoogleFetcher {
	return &GoogleFetcher{
		baseURL: googleCalendarBaseURL,
		tokens:  tokens,
		limiter: limiter,
		config:  config,
		logger:  logger,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

func (f *GoogleFetcher) Platform() models.Platform {
	return models.PlatformGoogle
}

func (f *GoogleFetcher) ProviderID() models.ProviderID {
	return models.ProviderGoogle
}

// Fetch lists upcoming events on the primary calendar, from the start of the
// current day forward, recurring events expanded and ordered by start time.
func (f *GoogleFetcher) Fetch(ctx context.Context, userID string) ([]models.FeedItem, error) {
	token, err := f.tokens.Token(ctx, userID)
	if err != nil {
		return nil, err
	}

	f.limiter.Wait(hostOf(f.baseURL))

	now := time.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	query := url.Values{}
	query.Set("timeMin", startOfDay.Format(time.RFC3339))
	query.Set("maxResults", fmt.Sprintf("%d", f.config.MaxEvents))
	query.Set("singleEvents", "true")
	query.Set("orderBy", "startTime")

	listURL := f.baseURL + "/calendars/primary/events?" + query.Encode()

	var list googleEventList
	if err := f.getJSON(ctx, token, listURL, &list); err != nil {
		return nil, fmt.Errorf("failed to list google events: %w", err)
	}

	items := make([]models.FeedItem, 0, len(list.Items))
	for _, event := range list.Items {
		items = append(items, normalizeGoogleEvent(event))
	}

	return items, nil
}

// ValidateToken checks a candidate token by reading primary calendar metadata
func (f *GoogleFetcher) ValidateToken(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("google: %w", ErrNoToken)
	}
	var calendar map[string]interface{}
	if err := f.getJSON(ctx, token, f.baseURL+"/calendars/primary", &calendar); err != nil {
		return fmt.Errorf("google token rejected: %w", err)
	}
	return nil
}

func (f *GoogleFetcher) getJSON(ctx context.Context, token, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("google calendar returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// normalizeGoogleEvent maps one Google Calendar event to the canonical feed
// item shape.
func normalizeGoogleEvent(event googleEvent) models.FeedItem {
	id := "google-" + event.ID
	if event.ID == "" {
		id = "google-" + uuid.NewString()
	}

	title := event.Summary
	if title == "" {
		title = "Untitled Event"
	}

	description := "No description provided"
	if event.Description != "" {
		description = cleanDescription(event.Description)
	}

	link := event.HTMLLink
	if link == "" {
		link = models.NoLink
	}

	return models.FeedItem{
		ID:             id,
		SourcePlatform: models.PlatformGoogle,
		Kind:           models.KindEvent,
		Title:          title,
		Description:    description,
		Course:         "Google Calendar",
		StartTime:      parseGoogleTime(event.Start),
		EndTime:        parseGoogleTime(event.End),
		Status:         models.StatusUpcoming,
		Priority:       models.PriorityMedium,
		Link:           link,
	}
}

// parseGoogleTime handles both timed (RFC3339 dateTime) and all-day (date)
// event times. Absent or unparseable values yield nil.
func parseGoogleTime(et *googleEventTime) *time.Time {
	if et == nil {
		return nil
	}

	if et.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, et.DateTime); err == nil {
			utc := parsed.UTC()
			return &utc
		}
		return nil
	}

	if et.Date != "" {
		if parsed, err := time.Parse("2006-01-02", et.Date); err == nil {
			return &parsed
		}
	}

	return nil
}
