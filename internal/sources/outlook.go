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

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// OutlookFetcher pulls upcoming events from every calendar visible to the
// user through the Microsoft Graph API.
type OutlookFetcher struct {
	baseURL string
	tokens  *TokenSource
	limiter *ratelimit.Limiter
	config  FetcherConfig
	logger  *logging.Logger
	client  *http.Client
}

type graphCalendar struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Graph encodes event times as a local wall-clock string plus a time zone
// name rather than an offset.
type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphEvent struct {
	ID          string         `json:"id"`
	Subject     string         `json:"subject"`
	Start       *graphDateTime `json:"start"`
	End         *graphDateTime `json:"end"`
	WebLink     string         `json:"webLink"`
	BodyPreview string         `json:"bodyPreview"`
}

type graphList[T any] struct {
	Value []T `json:"value"`
}

// NewOutlookFetcher creates a Microsoft Graph source adapter
func NewOutlookFetcher(tokens *TokenSource, limiter *ratelimit.Limiter, config FetcherConfig, logger *logging.Logger) *OutlookFetcher {
	return &OutlookFetcher{
		baseURL: graphBaseURL,
		tokens:  tokens,
		limiter: limiter,
		config:  config,
		logger:  logger,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

func (f *OutlookFetcher) Platform() models.Platform {
	return models.PlatformOutlook
}

func (f *OutlookFetcher) ProviderID() models.ProviderID {
	return models.ProviderOutlook
}

// Fetch lists the user's calendars and collects each one's calendar view
// over the upcoming window. Calendars that fail are skipped individually.
func (f *OutlookFetcher) Fetch(ctx context.Context, userID string) ([]models.FeedItem, error) {
	token, err := f.tokens.Token(ctx, userID)
	if err != nil {
		return nil, err
	}

	f.limiter.Wait(hostOf(f.baseURL))

	var calendars graphList[graphCalendar]
	if err := f.getJSON(ctx, token, f.baseURL+"/me/calendars", &calendars); err != nil {
		return nil, fmt.Errorf("failed to list outlook calendars: %w", err)
	}

	start := time.Now().UTC()
	end := start.AddDate(0, 0, f.config.EventWindowDays)

	items := make([]models.FeedItem, 0)
	for _, calendar := range calendars.Value {
		events, err := f.calendarView(ctx, token, calendar.ID, start, end)
		if err != nil {
			f.logger.Warn("Skipping outlook calendar", logging.WithFields(map[string]interface{}{
				"calendar": calendar.Name,
				"error":    err.Error(),
			}))
			continue
		}

		for _, event := range events {
			items = append(items, normalizeOutlookEvent(event))
		}
	}

	return items, nil
}

func (f *OutlookFetcher) calendarView(ctx context.Context, token, calendarID string, start, end time.Time) ([]graphEvent, error) {
	query := url.Values{}
	query.Set("startDateTime", start.Format(time.RFC3339))
	query.Set("endDateTime", end.Format(time.RFC3339))
	query.Set("$select", "id,subject,start,end,webLink,bodyPreview")
	query.Set("$top", fmt.Sprintf("%d", f.config.MaxEvents))
	query.Set("$orderby", "start/dateTime")

	viewURL := fmt.Sprintf("%s/me/calendars/%s/calendarView?%s", f.baseURL, url.PathEscape(calendarID), query.Encode())

	// Each calendar gets its own shorter budget so one slow calendar cannot
	// consume the whole fetch window.
	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var events graphList[graphEvent]
	if err := f.getJSON(callCtx, token, viewURL, &events); err != nil {
		return nil, err
	}
	return events.Value, nil
}

// ValidateToken checks a candidate token against the Graph profile endpoint
func (f *OutlookFetcher) ValidateToken(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("outlook: %w", ErrNoToken)
	}
	var profile map[string]interface{}
	if err := f.getJSON(ctx, token, f.baseURL+"/me", &profile); err != nil {
		return fmt.Errorf("outlook token rejected: %w", err)
	}
	return nil
}

func (f *OutlookFetcher) getJSON(ctx context.Context, token, url string, out interface{}) error {
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
		return fmt.Errorf("graph returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// normalizeOutlookEvent maps one Graph event to the canonical feed item shape
func normalizeOutlookEvent(event graphEvent) models.FeedItem {
	id := "outlook-" + event.ID
	if event.ID == "" {
		id = "outlook-" + uuid.NewString()
	}

	title := event.Subject
	if title == "" {
		title = "Untitled Event"
	}

	description := "No description provided"
	if event.BodyPreview != "" {
		description = cleanDescription(event.BodyPreview)
	}

	link := event.WebLink
	if link == "" {
		link = models.NoLink
	}

	return models.FeedItem{
		ID:             id,
		SourcePlatform: models.PlatformOutlook,
		Kind:           models.KindEvent,
		Title:          title,
		Description:    description,
		Course:         "Outlook Calendar",
		StartTime:      parseGraphTime(event.Start),
		EndTime:        parseGraphTime(event.End),
		Status:         models.StatusUpcoming,
		Priority:       models.PriorityMedium,
		Link:           link,
	}
}

// parseGraphTime converts a Graph dateTime/timeZone pair to UTC. An absent or
// unparseable value yields nil so downstream sorting treats the event as
// undated.
func parseGraphTime(dt *graphDateTime) *time.Time {
	if dt == nil || dt.DateTime == "" {
		return nil
	}

	loc := time.UTC
	if dt.TimeZone != "" {
		if parsed, err := time.LoadLocation(dt.TimeZone); err == nil {
			loc = parsed
		}
	}

	// Graph emits fractional seconds without a zone offset
	for _, layout := range []string{"2006-01-02T15:04:05.9999999", "2006-01-02T15:04:05"} {
		if parsed, err := time.ParseInLocation(layout, dt.DateTime, loc); err == nil {
			utc := parsed.UTC()
			return &utc
		}
	}

	return nil
}
