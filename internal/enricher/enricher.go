// Package enricher calls the priority scoring service to refine each feed
// item's priority. Enrichment is best effort: any failure leaves the item's
// existing priority in place.
package enricher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/campusfeed/campusfeed/internal/logging"
	"github.com/campusfeed/campusfeed/internal/models"
)

// Client talks to the priority scoring service
type Client struct {
	url     string
	timeout time.Duration
	logger  *logging.Logger
	client  *http.Client
}

type scoreRequest struct {
	DueDate  string `json:"due_date"`
	Title    string `json:"title"`
	Platform string `json:"platform"`
}

type scoreResponse struct {
	Priority models.Priority `json:"priority"`
}

// New creates a priority enrichment client. The timeout is a hard budget per
// item; the scoring service is expected to answer well inside it.
func New(url string, timeout time.Duration, logger *logging.Logger) *Client {
	return &Client{
		url:     url,
		timeout: timeout,
		logger:  logger,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Enrich scores every item concurrently and returns a slice of the same
// length and order. Items without a due date or start time are marked low
// priority without calling the service. Items whose call fails keep the
// priority they arrived with.
func (c *Client) Enrich(ctx context.Context, items []models.FeedItem) []models.FeedItem {
	if len(items) == 0 {
		return items
	}

	enriched := make([]models.FeedItem, len(items))
	copy(enriched, items)

	var wg sync.WaitGroup
	for i := range enriched {
		if enriched[i].EffectiveDate() == nil {
			enriched[i].Priority = models.PriorityLow
			continue
		}

		wg.Add(1)
		go func(item *models.FeedItem) {
			defer wg.Done()

			priority, err := c.score(ctx, *item)
			if err != nil {
				c.logger.Debug("Priority scoring failed, keeping existing priority", logging.WithFields(map[string]interface{}{
					"item":  item.ID,
					"error": err.Error(),
				}))
				return
			}
			item.Priority = priority
		}(&enriched[i])
	}
	wg.Wait()

	return enriched
}

func (c *Client) score(ctx context.Context, item models.FeedItem) (models.Priority, error) {
	payload := scoreRequest{
		DueDate:  item.EffectiveDate().Format(time.RFC3339),
		Title:    item.Title,
		Platform: string(item.SourcePlatform),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode scoring request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create scoring request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("scoring service returned status %d", resp.StatusCode)
	}

	var result scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode scoring response: %w", err)
	}

	if !models.IsValidPriority(result.Priority) {
		return "", fmt.Errorf("scoring service returned unknown priority %q", result.Priority)
	}

	return result.Priority, nil
}
