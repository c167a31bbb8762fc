// Package feed builds the merged academic feed: parallel fetch across the
// linked providers, priority enrichment, a deterministic merge-sort and a
// background notification pass.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/campusfeed/campusfeed/internal/cache"
	"github.com/campusfeed/campusfeed/internal/logging"
	"github.com/campusfeed/campusfeed/internal/models"
	"github.com/campusfeed/campusfeed/internal/sources"
)

// notifyTimeout bounds the background notification pass, which outlives the
// request that triggered it.
const notifyTimeout = 30 * time.Second

// Enricher refines item priorities. Best effort by contract: it never fails,
// it only returns the items.
type Enricher interface {
	Enrich(ctx context.Context, items []models.FeedItem) []models.FeedItem
}

// Notifier derives and persists notifications from a built feed
type Notifier interface {
	DeriveAndPersist(ctx context.Context, userID string, items []models.FeedItem) []models.Notification
}

// Service orchestrates the feed pipeline
type Service struct {
	fetchers []sources.Fetcher
	enricher Enricher
	notifier Notifier
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *logging.Logger
}

// New creates a feed service. The fetcher order fixes the flattening order of
// the merged feed before sorting.
func New(fetchers []sources.Fetcher, enricher Enricher, notifier Notifier, c cache.Cache, cacheTTL time.Duration, logger *logging.Logger) *Service {
	return &Service{
		fetchers: fetchers,
		enricher: enricher,
		notifier: notifier,
		cache:    c,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Build assembles the merged feed for a user. Every adapter runs regardless
// of the others' outcomes; a failed or unlinked provider contributes zero
// items and never fails the build. The response is served as soon as sorting
// completes; notification derivation continues in the background.
func (s *Service) Build(ctx context.Context, userID string) (*models.FeedResult, error) {
	cacheKey := "feed:" + userID
	if result, ok := s.loadCachedResult(cacheKey); ok {
		s.logger.Debug("Feed cache hit", logging.WithField("user", userID))
		return result, nil
	}

	results := s.fetchAll(ctx, userID)

	items := make([]models.FeedItem, 0)
	var breakdown models.SourceBreakdown
	for _, r := range results {
		if r.Err != nil {
			if errors.Is(r.Err, sources.ErrNoToken) {
				s.logger.Debug("Provider not linked", logging.WithFields(map[string]interface{}{
					"platform": r.Platform,
					"user":     userID,
				}))
			} else {
				s.logger.Warn("Provider fetch failed", logging.WithFields(map[string]interface{}{
					"platform": r.Platform,
					"user":     userID,
					"error":    r.Err.Error(),
				}))
			}
			continue
		}

		items = append(items, r.Items...)
		switch r.Platform {
		case models.PlatformCanvas:
			breakdown.Canvas = len(r.Items)
		case models.PlatformOutlook:
			breakdown.Outlook = len(r.Items)
		case models.PlatformGoogle:
			breakdown.Google = len(r.Items)
		}
	}

	items = s.enricher.Enrich(ctx, items)
	sortByEffectiveDate(items)

	result := &models.FeedResult{
		Items:     items,
		Breakdown: breakdown,
	}

	s.cache.SetWithTTL(cacheKey, result, s.cacheTTL)

	// The response does not wait for notifications; their outcome is only
	// logged.
	go s.deriveNotifications(userID, items)

	return result, nil
}

// loadCachedResult retrieves a previously built feed. The memory backend
// hands back the typed value; Redis hands back generic decoded JSON, so a
// failed assertion falls through to a round trip into the typed shape.
func (s *Service) loadCachedResult(key string) (*models.FeedResult, bool) {
	cached, ok := s.cache.Get(key)
	if !ok || cached == nil {
		return nil, false
	}

	if result, ok := cached.(*models.FeedResult); ok {
		return result, true
	}

	raw, err := json.Marshal(cached)
	if err != nil {
		return nil, false
	}

	var decoded models.FeedResult
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, false
	}

	return &decoded, true
}

// fetchAll runs every adapter concurrently and collects all outcomes, indexed
// so the flattening order matches the fetcher order.
func (s *Service) fetchAll(ctx context.Context, userID string) []sources.FetchResult {
	results := make([]sources.FetchResult, len(s.fetchers))

	var wg sync.WaitGroup
	for i, fetcher := range s.fetchers {
		wg.Add(1)
		go func(i int, fetcher sources.Fetcher) {
			defer wg.Done()
			items, err := fetcher.Fetch(ctx, userID)
			results[i] = sources.FetchResult{
				Platform: fetcher.Platform(),
				Items:    items,
				Err:      err,
			}
		}(i, fetcher)
	}
	wg.Wait()

	return results
}

func (s *Service) deriveNotifications(userID string, items []models.FeedItem) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	created := s.notifier.DeriveAndPersist(ctx, userID, items)
	if len(created) > 0 {
		s.logger.Info("Derived notifications from feed", logging.WithFields(map[string]interface{}{
			"user":  userID,
			"count": len(created),
		}))
	}
}

// Invalidate drops the cached feed for a user. Called when an account is
// linked or disconnected so the next build reflects the change.
func (s *Service) Invalidate(userID string) {
	s.cache.Delete("feed:" + userID)
}

// Items without any effective date sort as if infinitely far out, so dated
// work always surfaces first. Mapping to a sentinel keeps the comparison
// transitive; comparing nils pairwise does not.
var farFuture = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

func sortByEffectiveDate(items []models.FeedItem) {
	sort.SliceStable(items, func(a, b int) bool {
		return sortKey(items[a]).Before(sortKey(items[b]))
	})
}

func sortKey(item models.FeedItem) time.Time {
	if d := item.EffectiveDate(); d != nil {
		return *d
	}
	return farFuture
}
