package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/campusfeed/campusfeed/internal/cache"
	"github.com/campusfeed/campusfeed/internal/models"
	"github.com/campusfeed/campusfeed/internal/sources"
	"github.com/campusfeed/campusfeed/internal/testutil"
)

type stubFetcher struct {
	platform models.Platform
	provider models.ProviderID
	items    []models.FeedItem
	err      error
	delay    time.Duration
}

func (f *stubFetcher) Platform() models.Platform      { return f.platform }
func (f *stubFetcher) ProviderID() models.ProviderID  { return f.provider }
func (f *stubFetcher) ValidateToken(ctx context.Context, token string) error { return nil }

func (f *stubFetcher) Fetch(ctx context.Context, userID string) ([]models.FeedItem, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.items, f.err
}

type passthroughEnricher struct{}

func (passthroughEnricher) Enrich(ctx context.Context, items []models.FeedItem) []models.FeedItem {
	return items
}

type recordingNotifier struct {
	called chan []models.FeedItem
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{called: make(chan []models.FeedItem, 1)}
}

func (n *recordingNotifier) DeriveAndPersist(ctx context.Context, userID string, items []models.FeedItem) []models.Notification {
	n.called <- items
	return nil
}

func newTestService(fetchers ...sources.Fetcher) (*Service, *recordingNotifier, *cache.MemoryCache) {
	c := cache.NewMemory(time.Minute)
	notifier := newRecordingNotifier()
	svc := New(fetchers, passthroughEnricher{}, notifier, c, time.Minute, testutil.NullLogger())
	return svc, notifier, c
}

func dated(id string, platform models.Platform, kind models.ItemKind, at time.Time) models.FeedItem {
	item := models.FeedItem{
		ID:             id,
		SourcePlatform: platform,
		Kind:           kind,
		Title:          id,
		Priority:       models.PriorityMedium,
	}
	if kind == models.KindAssignment {
		item.DueDate = &at
	} else {
		item.StartTime = &at
	}
	return item
}

func TestBuild_MergesAndSorts(t *testing.T) {
	now := time.Now()

	canvas := &stubFetcher{
		platform: models.PlatformCanvas,
		provider: models.ProviderCanvas,
		items: []models.FeedItem{
			dated("a-late", models.PlatformCanvas, models.KindAssignment, now.Add(72*time.Hour)),
			dated("a-soon", models.PlatformCanvas, models.KindAssignment, now.Add(2*time.Hour)),
		},
	}
	google := &stubFetcher{
		platform: models.PlatformGoogle,
		provider: models.ProviderGoogle,
		items: []models.FeedItem{
			dated("e-mid", models.PlatformGoogle, models.KindEvent, now.Add(24*time.Hour)),
		},
	}

	svc, _, c := newTestService(canvas, google)
	defer c.Stop()

	result, err := svc.Build(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	wantOrder := []string{"a-soon", "e-mid", "a-late"}
	if len(result.Items) != len(wantOrder) {
		t.Fatalf("Build() returned %d items, want %d", len(result.Items), len(wantOrder))
	}
	for i, want := range wantOrder {
		if result.Items[i].ID != want {
			t.Errorf("Items[%d].ID = %q, want %q", i, result.Items[i].ID, want)
		}
	}

	if result.Breakdown.Canvas != 2 || result.Breakdown.Google != 1 || result.Breakdown.Outlook != 0 {
		t.Errorf("Breakdown = %+v, want canvas=2 outlook=0 google=1", result.Breakdown)
	}
}

func TestBuild_UndatedItemsSortLast(t *testing.T) {
	now := time.Now()

	canvas := &stubFetcher{
		platform: models.PlatformCanvas,
		provider: models.ProviderCanvas,
		items: []models.FeedItem{
			{ID: "undated-1", SourcePlatform: models.PlatformCanvas, Kind: models.KindAssignment},
			dated("dated", models.PlatformCanvas, models.KindAssignment, now.Add(time.Hour)),
			{ID: "undated-2", SourcePlatform: models.PlatformCanvas, Kind: models.KindAssignment},
		},
	}

	svc, _, c := newTestService(canvas)
	defer c.Stop()

	result, err := svc.Build(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	wantOrder := []string{"dated", "undated-1", "undated-2"}
	for i, want := range wantOrder {
		if result.Items[i].ID != want {
			t.Errorf("Items[%d].ID = %q, want %q (undated last, stable)", i, result.Items[i].ID, want)
		}
	}
}

func TestBuild_PartialFailure(t *testing.T) {
	now := time.Now()

	canvas := &stubFetcher{
		platform: models.PlatformCanvas,
		provider: models.ProviderCanvas,
		items:    []models.FeedItem{dated("a1", models.PlatformCanvas, models.KindAssignment, now.Add(time.Hour))},
	}
	outlook := &stubFetcher{
		platform: models.PlatformOutlook,
		provider: models.ProviderOutlook,
		err:      errors.New("upstream 502"),
	}
	google := &stubFetcher{
		platform: models.PlatformGoogle,
		provider: models.ProviderGoogle,
		err:      fmt.Errorf("google: %w", sources.ErrNoToken),
	}

	svc, _, c := newTestService(canvas, outlook, google)
	defer c.Stop()

	result, err := svc.Build(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Build() error = %v, one failed provider must not fail the build", err)
	}

	if len(result.Items) != 1 {
		t.Fatalf("Build() returned %d items, want 1", len(result.Items))
	}
	if result.Breakdown.Canvas != 1 || result.Breakdown.Outlook != 0 || result.Breakdown.Google != 0 {
		t.Errorf("Breakdown = %+v, want failed providers at zero", result.Breakdown)
	}
}

func TestBuild_AllProvidersFail(t *testing.T) {
	outlook := &stubFetcher{platform: models.PlatformOutlook, provider: models.ProviderOutlook, err: errors.New("down")}
	google := &stubFetcher{platform: models.PlatformGoogle, provider: models.ProviderGoogle, err: errors.New("down")}

	svc, _, c := newTestService(outlook, google)
	defer c.Stop()

	result, err := svc.Build(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Build() error = %v, want empty feed instead", err)
	}
	if len(result.Items) != 0 {
		t.Errorf("Build() returned %d items, want 0", len(result.Items))
	}
}

func TestBuild_RunsFetchersConcurrently(t *testing.T) {
	delay := 100 * time.Millisecond
	fetchers := []sources.Fetcher{
		&stubFetcher{platform: models.PlatformCanvas, provider: models.ProviderCanvas, delay: delay},
		&stubFetcher{platform: models.PlatformOutlook, provider: models.ProviderOutlook, delay: delay},
		&stubFetcher{platform: models.PlatformGoogle, provider: models.ProviderGoogle, delay: delay},
	}

	svc, _, c := newTestService(fetchers...)
	defer c.Stop()

	start := time.Now()
	if _, err := svc.Build(context.Background(), "user-1"); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	elapsed := time.Since(start)

	// Sequential execution would take at least 3x the delay
	if elapsed > 2*delay {
		t.Errorf("Build() took %v, adapters should run in parallel", elapsed)
	}
}

func TestBuild_NotifiesInBackground(t *testing.T) {
	now := time.Now()
	canvas := &stubFetcher{
		platform: models.PlatformCanvas,
		provider: models.ProviderCanvas,
		items:    []models.FeedItem{dated("a1", models.PlatformCanvas, models.KindAssignment, now.Add(3*time.Hour))},
	}

	svc, notifier, c := newTestService(canvas)
	defer c.Stop()

	if _, err := svc.Build(context.Background(), "user-1"); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	select {
	case items := <-notifier.called:
		if len(items) != 1 || items[0].ID != "a1" {
			t.Errorf("notifier received %d items, want the sorted feed", len(items))
		}
	case <-time.After(time.Second):
		t.Fatal("notifier was never invoked after Build()")
	}
}

func TestBuild_CachesResult(t *testing.T) {
	now := time.Now()
	canvas := &stubFetcher{
		platform: models.PlatformCanvas,
		provider: models.ProviderCanvas,
		items:    []models.FeedItem{dated("a1", models.PlatformCanvas, models.KindAssignment, now.Add(time.Hour))},
	}

	svc, notifier, c := newTestService(canvas)
	defer c.Stop()

	first, err := svc.Build(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	<-notifier.called

	// A second build must come from cache: mutate the fetcher and confirm
	// the result does not change.
	canvas.items = nil

	second, err := svc.Build(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("second Build() error = %v", err)
	}
	if len(second.Items) != len(first.Items) {
		t.Errorf("second Build() returned %d items, want cached %d", len(second.Items), len(first.Items))
	}

	select {
	case <-notifier.called:
		t.Error("cached build should not trigger another notification pass")
	case <-time.After(100 * time.Millisecond):
	}
}

// jsonCache stores values the way the Redis backend does: marshaled on write,
// decoded back to generic JSON on read. Typed values do not survive the round
// trip.
type jsonCache struct {
	entries map[string][]byte
}

func newJSONCache() *jsonCache {
	return &jsonCache{entries: make(map[string][]byte)}
}

func (c *jsonCache) Get(key string) (interface{}, bool) {
	data, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, false
	}
	return value, true
}

func (c *jsonCache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, time.Minute)
}

func (c *jsonCache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.entries[key] = data
}

func (c *jsonCache) Delete(key string) { delete(c.entries, key) }
func (c *jsonCache) Clear()            { c.entries = make(map[string][]byte) }

func TestBuild_CacheHitSurvivesJSONRoundTrip(t *testing.T) {
	now := time.Now()
	canvas := &stubFetcher{
		platform: models.PlatformCanvas,
		provider: models.ProviderCanvas,
		items:    []models.FeedItem{dated("a1", models.PlatformCanvas, models.KindAssignment, now.Add(time.Hour))},
	}

	notifier := newRecordingNotifier()
	svc := New([]sources.Fetcher{canvas}, passthroughEnricher{}, notifier, newJSONCache(), time.Minute, testutil.NullLogger())

	first, err := svc.Build(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	<-notifier.called

	canvas.items = nil

	second, err := svc.Build(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("second Build() error = %v", err)
	}
	if len(second.Items) != len(first.Items) {
		t.Fatalf("second Build() returned %d items, want cached %d", len(second.Items), len(first.Items))
	}
	if second.Items[0].ID != "a1" || second.Items[0].DueDate == nil {
		t.Errorf("cached item = %+v, want decoded copy of the original", second.Items[0])
	}
	if second.Breakdown.Canvas != 1 {
		t.Errorf("cached Breakdown = %+v, want canvas=1", second.Breakdown)
	}

	select {
	case <-notifier.called:
		t.Error("cached build should not trigger another notification pass")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestInvalidate(t *testing.T) {
	now := time.Now()
	canvas := &stubFetcher{
		platform: models.PlatformCanvas,
		provider: models.ProviderCanvas,
		items:    []models.FeedItem{dated("a1", models.PlatformCanvas, models.KindAssignment, now.Add(time.Hour))},
	}

	svc, notifier, c := newTestService(canvas)
	defer c.Stop()

	if _, err := svc.Build(context.Background(), "user-1"); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	<-notifier.called

	svc.Invalidate("user-1")
	canvas.items = nil

	result, err := svc.Build(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Build() after Invalidate() error = %v", err)
	}
	if len(result.Items) != 0 {
		t.Errorf("Build() after Invalidate() returned %d items, want fresh fetch", len(result.Items))
	}
	<-notifier.called
}

func TestBuild_EndToEndScenario(t *testing.T) {
	now := time.Now()

	canvas := &stubFetcher{
		platform: models.PlatformCanvas,
		provider: models.ProviderCanvas,
		items: []models.FeedItem{
			{
				ID:             "canvas-a1",
				SourcePlatform: models.PlatformCanvas,
				Kind:           models.KindAssignment,
				Title:          "A1",
				DueDate:        timePtr(now.Add(3 * time.Hour)),
				Priority:       models.PriorityHigh,
			},
		},
	}
	outlook := &stubFetcher{platform: models.PlatformOutlook, provider: models.ProviderOutlook}
	google := &stubFetcher{
		platform: models.PlatformGoogle,
		provider: models.ProviderGoogle,
		items: []models.FeedItem{
			{
				ID:             "google-e1",
				SourcePlatform: models.PlatformGoogle,
				Kind:           models.KindEvent,
				Title:          "E1",
				StartTime:      timePtr(now.Add(10 * 24 * time.Hour)),
				Priority:       models.PriorityMedium,
			},
		},
	}

	svc, notifier, c := newTestService(canvas, outlook, google)
	defer c.Stop()

	result, err := svc.Build(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(result.Items) != 2 {
		t.Fatalf("Build() returned %d items, want 2", len(result.Items))
	}
	if result.Items[0].Title != "A1" || result.Items[1].Title != "E1" {
		t.Errorf("order = [%s, %s], want [A1, E1]", result.Items[0].Title, result.Items[1].Title)
	}
	if result.Breakdown.Canvas != 1 || result.Breakdown.Outlook != 0 || result.Breakdown.Google != 1 {
		t.Errorf("Breakdown = %+v, want canvas=1 outlook=0 google=1", result.Breakdown)
	}

	<-notifier.called
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestSortByEffectiveDate_Stable(t *testing.T) {
	at := time.Now().Add(time.Hour)
	items := []models.FeedItem{
		dated("first", models.PlatformCanvas, models.KindAssignment, at),
		dated("second", models.PlatformOutlook, models.KindEvent, at),
		dated("third", models.PlatformGoogle, models.KindEvent, at),
	}

	sortByEffectiveDate(items)

	for i, want := range []string{"first", "second", "third"} {
		if items[i].ID != want {
			t.Errorf("items[%d].ID = %q, want %q (equal dates keep input order)", i, items[i].ID, want)
		}
	}
}

func TestSortByEffectiveDate_MixedDateFields(t *testing.T) {
	now := time.Now()
	items := []models.FeedItem{
		dated("event-late", models.PlatformGoogle, models.KindEvent, now.Add(48*time.Hour)),
		dated("assignment-soon", models.PlatformCanvas, models.KindAssignment, now.Add(6*time.Hour)),
		{ID: "undated", Kind: models.KindAssignment},
		dated("event-soonest", models.PlatformOutlook, models.KindEvent, now.Add(time.Hour)),
	}

	sortByEffectiveDate(items)

	wantOrder := []string{"event-soonest", "assignment-soon", "event-late", "undated"}
	for i, want := range wantOrder {
		if items[i].ID != want {
			t.Errorf("items[%d].ID = %q, want %q", i, items[i].ID, want)
		}
	}
}
