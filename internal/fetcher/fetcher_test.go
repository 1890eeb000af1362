package fetcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CLewisMessina/wolfalert/internal/database"
	"github.com/CLewisMessina/wolfalert/internal/domain"
	"github.com/CLewisMessina/wolfalert/internal/feed"
	"github.com/CLewisMessina/wolfalert/internal/logger"
	"github.com/CLewisMessina/wolfalert/internal/retry"
)

type fakeSourceStore struct {
	mu            sync.Mutex
	sources       []*domain.Source
	degradedAfter int
	successCount  int
	failureCount  int
}

func (s *fakeSourceStore) ListDue(_ context.Context, _ time.Time) ([]*domain.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]*domain.Source, len(s.sources))
	copy(due, s.sources)
	return due, nil
}

func (s *fakeSourceStore) RecordSuccess(_ context.Context, id string, fetchedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.successCount++
	for _, src := range s.sources {
		if src.ID == id {
			t := fetchedAt
			src.LastFetchedAt = &t
			src.ConsecutiveFailures = 0
			src.Degraded = false
		}
	}
	return nil
}

func (s *fakeSourceStore) RecordFailure(_ context.Context, id string, attemptedAt time.Time, advanceSchedule bool, degradedAfter int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failureCount++
	for _, src := range s.sources {
		if src.ID == id {
			src.ConsecutiveFailures++
			src.Degraded = src.ConsecutiveFailures >= degradedAfter
			if advanceSchedule {
				t := attemptedAt
				src.LastFetchedAt = &t
			}
		}
	}
	return nil
}

type fakeArticleStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeArticleStore() *fakeArticleStore {
	return &fakeArticleStore{seen: make(map[string]bool)}
}

func (a *fakeArticleStore) Ingest(_ context.Context, article *domain.Article) (database.IngestResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.seen[article.URL] {
		return database.IngestDuplicate, nil
	}
	a.seen[article.URL] = true
	return database.IngestCreated, nil
}

type fakeFeedClient struct {
	mu      sync.Mutex
	entries []feed.Entry
	err     error
	calls   int
}

func (c *fakeFeedClient) Fetch(_ context.Context, _ string) ([]feed.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.entries, nil
}

func testSource() *domain.Source {
	return &domain.Source{
		ID:            "source-1",
		Name:          "AI News",
		FeedURL:       "https://example.com/feed",
		Reliability:   domain.ReliabilityMedium,
		FetchInterval: 4 * time.Hour,
		Active:        true,
	}
}

func testConfig() Config {
	return Config{
		TickInterval:  time.Minute,
		Concurrency:   2,
		DegradedAfter: 3,
		RetentionDays: 30,
		Backoff:       retry.Policy{Base: time.Minute, Multiplier: 2, Cap: time.Hour},
	}
}

func TestRunOnce_IngestsNewEntries(t *testing.T) {
	sources := &fakeSourceStore{sources: []*domain.Source{testSource()}}
	articles := newFakeArticleStore()
	feeds := &fakeFeedClient{entries: []feed.Entry{
		{Title: "one", URL: "https://example.com/1", PublishedAt: time.Now()},
		{Title: "two", URL: "https://example.com/2", PublishedAt: time.Now()},
	}}

	var ingested []string
	f := New(sources, articles, feeds, testConfig(), logger.NewNop())
	f.OnIngest(func(_ context.Context, article *domain.Article) {
		ingested = append(ingested, article.URL)
	})

	f.RunOnce(context.Background())

	assert.Equal(t, 1, sources.successCount)
	assert.Equal(t, []string{"https://example.com/1", "https://example.com/2"}, ingested,
		"entries must be ingested in feed order")
	assert.NotNil(t, sources.sources[0].LastFetchedAt)
}

func TestRunOnce_ReingestIsIdempotent(t *testing.T) {
	sources := &fakeSourceStore{sources: []*domain.Source{testSource()}}
	articles := newFakeArticleStore()
	feeds := &fakeFeedClient{entries: []feed.Entry{
		{Title: "one", URL: "https://example.com/1", PublishedAt: time.Now()},
	}}

	created := 0
	f := New(sources, articles, feeds, testConfig(), logger.NewNop())
	f.OnIngest(func(_ context.Context, _ *domain.Article) { created++ })

	f.RunOnce(context.Background())
	f.RunOnce(context.Background())

	assert.Equal(t, 1, created, "re-ingesting the same feed content must create nothing")
	assert.Len(t, articles.seen, 1)
}

func TestRunOnce_TransientFailureBacksOffWithoutAdvancingSchedule(t *testing.T) {
	source := testSource()
	sources := &fakeSourceStore{sources: []*domain.Source{source}}
	feeds := &fakeFeedClient{err: fmt.Errorf("%w: connection refused", domain.ErrFetchTransient)}

	f := New(sources, newFakeArticleStore(), feeds, testConfig(), logger.NewNop())
	f.RunOnce(context.Background())

	assert.Equal(t, 1, sources.failureCount)
	assert.Nil(t, source.LastFetchedAt, "transient failures must not advance last_fetched")
	assert.Equal(t, 1, source.ConsecutiveFailures)

	_, backingOff := f.NextAttemptAfter(source.ID)
	assert.True(t, backingOff)

	// The source stays due in the store, but the backoff gate skips it.
	f.RunOnce(context.Background())
	assert.Equal(t, 1, feeds.calls, "attempt during backoff window must be skipped")
}

func TestRunOnce_PermanentFailureAdvancesScheduleAndDegrades(t *testing.T) {
	source := testSource()
	sources := &fakeSourceStore{sources: []*domain.Source{source}}
	feeds := &fakeFeedClient{err: fmt.Errorf("%w: status 404", domain.ErrFetchPermanent)}

	f := New(sources, newFakeArticleStore(), feeds, testConfig(), logger.NewNop())
	for range 3 {
		f.RunOnce(context.Background())
		// Definitive failures advance the schedule; reset for the next pass.
		source.LastFetchedAt = nil
	}

	assert.Equal(t, 3, source.ConsecutiveFailures)
	assert.True(t, source.Degraded, "source must be flagged degraded, not removed")
	assert.True(t, source.Active, "degraded sources stay scheduled")
}

func TestBackoffDelay_GrowsExponentiallyToCap(t *testing.T) {
	policy := retry.Policy{Base: time.Minute, Multiplier: 2, Cap: time.Hour}

	assert.Equal(t, time.Minute, policy.Delay(1))
	assert.Equal(t, 2*time.Minute, policy.Delay(2))
	assert.Equal(t, 4*time.Minute, policy.Delay(3))
	assert.Equal(t, time.Hour, policy.Delay(10), "delay must cap at one hour")
	assert.Equal(t, time.Hour, policy.Delay(100))
}

func TestRunOnce_DegradedSourceWaitsFullBackoffCap(t *testing.T) {
	source := testSource()
	source.ConsecutiveFailures = 2
	sources := &fakeSourceStore{sources: []*domain.Source{source}}
	feeds := &fakeFeedClient{err: fmt.Errorf("%w: timeout", domain.ErrFetchTransient)}

	f := New(sources, newFakeArticleStore(), feeds, testConfig(), logger.NewNop())
	start := time.Now()
	f.RunOnce(context.Background())

	require.Equal(t, 3, source.ConsecutiveFailures)
	assert.True(t, source.Degraded)

	next, ok := f.NextAttemptAfter(source.ID)
	require.True(t, ok)
	assert.False(t, next.Before(start.Add(time.Hour)),
		"the attempt after the degraded threshold must wait the full backoff cap")
}

func TestRunOnce_LongTitleTruncatedToColumnWidth(t *testing.T) {
	sources := &fakeSourceStore{sources: []*domain.Source{testSource()}}
	feeds := &fakeFeedClient{entries: []feed.Entry{
		{Title: strings.Repeat("a", 450), URL: "https://example.com/long", PublishedAt: time.Now()},
	}}

	var got string
	f := New(sources, newFakeArticleStore(), feeds, testConfig(), logger.NewNop())
	f.OnIngest(func(_ context.Context, article *domain.Article) { got = article.Title })

	f.RunOnce(context.Background())

	assert.Len(t, []rune(got), maxTitleLen, "oversized titles must be cut to the column width")
}

func TestRunOnce_RetriesAfterBackoffElapses(t *testing.T) {
	source := testSource()
	sources := &fakeSourceStore{sources: []*domain.Source{source}}
	feeds := &fakeFeedClient{err: fmt.Errorf("%w: timeout", domain.ErrFetchTransient)}

	cfg := testConfig()
	cfg.Backoff = retry.Policy{Base: time.Millisecond, Multiplier: 2, Cap: 10 * time.Millisecond}

	f := New(sources, newFakeArticleStore(), feeds, cfg, logger.NewNop())
	f.RunOnce(context.Background())
	require.Equal(t, 1, feeds.calls)

	time.Sleep(5 * time.Millisecond)
	f.RunOnce(context.Background())
	assert.Equal(t, 2, feeds.calls, "attempt must be retried once the backoff window passes")
}
