package scorer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CLewisMessina/wolfalert/internal/domain"
	"github.com/CLewisMessina/wolfalert/internal/logger"
)

type fakeInsightStore struct {
	mu       sync.Mutex
	insights map[string]*domain.Insight
}

func newFakeInsightStore() *fakeInsightStore {
	return &fakeInsightStore{insights: make(map[string]*domain.Insight)}
}

func (s *fakeInsightStore) key(articleID, fingerprint, modelVersion string) string {
	return articleID + ":" + fingerprint + ":" + modelVersion
}

func (s *fakeInsightStore) Get(_ context.Context, articleID, fingerprint, modelVersion string) (*domain.Insight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	insight, ok := s.insights[s.key(articleID, fingerprint, modelVersion)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return insight, nil
}

func (s *fakeInsightStore) Create(_ context.Context, insight *domain.Insight) error {
	if err := insight.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.key(insight.ArticleID, insight.ProfileFingerprint, insight.ModelVersion)
	if stored, ok := s.insights[key]; ok {
		// Unique constraint: the stored row wins.
		*insight = *stored
		return nil
	}
	s.insights[key] = insight
	return nil
}

type fakeArticleStore struct {
	mu        sync.Mutex
	processed map[string]bool
	attempts  map[string]int
}

func newFakeArticleStore() *fakeArticleStore {
	return &fakeArticleStore{
		processed: make(map[string]bool),
		attempts:  make(map[string]int),
	}
}

func (s *fakeArticleStore) MarkProcessed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[id] = true
	return nil
}

func (s *fakeArticleStore) IncrementAttempts(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[id]++
	return nil
}

type fakeModel struct {
	calls     atomic.Int64
	responses []string
	err       error
	delay     time.Duration
}

func (m *fakeModel) Complete(_ context.Context, _, _ string) (string, error) {
	n := m.calls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return "", m.err
	}

	idx := int(n) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

func (m *fakeModel) Version() string {
	return "fake-model/v1"
}

const goodResponse = `{"summary": "Summary.", "reasoning": "Reasoning.", "impact": "threat", "score": 0.94}`

func testArticle() *domain.Article {
	return &domain.Article{
		ID:          "article-1",
		Title:       "AI platform launch",
		Content:     "body",
		PublishedAt: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
	}
}

func testProfile() *domain.Profile {
	return &domain.Profile{
		ID:         "profile-1",
		Industry:   "utilities",
		Department: "engineering",
		RoleLevel:  "manager",
		Active:     true,
	}
}

func newTestScorer(model ModelClient) (*Scorer, *fakeInsightStore, *fakeArticleStore) {
	insights := newFakeInsightStore()
	articles := newFakeArticleStore()
	s := New(insights, articles, model, nil, Config{
		Timeout:        5 * time.Second,
		CallsPerMinute: 6000, // effectively unlimited for tests
		Concurrency:    4,
	}, logger.NewNop())
	return s, insights, articles
}

func TestScore_SecondCallIsCacheHit(t *testing.T) {
	model := &fakeModel{responses: []string{goodResponse}}
	s, _, articles := newTestScorer(model)

	first, err := s.Score(context.Background(), testArticle(), testProfile())
	require.NoError(t, err)

	second, err := s.Score(context.Background(), testArticle(), testProfile())
	require.NoError(t, err)

	assert.Equal(t, int64(1), model.calls.Load(), "second score must be served from cache")
	assert.Equal(t, first.Summary, second.Summary)
	assert.True(t, articles.processed["article-1"])
}

func TestScore_SingleFlightCollapsesConcurrentCallers(t *testing.T) {
	model := &fakeModel{responses: []string{goodResponse}, delay: 20 * time.Millisecond}
	s, _, _ := newTestScorer(model)

	const callers = 10
	results := make([]*domain.Insight, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = s.Score(context.Background(), testArticle(), testProfile())
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), model.calls.Load(),
		"concurrent callers for one key must share a single model call")
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].ID, results[i].ID, "all callers must receive the identical insight")
	}
}

func TestScore_SharedFingerprintSharesInsight(t *testing.T) {
	model := &fakeModel{responses: []string{goodResponse}}
	s, _, _ := newTestScorer(model)

	profileA := testProfile()
	profileB := testProfile()
	profileB.ID = "profile-2"
	profileB.Name = "someone else"

	_, err := s.Score(context.Background(), testArticle(), profileA)
	require.NoError(t, err)
	_, err = s.Score(context.Background(), testArticle(), profileB)
	require.NoError(t, err)

	assert.Equal(t, int64(1), model.calls.Load(),
		"profiles with identical axes must share the cached insight")
}

func TestScore_MalformedOutputRetriedOnce(t *testing.T) {
	model := &fakeModel{responses: []string{"not json at all", goodResponse}}
	s, _, _ := newTestScorer(model)

	insight, err := s.Score(context.Background(), testArticle(), testProfile())

	require.NoError(t, err)
	assert.Equal(t, int64(2), model.calls.Load())
	assert.InDelta(t, 0.94, insight.ImpactScore, 1e-9)
}

func TestScore_PersistentlyMalformedOutputFails(t *testing.T) {
	model := &fakeModel{responses: []string{"garbage", "still garbage"}}
	s, insights, articles := newTestScorer(model)

	_, err := s.Score(context.Background(), testArticle(), testProfile())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedOutput)
	assert.Equal(t, int64(2), model.calls.Load(), "malformed output is retried exactly once")
	assert.Equal(t, 1, articles.attempts["article-1"])
	assert.False(t, articles.processed["article-1"])
	assert.Empty(t, insights.insights, "nothing may be persisted for a failed scoring")
}

func TestScore_OutOfRangeScoreRejectedBeforePersistence(t *testing.T) {
	outOfRange := `{"summary": "S", "reasoning": "R", "impact": "threat", "score": 1.7}`
	model := &fakeModel{responses: []string{outOfRange, outOfRange}}
	s, insights, _ := newTestScorer(model)

	_, err := s.Score(context.Background(), testArticle(), testProfile())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedOutput)
	assert.Empty(t, insights.insights)
}

func TestScore_ProviderErrorNotRetried(t *testing.T) {
	model := &fakeModel{err: fmt.Errorf("%w: quota exceeded", domain.ErrProviderUnavailable)}
	s, _, articles := newTestScorer(model)

	_, err := s.Score(context.Background(), testArticle(), testProfile())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Equal(t, int64(1), model.calls.Load(), "provider outages are not retried inline")
	assert.Zero(t, articles.attempts["article-1"],
		"provider errors do not burn a processing attempt")
}

type fakeProfileStore struct {
	profiles []*domain.Profile
}

func (s *fakeProfileStore) ListActive(_ context.Context) ([]*domain.Profile, error) {
	return s.profiles, nil
}

type fakeUnprocessedLister struct {
	articles []*domain.Article
}

func (s *fakeUnprocessedLister) ListUnprocessed(_ context.Context, limit int) ([]*domain.Article, error) {
	if len(s.articles) > limit {
		return s.articles[:limit], nil
	}
	return s.articles, nil
}

func TestDispatcher_RescoresUnprocessedArticles(t *testing.T) {
	model := &fakeModel{responses: []string{goodResponse}}
	s, insights, articles := newTestScorer(model)

	pending := &fakeUnprocessedLister{articles: []*domain.Article{testArticle()}}
	profiles := &fakeProfileStore{profiles: []*domain.Profile{testProfile()}}

	d := NewDispatcher(s, pending, profiles, time.Minute, 10, logger.NewNop())
	d.RunOnce(context.Background())

	assert.Equal(t, int64(1), model.calls.Load())
	assert.Len(t, insights.insights, 1)
	assert.True(t, articles.processed["article-1"])

	// A second pass over the same backlog is a cache hit.
	d.RunOnce(context.Background())
	assert.Equal(t, int64(1), model.calls.Load())
}

func TestScoreForActiveProfiles_DeduplicatesFingerprints(t *testing.T) {
	model := &fakeModel{responses: []string{goodResponse}}
	s, insights, _ := newTestScorer(model)

	twin := testProfile()
	twin.ID = "profile-2"
	other := &domain.Profile{
		ID:         "profile-3",
		Industry:   "financial",
		Department: "marketing",
		RoleLevel:  "director",
		Active:     true,
	}
	profiles := &fakeProfileStore{profiles: []*domain.Profile{testProfile(), twin, other}}

	s.ScoreForActiveProfiles(context.Background(), profiles, testArticle())

	assert.Equal(t, int64(2), model.calls.Load(),
		"three active profiles across two fingerprints must cost two calls")
	assert.Len(t, insights.insights, 2)
}

func TestScoreForActiveProfilesAsync_DoesNotBlockCaller(t *testing.T) {
	model := &fakeModel{responses: []string{goodResponse}, delay: 300 * time.Millisecond}
	s, insights, _ := newTestScorer(model)
	profiles := &fakeProfileStore{profiles: []*domain.Profile{testProfile()}}

	start := time.Now()
	s.ScoreForActiveProfilesAsync(context.Background(), profiles, testArticle())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, model.delay, "dispatch must return before the model call completes")

	assert.Eventually(t, func() bool {
		insights.mu.Lock()
		defer insights.mu.Unlock()
		return len(insights.insights) == 1
	}, 2*time.Second, 10*time.Millisecond, "scoring must still complete in the background")
}
