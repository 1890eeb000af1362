// Package scorer produces profile-specific relevance insights for articles
// via a rate-limited language model call, with layered caching and
// single-flight coordination.
package scorer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/CLewisMessina/wolfalert/internal/domain"
	"github.com/CLewisMessina/wolfalert/internal/logger"
)

// InsightStore is the slice of the insight repository the scorer needs.
type InsightStore interface {
	Get(ctx context.Context, articleID, fingerprint, modelVersion string) (*domain.Insight, error)
	Create(ctx context.Context, insight *domain.Insight) error
}

// ArticleStore is the slice of the article repository the scorer needs.
type ArticleStore interface {
	MarkProcessed(ctx context.Context, id string) error
	IncrementAttempts(ctx context.Context, id string) error
}

// ProfileStore lists the active profiles a new article is scored against.
type ProfileStore interface {
	ListActive(ctx context.Context) ([]*domain.Profile, error)
}

// HotCache is the optional Redis layer in front of the insight store.
type HotCache interface {
	Get(ctx context.Context, articleID, fingerprint, modelVersion string) (*domain.Insight, error)
	Set(ctx context.Context, insight *domain.Insight) error
}

// Config holds scorer tuning knobs.
type Config struct {
	// Timeout bounds one model call.
	Timeout time.Duration
	// CallsPerMinute is the overall model call budget across profiles.
	CallsPerMinute int
	// Concurrency bounds the batch scoring worker pool.
	Concurrency int
}

// Scorer computes and caches insights. For any (article, fingerprint,
// model version) key at most one model call is ever made: the insight
// store's unique constraint guards cross-process races and the
// single-flight group collapses concurrent in-process callers.
type Scorer struct {
	insights InsightStore
	articles ArticleStore
	model    ModelClient
	cache    HotCache
	limiter  *rate.Limiter
	flight   singleflight.Group
	cfg      Config
	logger   logger.Logger
}

// New creates a scorer. cache may be nil to disable the hot cache layer.
func New(insights InsightStore, articles ArticleStore, model ModelClient, cache HotCache, cfg Config, log logger.Logger) *Scorer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CallsPerMinute <= 0 {
		cfg.CallsPerMinute = 20
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	return &Scorer{
		insights: insights,
		articles: articles,
		model:    model,
		cache:    cache,
		limiter:  rate.NewLimiter(rate.Limit(float64(cfg.CallsPerMinute)/60.0), cfg.CallsPerMinute),
		cfg:      cfg,
		logger:   log,
	}
}

// ModelVersion returns the version string insights are keyed under.
func (s *Scorer) ModelVersion() string {
	return s.model.Version()
}

// Score returns the insight for (article, profile), computing it at most
// once. Cache hits cost zero model calls.
func (s *Scorer) Score(ctx context.Context, article *domain.Article, profile *domain.Profile) (*domain.Insight, error) {
	fingerprint := profile.Fingerprint()
	modelVersion := s.model.Version()

	if insight, ok := s.lookup(ctx, article.ID, fingerprint, modelVersion); ok {
		return insight, nil
	}

	key := article.ID + ":" + fingerprint + ":" + modelVersion
	result, err, _ := s.flight.Do(key, func() (any, error) {
		// Re-check under the flight: a concurrent caller may have
		// completed and persisted while this one queued.
		if insight, ok := s.lookup(ctx, article.ID, fingerprint, modelVersion); ok {
			return insight, nil
		}
		return s.compute(ctx, article, profile, fingerprint, modelVersion)
	})
	if err != nil {
		return nil, err
	}

	return result.(*domain.Insight), nil
}

// lookup checks the hot cache, then the insight store.
func (s *Scorer) lookup(ctx context.Context, articleID, fingerprint, modelVersion string) (*domain.Insight, bool) {
	if s.cache != nil {
		if insight, err := s.cache.Get(ctx, articleID, fingerprint, modelVersion); err == nil {
			return insight, true
		}
	}

	insight, err := s.insights.Get(ctx, articleID, fingerprint, modelVersion)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("Insight store lookup failed", logger.Error(err))
		}
		return nil, false
	}

	s.backfillCache(ctx, insight)
	return insight, true
}

// compute performs the model call and persists the result. Malformed output
// is retried exactly once before the article is marked failed.
func (s *Scorer) compute(ctx context.Context, article *domain.Article, profile *domain.Profile, fingerprint, modelVersion string) (*domain.Insight, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	userPrompt := buildUserPrompt(article, profile)

	started := time.Now()
	result, err := s.callOnceWithRetry(ctx, userPrompt)
	latency := time.Since(started)

	if err != nil {
		if errors.Is(err, domain.ErrMalformedOutput) {
			if attemptErr := s.articles.IncrementAttempts(ctx, article.ID); attemptErr != nil {
				s.logger.Error("Failed to record scoring attempt", logger.Error(attemptErr))
			}
		}
		s.logger.Warn("Scoring failed",
			logger.String("article_id", article.ID),
			logger.String("fingerprint", fingerprint),
			logger.Error(err),
		)
		return nil, err
	}

	insight := &domain.Insight{
		ArticleID:          article.ID,
		ProfileFingerprint: fingerprint,
		ModelVersion:       modelVersion,
		Summary:            strings.TrimSpace(result.Summary),
		ImpactReasoning:    strings.TrimSpace(result.Reasoning),
		ImpactType:         domain.ImpactType(result.Impact),
		ImpactScore:        result.Score,
		ProcessingTimeMs:   int(latency.Milliseconds()),
	}

	if createErr := s.insights.Create(ctx, insight); createErr != nil {
		return nil, createErr
	}

	if markErr := s.articles.MarkProcessed(ctx, article.ID); markErr != nil {
		s.logger.Error("Failed to mark article processed", logger.Error(markErr))
	}

	s.backfillCache(ctx, insight)

	s.logger.Info("Scored article",
		logger.String("article_id", article.ID),
		logger.String("impact", string(insight.ImpactType)),
		logger.Float64("score", insight.ImpactScore),
		logger.Duration("latency", latency),
	)

	return insight, nil
}

// callOnceWithRetry invokes the model, retrying a single time when the
// output is malformed. Provider errors are not retried here; the batch
// dispatcher revisits unprocessed articles on later passes.
func (s *Scorer) callOnceWithRetry(ctx context.Context, userPrompt string) (*modelResult, error) {
	var lastErr error
	for attempt := range 2 {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		raw, err := s.model.Complete(callCtx, systemPrompt, userPrompt)
		cancel()

		if err != nil {
			return nil, err
		}

		result, parseErr := parseModelOutput(raw)
		if parseErr == nil {
			return result, nil
		}

		lastErr = parseErr
		if attempt == 0 {
			s.logger.Warn("Malformed model output, retrying once", logger.Error(parseErr))
		}
	}

	return nil, lastErr
}

func (s *Scorer) backfillCache(ctx context.Context, insight *domain.Insight) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, insight); err != nil {
		s.logger.Warn("Insight cache write failed", logger.Error(err))
	}
}

// ScoreForActiveProfilesAsync runs ScoreForActiveProfiles on its own
// goroutine. The ingest path uses it so fetch workers never queue behind
// the model call budget.
func (s *Scorer) ScoreForActiveProfilesAsync(ctx context.Context, profiles ProfileStore, article *domain.Article) {
	go s.ScoreForActiveProfiles(ctx, profiles, article)
}

// ScoreForActiveProfiles scores one article against every distinct active
// profile fingerprint on a bounded worker pool. Per-fingerprint failures
// are recorded and do not abort the batch.
func (s *Scorer) ScoreForActiveProfiles(ctx context.Context, profiles ProfileStore, article *domain.Article) {
	active, err := profiles.ListActive(ctx)
	if err != nil {
		s.logger.Error("Failed to list active profiles", logger.Error(err))
		return
	}

	// Profiles sharing a fingerprint share one insight; score each
	// fingerprint once.
	byFingerprint := make(map[string]*domain.Profile, len(active))
	for _, profile := range active {
		byFingerprint[profile.Fingerprint()] = profile
	}

	jobs := make(chan *domain.Profile)
	var wg sync.WaitGroup

	for range s.cfg.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for profile := range jobs {
				if _, scoreErr := s.Score(ctx, article, profile); scoreErr != nil && !errors.Is(scoreErr, context.Canceled) {
					s.logger.Warn("Batch scoring entry failed",
						logger.String("article_id", article.ID),
						logger.Error(scoreErr),
					)
				}
			}
		}()
	}

	for _, profile := range byFingerprint {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case jobs <- profile:
		}
	}
	close(jobs)
	wg.Wait()
}
