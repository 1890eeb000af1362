// Package fetcher polls the source registry and ingests new feed entries.
package fetcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/CLewisMessina/wolfalert/internal/database"
	"github.com/CLewisMessina/wolfalert/internal/domain"
	"github.com/CLewisMessina/wolfalert/internal/feed"
	"github.com/CLewisMessina/wolfalert/internal/logger"
	"github.com/CLewisMessina/wolfalert/internal/retry"
)

// SourceStore is the slice of the source repository the fetcher needs.
type SourceStore interface {
	ListDue(ctx context.Context, now time.Time) ([]*domain.Source, error)
	RecordSuccess(ctx context.Context, id string, fetchedAt time.Time) error
	RecordFailure(ctx context.Context, id string, attemptedAt time.Time, advanceSchedule bool, degradedAfter int) error
}

// ArticleStore is the slice of the article repository the fetcher needs.
type ArticleStore interface {
	Ingest(ctx context.Context, article *domain.Article) (database.IngestResult, error)
}

// FeedClient retrieves parsed entries for a feed URL.
type FeedClient interface {
	Fetch(ctx context.Context, url string) ([]feed.Entry, error)
}

// Config holds fetcher tuning knobs.
type Config struct {
	TickInterval  time.Duration
	Concurrency   int
	DegradedAfter int
	RetentionDays int
	Backoff       retry.Policy
}

// Fetcher runs the periodic fetch schedule over a bounded worker pool.
type Fetcher struct {
	sources  SourceStore
	articles ArticleStore
	feeds    FeedClient
	cfg      Config
	logger   logger.Logger

	// onIngest, when set, receives every newly created article.
	onIngest func(ctx context.Context, article *domain.Article)

	// nextAttempt holds earliest retry times for sources backing off after
	// transient failures. Definitive failures advance the regular schedule
	// instead, so they never appear here.
	mu          sync.Mutex
	nextAttempt map[string]time.Time
}

// New creates a fetcher.
func New(sources SourceStore, articles ArticleStore, feeds FeedClient, cfg Config, log logger.Logger) *Fetcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Minute
	}
	if cfg.DegradedAfter <= 0 {
		cfg.DegradedAfter = 3
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.Backoff == (retry.Policy{}) {
		cfg.Backoff = retry.DefaultPolicy()
	}

	return &Fetcher{
		sources:     sources,
		articles:    articles,
		feeds:       feeds,
		cfg:         cfg,
		logger:      log,
		nextAttempt: make(map[string]time.Time),
	}
}

// OnIngest registers a hook invoked for each newly created article. Must be
// called before Start.
func (f *Fetcher) OnIngest(hook func(ctx context.Context, article *domain.Article)) {
	f.onIngest = hook
}

// Start runs the fetch schedule until the context is cancelled.
func (f *Fetcher) Start(ctx context.Context) error {
	ticker := time.NewTicker(f.cfg.TickInterval)
	defer ticker.Stop()

	f.logger.Info("Fetcher starting",
		logger.Duration("tick_interval", f.cfg.TickInterval),
		logger.Int("concurrency", f.cfg.Concurrency),
	)

	f.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("Fetcher stopped")
			return ctx.Err()
		case <-ticker.C:
			f.RunOnce(ctx)
		}
	}
}

// RunOnce fetches every due source on the worker pool and waits for the
// pass to finish. Per-source failures are recorded, never propagated.
func (f *Fetcher) RunOnce(ctx context.Context) {
	now := time.Now()

	due, err := f.sources.ListDue(ctx, now)
	if err != nil {
		f.logger.Error("Failed to list due sources", logger.Error(err))
		return
	}

	eligible := make([]*domain.Source, 0, len(due))
	for _, source := range due {
		if f.backoffElapsed(source.ID, now) {
			eligible = append(eligible, source)
		}
	}

	if len(eligible) == 0 {
		return
	}

	f.logger.Debug("Fetching due sources", logger.Int("count", len(eligible)))

	jobs := make(chan *domain.Source)
	var wg sync.WaitGroup

	for range f.cfg.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for source := range jobs {
				f.fetchSource(ctx, source)
			}
		}()
	}

	for _, source := range eligible {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case jobs <- source:
		}
	}
	close(jobs)
	wg.Wait()
}

// maxTitleLen matches the width of the articles title column.
const maxTitleLen = 300

func truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= maxTitleLen {
		return title
	}
	return string(runes[:maxTitleLen])
}

// fetchSource retrieves one feed and ingests its entries in feed order.
func (f *Fetcher) fetchSource(ctx context.Context, source *domain.Source) {
	log := f.logger.With(
		logger.String("source_id", source.ID),
		logger.String("source", source.Name),
	)

	attemptedAt := time.Now()
	entries, err := f.feeds.Fetch(ctx, source.FeedURL)
	if err != nil {
		f.recordFetchError(ctx, source, attemptedAt, err, log)
		return
	}

	f.clearBackoff(source.ID)

	created := 0
	for _, entry := range entries {
		article := &domain.Article{
			SourceID:    source.ID,
			URL:         entry.URL,
			Title:       truncateTitle(entry.Title),
			Content:     entry.Content,
			PublishedAt: entry.PublishedAt,
			FetchedAt:   attemptedAt,
			ExpiresAt:   attemptedAt.AddDate(0, 0, f.cfg.RetentionDays),
		}

		result, ingestErr := f.articles.Ingest(ctx, article)
		if ingestErr != nil {
			log.Error("Failed to ingest entry", logger.String("url", entry.URL), logger.Error(ingestErr))
			continue
		}
		if result == database.IngestCreated {
			created++
			if f.onIngest != nil {
				f.onIngest(ctx, article)
			}
		}
	}

	if recordErr := f.sources.RecordSuccess(ctx, source.ID, attemptedAt); recordErr != nil {
		log.Error("Failed to record fetch success", logger.Error(recordErr))
	}

	log.Info("Fetched source",
		logger.Int("entries", len(entries)),
		logger.Int("created", created),
	)
}

func (f *Fetcher) recordFetchError(ctx context.Context, source *domain.Source, attemptedAt time.Time, err error, log logger.Logger) {
	transient := errors.Is(err, domain.ErrFetchTransient)

	// Transient failures retry on backoff without advancing the schedule;
	// definitive failures complete the attempt and wait a full interval.
	if transient {
		failures := source.ConsecutiveFailures + 1
		delay := f.cfg.Backoff.Delay(failures)
		// A source at the degraded threshold waits the full cap before
		// its next attempt.
		if failures >= f.cfg.DegradedAfter && f.cfg.Backoff.Cap > delay {
			delay = f.cfg.Backoff.Cap
		}
		f.setBackoff(source.ID, attemptedAt.Add(delay))
		log.Warn("Transient fetch failure",
			logger.Int("consecutive_failures", failures),
			logger.Duration("retry_in", delay),
			logger.Error(err),
		)
	} else {
		log.Warn("Permanent fetch failure", logger.Error(err))
	}

	if recordErr := f.sources.RecordFailure(ctx, source.ID, attemptedAt, !transient, f.cfg.DegradedAfter); recordErr != nil {
		log.Error("Failed to record fetch failure", logger.Error(recordErr))
	}
}

func (f *Fetcher) backoffElapsed(sourceID string, now time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	next, ok := f.nextAttempt[sourceID]
	return !ok || !now.Before(next)
}

func (f *Fetcher) setBackoff(sourceID string, next time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextAttempt[sourceID] = next
}

func (f *Fetcher) clearBackoff(sourceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.nextAttempt, sourceID)
}

// NextAttemptAfter reports the earliest allowed retry time for a source, if
// it is currently backing off.
func (f *Fetcher) NextAttemptAfter(sourceID string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	next, ok := f.nextAttempt[sourceID]
	return next, ok
}
