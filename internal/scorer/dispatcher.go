package scorer

import (
	"context"
	"time"

	"github.com/CLewisMessina/wolfalert/internal/domain"
	"github.com/CLewisMessina/wolfalert/internal/logger"
)

// UnprocessedLister pages through articles that still lack a scoring pass.
type UnprocessedLister interface {
	ListUnprocessed(ctx context.Context, limit int) ([]*domain.Article, error)
}

// Dispatcher periodically rescores articles left unprocessed by provider
// outages or restarts. New articles are scored on ingest; this loop is the
// catch-up path.
type Dispatcher struct {
	scorer   *Scorer
	articles UnprocessedLister
	profiles ProfileStore
	interval time.Duration
	batch    int
	logger   logger.Logger
}

// NewDispatcher creates a dispatcher running every interval over batches of
// batch articles.
func NewDispatcher(s *Scorer, articles UnprocessedLister, profiles ProfileStore, interval time.Duration, batch int, log logger.Logger) *Dispatcher {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if batch <= 0 {
		batch = 50
	}

	return &Dispatcher{
		scorer:   s,
		articles: articles,
		profiles: profiles,
		interval: interval,
		batch:    batch,
		logger:   log,
	}
}

// Start runs the catch-up schedule until the context is cancelled.
func (d *Dispatcher) Start(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Scoring dispatcher stopped")
			return ctx.Err()
		case <-ticker.C:
			d.RunOnce(ctx)
		}
	}
}

// RunOnce scores one batch of unprocessed articles against the active
// profile fingerprints.
func (d *Dispatcher) RunOnce(ctx context.Context) {
	pending, err := d.articles.ListUnprocessed(ctx, d.batch)
	if err != nil {
		d.logger.Error("Failed to list unprocessed articles", logger.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	d.logger.Info("Rescoring unprocessed articles", logger.Int("count", len(pending)))

	for _, article := range pending {
		if ctx.Err() != nil {
			return
		}
		d.scorer.ScoreForActiveProfiles(ctx, d.profiles, article)
	}
}
