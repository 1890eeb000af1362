package fetcher

import (
	"context"
	"time"

	"github.com/CLewisMessina/wolfalert/internal/logger"
)

// ExpiryStore is the slice of the article repository the sweeper needs.
type ExpiryStore interface {
	Expire(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper removes articles past their retention window on a fixed schedule.
// Dependent insights are removed by the store's cascade constraint.
type Sweeper struct {
	articles ExpiryStore
	interval time.Duration
	logger   logger.Logger
}

// NewSweeper creates a sweeper running every interval.
func NewSweeper(articles ExpiryStore, interval time.Duration, log logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	return &Sweeper{
		articles: articles,
		interval: interval,
		logger:   log,
	}
}

// Start runs the sweep schedule until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs a single expiry pass.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	removed, err := s.articles.Expire(ctx, time.Now())
	if err != nil {
		s.logger.Error("Expiry sweep failed", logger.Error(err))
		return
	}

	if removed > 0 {
		s.logger.Info("Expired articles removed", logger.Int("count", int(removed)))
	}
}
