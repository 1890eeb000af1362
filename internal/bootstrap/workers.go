package bootstrap

import (
	"context"

	"github.com/CLewisMessina/wolfalert/internal/logger"
)

// StartWorkers launches the background fetch scheduler and the daily
// article expiry sweeper.
func StartWorkers(ctx context.Context, deps *Dependencies, log logger.Logger) {
	go func() {
		if err := deps.Fetcher.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error("Fetch scheduler stopped", logger.Error(err))
		}
	}()

	go func() {
		if err := deps.Sweeper.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error("Expiry sweeper stopped", logger.Error(err))
		}
	}()

	go func() {
		if err := deps.Dispatcher.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error("Scoring dispatcher stopped", logger.Error(err))
		}
	}()

	log.Info("Background workers started",
		logger.Duration("fetch_tick", deps.Config.Fetcher.TickInterval),
		logger.Duration("expiry_sweep", deps.Config.Fetcher.ExpirySweep),
	)
}
