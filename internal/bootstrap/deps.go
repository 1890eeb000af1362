package bootstrap

import (
	"context"

	"github.com/CLewisMessina/wolfalert/internal/assembler"
	"github.com/CLewisMessina/wolfalert/internal/cache"
	"github.com/CLewisMessina/wolfalert/internal/config"
	"github.com/CLewisMessina/wolfalert/internal/database"
	"github.com/CLewisMessina/wolfalert/internal/domain"
	"github.com/CLewisMessina/wolfalert/internal/feed"
	"github.com/CLewisMessina/wolfalert/internal/fetcher"
	"github.com/CLewisMessina/wolfalert/internal/logger"
	"github.com/CLewisMessina/wolfalert/internal/retry"
	"github.com/CLewisMessina/wolfalert/internal/scorer"
)

// Dependencies holds the wired application components.
type Dependencies struct {
	Config     *config.Config
	Sources    *database.SourceRepository
	Articles   *database.ArticleRepository
	Profiles   *database.ProfileRepository
	Insights   *database.InsightRepository
	Fetcher    *fetcher.Fetcher
	Sweeper    *fetcher.Sweeper
	Scorer     *scorer.Scorer
	Dispatcher *scorer.Dispatcher
	Assembler  *assembler.Assembler
}

// BuildDependencies constructs the repositories, pipeline stages, and
// read path, and wires ingestion to scoring: every newly created article
// is scored against the distinct active profile fingerprints.
func BuildDependencies(cfg *config.Config, db *database.Connection, hotCache *cache.InsightCache, log logger.Logger) *Dependencies {
	sources := database.NewSourceRepository(db.DB)
	articles := database.NewArticleRepository(db.DB)
	profiles := database.NewProfileRepository(db.DB)
	insights := database.NewInsightRepository(db.DB)

	feedClient := feed.NewClient(cfg.Fetcher.Timeout)

	fetch := fetcher.New(sources, articles, feedClient, fetcher.Config{
		TickInterval:  cfg.Fetcher.TickInterval,
		Concurrency:   cfg.Fetcher.Concurrency,
		DegradedAfter: cfg.Fetcher.DegradedAfter,
		RetentionDays: cfg.Fetcher.RetentionDays,
		Backoff: retry.Policy{
			Base:       cfg.Fetcher.BackoffBase,
			Multiplier: 2.0,
			Cap:        cfg.Fetcher.BackoffCap,
		},
	}, log)

	sweep := fetcher.NewSweeper(articles, cfg.Fetcher.ExpirySweep, log)

	model := scorer.NewOpenAIClient(cfg.Scorer.OpenAIKey, cfg.Scorer.Model)

	// A nil *InsightCache must stay a nil interface inside the scorer.
	var scorerCache scorer.HotCache
	if hotCache != nil {
		scorerCache = hotCache
	}

	score := scorer.New(insights, articles, model, scorerCache, scorer.Config{
		Timeout:        cfg.Scorer.Timeout,
		CallsPerMinute: cfg.Scorer.CallsPerMinute,
		Concurrency:    cfg.Scorer.Concurrency,
	}, log)

	fetch.OnIngest(func(ctx context.Context, article *domain.Article) {
		score.ScoreForActiveProfilesAsync(ctx, profiles, article)
	})

	dispatch := scorer.NewDispatcher(score, articles, profiles,
		cfg.Scorer.RescoreInterval, cfg.Scorer.RescoreBatch, log)

	assemble := assembler.New(insights, profiles, assembler.Config{
		MaxSecondary: cfg.Dashboard.MaxSecondary,
	}, log)

	return &Dependencies{
		Config:     cfg,
		Sources:    sources,
		Articles:   articles,
		Profiles:   profiles,
		Insights:   insights,
		Fetcher:    fetch,
		Sweeper:    sweep,
		Scorer:     score,
		Dispatcher: dispatch,
		Assembler:  assemble,
	}
}
