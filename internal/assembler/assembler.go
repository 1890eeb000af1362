// Package assembler builds ranked dashboard views from stored insights.
// It is a pure read path: assembly never triggers scoring.
package assembler

import (
	"context"
	"fmt"
	"time"

	"github.com/CLewisMessina/wolfalert/internal/domain"
	"github.com/CLewisMessina/wolfalert/internal/logger"
)

// InsightStore is the slice of the insight repository assembly reads from.
type InsightStore interface {
	TopForFingerprint(ctx context.Context, fingerprint, modelVersion string, limit int) ([]*domain.Insight, error)
	CountsForFingerprint(ctx context.Context, fingerprint, modelVersion string) (map[domain.ImpactType]int, error)
}

// ProfileStore resolves the profile a dashboard is assembled for.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
}

// Config holds dashboard assembly knobs.
type Config struct {
	// MaxSecondary bounds the secondary alert list below the primary.
	MaxSecondary int
}

// Assembler composes dashboards from already-scored insights.
type Assembler struct {
	insights InsightStore
	profiles ProfileStore
	cfg      Config
	logger   logger.Logger

	now func() time.Time
}

func New(insights InsightStore, profiles ProfileStore, cfg Config, log logger.Logger) *Assembler {
	if cfg.MaxSecondary <= 0 {
		cfg.MaxSecondary = 9
	}
	return &Assembler{
		insights: insights,
		profiles: profiles,
		cfg:      cfg,
		logger:   log,
		now:      time.Now,
	}
}

// Assemble builds the dashboard for one profile. Insights are ranked by
// impact score descending, recency breaking ties; the top insight becomes
// the primary alert and the next MaxSecondary fill the secondary list. A
// profile with no scored insights yet gets an empty dashboard, not an error.
func (a *Assembler) Assemble(ctx context.Context, profileID, modelVersion string) (*domain.Dashboard, error) {
	profile, err := a.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("resolving profile %s: %w", profileID, err)
	}

	fingerprint := profile.Fingerprint()
	limit := a.cfg.MaxSecondary + 1

	ranked, err := a.insights.TopForFingerprint(ctx, fingerprint, modelVersion, limit)
	if err != nil {
		return nil, fmt.Errorf("ranking insights: %w", err)
	}

	counts, err := a.insights.CountsForFingerprint(ctx, fingerprint, modelVersion)
	if err != nil {
		return nil, fmt.Errorf("counting insights: %w", err)
	}

	dashboard := &domain.Dashboard{
		ProfileID:   profile.ID,
		Fingerprint: fingerprint,
		Secondary:   []*domain.Insight{},
		Counts:      counts,
		GeneratedAt: a.now(),
	}

	if len(ranked) > 0 {
		dashboard.Primary = ranked[0]
		dashboard.Secondary = ranked[1:]
	}

	a.logger.Debug("Assembled dashboard",
		logger.String("profile_id", profile.ID),
		logger.Int("ranked", len(ranked)),
	)

	return dashboard, nil
}
