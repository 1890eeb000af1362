package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/CLewisMessina/wolfalert/internal/domain"
)

// InsightRepository persists scoring results. The unique constraint on
// (article_id, profile_fingerprint, model_version) is the at-most-once
// compute guarantee the cache provides.
type InsightRepository struct {
	db *sql.DB
}

// NewInsightRepository creates a repository over the given connection.
func NewInsightRepository(db *sql.DB) *InsightRepository {
	return &InsightRepository{db: db}
}

// Create persists a new insight. A concurrent writer losing the race on the
// unique constraint gets the stored row back instead of an error.
func (r *InsightRepository) Create(ctx context.Context, insight *domain.Insight) error {
	if err := insight.Validate(); err != nil {
		return err
	}

	insight.ID = uuid.New().String()
	if insight.CreatedAt.IsZero() {
		insight.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO insights (id, article_id, profile_fingerprint, model_version,
			summary, impact_reasoning, impact_type, impact_score, processing_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (article_id, profile_fingerprint, model_version) DO NOTHING
		RETURNING id
	`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		insight.ID,
		insight.ArticleID,
		insight.ProfileFingerprint,
		insight.ModelVersion,
		insight.Summary,
		insight.ImpactReasoning,
		string(insight.ImpactType),
		insight.ImpactScore,
		insight.ProcessingTimeMs,
		insight.CreatedAt,
	).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		// Lost the insert race; the stored insight wins.
		stored, getErr := r.Get(ctx, insight.ArticleID, insight.ProfileFingerprint, insight.ModelVersion)
		if getErr != nil {
			return getErr
		}
		*insight = *stored
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert insight: %w", err)
	}

	return nil
}

// Get returns the insight for one (article, fingerprint, model version) key.
func (r *InsightRepository) Get(ctx context.Context, articleID, fingerprint, modelVersion string) (*domain.Insight, error) {
	query := `
		SELECT id, article_id, profile_fingerprint, model_version, summary,
		       impact_reasoning, impact_type, impact_score, processing_time_ms, created_at
		FROM insights
		WHERE article_id = $1 AND profile_fingerprint = $2 AND model_version = $3
	`

	var (
		insight    domain.Insight
		impactType string
	)
	err := r.db.QueryRowContext(ctx, query, articleID, fingerprint, modelVersion).Scan(
		&insight.ID,
		&insight.ArticleID,
		&insight.ProfileFingerprint,
		&insight.ModelVersion,
		&insight.Summary,
		&insight.ImpactReasoning,
		&impactType,
		&insight.ImpactScore,
		&insight.ProcessingTimeMs,
		&insight.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("insight for article %s: %w", articleID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query insight: %w", err)
	}

	insight.ImpactType = domain.ImpactType(impactType)
	return &insight, nil
}

// TopForFingerprint returns the highest-scoring insights for a fingerprint
// joined on unexpired articles, ordered by score descending with more recent
// publication breaking ties. Expired articles drop out of the view here; the
// daily sweep removes the rows themselves.
func (r *InsightRepository) TopForFingerprint(ctx context.Context, fingerprint, modelVersion string, limit int) ([]*domain.Insight, error) {
	query := `
		SELECT i.id, i.article_id, i.profile_fingerprint, i.model_version, i.summary,
		       i.impact_reasoning, i.impact_type, i.impact_score, i.processing_time_ms,
		       i.created_at, a.title, a.url, a.published_at
		FROM insights i
		JOIN articles a ON a.id = i.article_id
		WHERE i.profile_fingerprint = $1
		  AND i.model_version = $2
		  AND a.expires_at > NOW()
		ORDER BY i.impact_score DESC, a.published_at DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, fingerprint, modelVersion, limit)
	if err != nil {
		return nil, fmt.Errorf("query top insights: %w", err)
	}
	defer rows.Close()

	var insights []*domain.Insight
	for rows.Next() {
		var (
			insight    domain.Insight
			impactType string
		)
		scanErr := rows.Scan(
			&insight.ID,
			&insight.ArticleID,
			&insight.ProfileFingerprint,
			&insight.ModelVersion,
			&insight.Summary,
			&insight.ImpactReasoning,
			&impactType,
			&insight.ImpactScore,
			&insight.ProcessingTimeMs,
			&insight.CreatedAt,
			&insight.ArticleTitle,
			&insight.ArticleURL,
			&insight.ArticlePublishedAt,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("scan insight row: %w", scanErr)
		}

		insight.ImpactType = domain.ImpactType(impactType)
		insights = append(insights, &insight)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("insight rows: %w", err)
	}
	return insights, nil
}

// CountsForFingerprint returns per-classification insight counts over
// unexpired articles.
func (r *InsightRepository) CountsForFingerprint(ctx context.Context, fingerprint, modelVersion string) (map[domain.ImpactType]int, error) {
	query := `
		SELECT i.impact_type, COUNT(*)
		FROM insights i
		JOIN articles a ON a.id = i.article_id
		WHERE i.profile_fingerprint = $1
		  AND i.model_version = $2
		  AND a.expires_at > NOW()
		GROUP BY i.impact_type
	`

	rows, err := r.db.QueryContext(ctx, query, fingerprint, modelVersion)
	if err != nil {
		return nil, fmt.Errorf("query insight counts: %w", err)
	}
	defer rows.Close()

	counts := map[domain.ImpactType]int{
		domain.ImpactThreat:      0,
		domain.ImpactOpportunity: 0,
		domain.ImpactWatch:       0,
	}
	for rows.Next() {
		var (
			impactType string
			count      int
		)
		if scanErr := rows.Scan(&impactType, &count); scanErr != nil {
			return nil, fmt.Errorf("scan count row: %w", scanErr)
		}
		counts[domain.ImpactType(impactType)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}
	return counts, nil
}
