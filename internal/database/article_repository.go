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

// IngestResult reports the outcome of an ingest attempt.
type IngestResult string

const (
	// IngestCreated means the article URL was unseen and a row was created.
	IngestCreated IngestResult = "created"
	// IngestDuplicate means the URL already exists; the attempt is a no-op.
	IngestDuplicate IngestResult = "duplicate"
)

// ArticleRepository is the single authoritative article store. The
// uniqueness constraint on the canonical URL enforces deduplication.
type ArticleRepository struct {
	db *sql.DB
}

// NewArticleRepository creates a repository over the given connection.
func NewArticleRepository(db *sql.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// Ingest inserts the candidate article unless its canonical URL has been
// seen before. Duplicates are reported, not errors, so re-fetching a feed
// is idempotent.
func (a *ArticleRepository) Ingest(ctx context.Context, article *domain.Article) (IngestResult, error) {
	article.ID = uuid.New().String()
	if article.FetchedAt.IsZero() {
		article.FetchedAt = time.Now()
	}

	query := `
		INSERT INTO articles (id, source_id, url, title, content, published_at,
			fetched_at, expires_at, processed, processing_attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, 0)
		ON CONFLICT (url) DO NOTHING
		RETURNING id
	`

	var id string
	err := a.db.QueryRowContext(ctx, query,
		article.ID,
		article.SourceID,
		article.URL,
		article.Title,
		article.Content,
		article.PublishedAt,
		article.FetchedAt,
		article.ExpiresAt,
	).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		return IngestDuplicate, nil
	}
	if err != nil {
		return "", fmt.Errorf("ingest article: %w", err)
	}

	return IngestCreated, nil
}

// GetByID returns one article.
func (a *ArticleRepository) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	query := `
		SELECT id, source_id, url, title, content, published_at, fetched_at,
		       expires_at, processed, processing_attempts
		FROM articles
		WHERE id = $1
	`

	var article domain.Article
	err := a.db.QueryRowContext(ctx, query, id).Scan(
		&article.ID,
		&article.SourceID,
		&article.URL,
		&article.Title,
		&article.Content,
		&article.PublishedAt,
		&article.FetchedAt,
		&article.ExpiresAt,
		&article.Processed,
		&article.ProcessingAttempts,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("article %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query article: %w", err)
	}

	return &article, nil
}

// ListUnprocessed returns unexpired articles that have no recorded scoring
// pass yet, oldest first.
func (a *ArticleRepository) ListUnprocessed(ctx context.Context, limit int) ([]*domain.Article, error) {
	query := `
		SELECT id, source_id, url, title, content, published_at, fetched_at,
		       expires_at, processed, processing_attempts
		FROM articles
		WHERE processed = FALSE AND expires_at > NOW()
		ORDER BY fetched_at
		LIMIT $1
	`

	rows, err := a.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed articles: %w", err)
	}
	defer rows.Close()

	var articles []*domain.Article
	for rows.Next() {
		var article domain.Article
		scanErr := rows.Scan(
			&article.ID,
			&article.SourceID,
			&article.URL,
			&article.Title,
			&article.Content,
			&article.PublishedAt,
			&article.FetchedAt,
			&article.ExpiresAt,
			&article.Processed,
			&article.ProcessingAttempts,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("scan article row: %w", scanErr)
		}
		articles = append(articles, &article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("article rows: %w", err)
	}
	return articles, nil
}

// MarkProcessed flags the article as scored.
func (a *ArticleRepository) MarkProcessed(ctx context.Context, id string) error {
	if _, err := a.db.ExecContext(ctx,
		`UPDATE articles SET processed = TRUE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("mark article processed: %w", err)
	}
	return nil
}

// IncrementAttempts bumps the processing attempt counter after a scoring
// failure.
func (a *ArticleRepository) IncrementAttempts(ctx context.Context, id string) error {
	if _, err := a.db.ExecContext(ctx,
		`UPDATE articles SET processing_attempts = processing_attempts + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("increment processing attempts: %w", err)
	}
	return nil
}

// Expire deletes articles past their expiry timestamp. Dependent insights
// are removed by the ON DELETE CASCADE constraint. Returns the number of
// articles removed.
func (a *ArticleRepository) Expire(ctx context.Context, now time.Time) (int64, error) {
	result, err := a.db.ExecContext(ctx,
		`DELETE FROM articles WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("expire articles: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire articles: %w", err)
	}
	return removed, nil
}
