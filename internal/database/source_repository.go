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

// SourceRepository persists the source registry.
type SourceRepository struct {
	db *sql.DB
}

// NewSourceRepository creates a repository over the given connection.
func NewSourceRepository(db *sql.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

const sourceColumns = `id, name, feed_url, reliability, weight, fetch_interval_secs,
	last_fetched_at, consecutive_failures, degraded, active, created_at, updated_at`

// Create inserts a new source.
func (r *SourceRepository) Create(ctx context.Context, source *domain.Source) error {
	source.ID = uuid.New().String()
	source.CreatedAt = time.Now()
	source.UpdatedAt = source.CreatedAt

	query := `
		INSERT INTO sources (id, name, feed_url, reliability, weight, fetch_interval_secs,
			consecutive_failures, degraded, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, FALSE, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		source.ID,
		source.Name,
		source.FeedURL,
		string(source.Reliability),
		source.Weight,
		int64(source.FetchInterval/time.Second),
		source.Active,
		source.CreatedAt,
		source.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}

	return nil
}

// GetByID returns one source.
func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = $1`

	source, err := scanSource(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query source: %w", err)
	}

	return source, nil
}

// List returns all sources ordered by name.
func (r *SourceRepository) List(ctx context.Context) ([]*domain.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	return collectSources(rows)
}

// ListDue returns active sources whose next scheduled attempt is at or before
// now. The schedule accounts for backoff: a failing source is not due until
// last_fetched_at + the supplied per-source backoff delay has passed. Backoff
// delay evaluation is done in Go by the scheduler; this query only applies
// the regular interval and hands back everything active.
func (r *SourceRepository) ListDue(ctx context.Context, now time.Time) ([]*domain.Source, error) {
	query := `
		SELECT ` + sourceColumns + `
		FROM sources
		WHERE active = TRUE
		  AND (last_fetched_at IS NULL
		       OR last_fetched_at + fetch_interval_secs * INTERVAL '1 second' <= $1)
		ORDER BY last_fetched_at NULLS FIRST
	`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("query due sources: %w", err)
	}
	defer rows.Close()

	return collectSources(rows)
}

// RecordSuccess resets the failure counter and advances last_fetched_at.
func (r *SourceRepository) RecordSuccess(ctx context.Context, id string, fetchedAt time.Time) error {
	query := `
		UPDATE sources
		SET last_fetched_at = $2, consecutive_failures = 0, degraded = FALSE, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, fetchedAt); err != nil {
		return fmt.Errorf("record fetch success: %w", err)
	}
	return nil
}

// RecordFailure increments the failure counter. For definitive failures the
// schedule advances (advanceSchedule = true); transient failures leave
// last_fetched_at alone so the backoff delay governs the next attempt.
// Sources crossing degradedAfter consecutive failures are flagged degraded
// but never deactivated.
func (r *SourceRepository) RecordFailure(ctx context.Context, id string, attemptedAt time.Time, advanceSchedule bool, degradedAfter int) error {
	query := `
		UPDATE sources
		SET consecutive_failures = consecutive_failures + 1,
		    degraded = (consecutive_failures + 1 >= $3),
		    last_fetched_at = CASE WHEN $4 THEN $2 ELSE last_fetched_at END,
		    updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, attemptedAt, degradedAfter, advanceSchedule); err != nil {
		return fmt.Errorf("record fetch failure: %w", err)
	}
	return nil
}

// SetActive toggles the admin active flag.
func (r *SourceRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sources SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set source active: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set source active: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("source %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*domain.Source, error) {
	var (
		source       domain.Source
		reliability  string
		intervalSecs int64
		lastFetched  sql.NullTime
	)

	err := row.Scan(
		&source.ID,
		&source.Name,
		&source.FeedURL,
		&reliability,
		&source.Weight,
		&intervalSecs,
		&lastFetched,
		&source.ConsecutiveFailures,
		&source.Degraded,
		&source.Active,
		&source.CreatedAt,
		&source.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	source.Reliability = domain.Reliability(reliability)
	source.FetchInterval = time.Duration(intervalSecs) * time.Second
	if lastFetched.Valid {
		t := lastFetched.Time
		source.LastFetchedAt = &t
	}

	return &source, nil
}

func collectSources(rows *sql.Rows) ([]*domain.Source, error) {
	var sources []*domain.Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source row: %w", err)
		}
		sources = append(sources, source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("source rows: %w", err)
	}
	return sources, nil
}
