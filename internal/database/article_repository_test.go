package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CLewisMessina/wolfalert/internal/domain"
)

func newArticle() *domain.Article {
	return &domain.Article{
		SourceID:    "3f0e8a1c-0000-0000-0000-000000000001",
		URL:         "https://example.com/ai-announcement",
		Title:       "AI announcement",
		Content:     "body text",
		PublishedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		FetchedAt:   time.Date(2026, 8, 1, 13, 0, 0, 0, time.UTC),
		ExpiresAt:   time.Date(2026, 8, 31, 13, 0, 0, 0, time.UTC),
	}
}

func TestArticleRepository_Ingest_Created(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO articles").
		WithArgs(
			sqlmock.AnyArg(), // generated id
			"3f0e8a1c-0000-0000-0000-000000000001",
			"https://example.com/ai-announcement",
			"AI announcement",
			"body text",
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("generated-id"))

	repo := NewArticleRepository(db)
	result, ingestErr := repo.Ingest(context.Background(), newArticle())

	require.NoError(t, ingestErr)
	assert.Equal(t, IngestCreated, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepository_Ingest_DuplicateIsNoOp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// ON CONFLICT DO NOTHING yields no RETURNING row for a seen URL.
	mock.ExpectQuery("INSERT INTO articles").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewArticleRepository(db)
	result, ingestErr := repo.Ingest(context.Background(), newArticle())

	require.NoError(t, ingestErr, "a duplicate must not surface as an error")
	assert.Equal(t, IngestDuplicate, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepository_GetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM articles").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	repo := NewArticleRepository(db)
	_, getErr := repo.GetByID(context.Background(), "missing")

	assert.ErrorIs(t, getErr, domain.ErrNotFound)
}

func TestArticleRepository_ListUnprocessed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"id", "source_id", "url", "title", "content", "published_at",
		"fetched_at", "expires_at", "processed", "processing_attempts",
	}).AddRow(
		"article-1", "source-1", "https://example.com/a", "A", "body",
		time.Now(), time.Now(), time.Now().Add(24*time.Hour), false, 1,
	)
	mock.ExpectQuery("SELECT (.+) FROM articles").
		WithArgs(50).
		WillReturnRows(rows)

	repo := NewArticleRepository(db)
	pending, listErr := repo.ListUnprocessed(context.Background(), 50)

	require.NoError(t, listErr)
	require.Len(t, pending, 1)
	assert.False(t, pending[0].Processed)
	assert.Equal(t, 1, pending[0].ProcessingAttempts)
}

func TestArticleRepository_Expire(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM articles WHERE expires_at").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 7))

	repo := NewArticleRepository(db)
	removed, expireErr := repo.Expire(context.Background(), now)

	require.NoError(t, expireErr)
	assert.Equal(t, int64(7), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepository_IncrementAttempts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE articles SET processing_attempts").
		WithArgs("article-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewArticleRepository(db)
	require.NoError(t, repo.IncrementAttempts(context.Background(), "article-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
