package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CLewisMessina/wolfalert/internal/domain"
)

func sourceRows(lastFetched any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "feed_url", "reliability", "weight", "fetch_interval_secs",
		"last_fetched_at", "consecutive_failures", "degraded", "active",
		"created_at", "updated_at",
	}).AddRow(
		"source-1", "TechCrunch AI", "https://techcrunch.com/feed/", "medium", 1.0,
		int64(4*60*60), lastFetched, 0, false, true,
		time.Now(), time.Now(),
	)
}

func TestSourceRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO sources").
		WithArgs(
			sqlmock.AnyArg(), // generated id
			"TechCrunch AI",
			"https://techcrunch.com/feed/",
			"medium",
			1.0,
			int64(4*60*60),
			true,
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewSourceRepository(db)
	source := &domain.Source{
		Name:          "TechCrunch AI",
		FeedURL:       "https://techcrunch.com/feed/",
		Reliability:   domain.ReliabilityMedium,
		Weight:        1.0,
		FetchInterval: 4 * time.Hour,
		Active:        true,
	}

	require.NoError(t, repo.Create(context.Background(), source))
	assert.NotEmpty(t, source.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSourceRepository_ListDue_NeverFetchedIncluded(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM sources").
		WillReturnRows(sourceRows(nil))

	repo := NewSourceRepository(db)
	due, listErr := repo.ListDue(context.Background(), time.Now())

	require.NoError(t, listErr)
	require.Len(t, due, 1)
	assert.Nil(t, due[0].LastFetchedAt, "never-fetched sources carry no timestamp")
	assert.Equal(t, 4*time.Hour, due[0].FetchInterval)
}

func TestSourceRepository_RecordSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fetchedAt := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE sources").
		WithArgs("source-1", fetchedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewSourceRepository(db)
	require.NoError(t, repo.RecordSuccess(context.Background(), "source-1", fetchedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSourceRepository_RecordFailure_TransientKeepsSchedule(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	attemptedAt := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE sources").
		WithArgs("source-1", attemptedAt, 3, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewSourceRepository(db)
	failErr := repo.RecordFailure(context.Background(), "source-1", attemptedAt, false, 3)

	require.NoError(t, failErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSourceRepository_RecordFailure_PermanentAdvancesSchedule(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	attemptedAt := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE sources").
		WithArgs("source-1", attemptedAt, 3, true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewSourceRepository(db)
	failErr := repo.RecordFailure(context.Background(), "source-1", attemptedAt, true, 3)

	require.NoError(t, failErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSourceRepository_SetActive_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE sources SET active").
		WithArgs("missing", false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewSourceRepository(db)
	setErr := repo.SetActive(context.Background(), "missing", false)

	assert.ErrorIs(t, setErr, domain.ErrNotFound)
}
