package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WaveFM/model"
)

func newTrackRepoMock(t *testing.T) (TrackRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQLTrackRepository(db), mock
}

func TestClaimFinalizingWinsOnce(t *testing.T) {
	repo, mock := newTrackRepoMock(t)

	pattern := regexp.QuoteMeta(`UPDATE tracks SET status = ?, updated_at = ? WHERE id = ? AND status = ?`)

	mock.ExpectExec(pattern).
		WithArgs(model.StatusFinalizing, sqlmock.AnyArg(), "t1", model.StatusUploading).
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := repo.ClaimFinalizing(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, claimed)

	// A second claimer finds the row already moved and loses.
	mock.ExpectExec(pattern).
		WithArgs(model.StatusFinalizing, sqlmock.AnyArg(), "t1", model.StatusUploading).
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err = repo.ClaimFinalizing(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, claimed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitCompleteGuardedOnFinalizing(t *testing.T) {
	repo, mock := newTrackRepoMock(t)

	duration := model.DurationFromSeconds(180)
	mock.ExpectExec("UPDATE tracks").
		WithArgs(model.StatusComplete, "tracks/t1/audio",
			duration.Months, duration.Days, duration.Microseconds,
			sqlmock.AnyArg(), "t1", model.StatusFinalizing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CommitComplete(context.Background(), "t1", "tracks/t1/audio", duration)
	require.NoError(t, err)

	// If the row is not in 'finalizing' the commit must refuse rather than
	// resurrect a failed or already complete track.
	mock.ExpectExec("UPDATE tracks").
		WithArgs(model.StatusComplete, "tracks/t1/audio",
			duration.Months, duration.Days, duration.Microseconds,
			sqlmock.AnyArg(), "t1", model.StatusFinalizing).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.CommitComplete(context.Background(), "t1", "tracks/t1/audio", duration)
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTrackByIDNotFound(t *testing.T) {
	repo, mock := newTrackRepoMock(t)

	mock.ExpectQuery("SELECT (.+) FROM tracks WHERE id = ?").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetTrackByID(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrTrackNotFound)
}

func TestGetRandomTracksFiltersByStatus(t *testing.T) {
	repo, mock := newTrackRepoMock(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "title", "artist", "file_name", "file_path", "thumbnail_path",
		"duration_months", "duration_days", "duration_microseconds", "status", "created_at", "updated_at",
		"is_favorite", "played_months", "played_days", "played_microseconds", "played_at", "is_created_by_user",
	}).AddRow("t1", int64(7), "Title", "Artist", "song.flac", "tracks/t1/audio", "",
		0, 0, int64(180_000_000), model.StatusComplete, now, now,
		true, 0, 0, int64(30_000_000), now, true)

	mock.ExpectQuery(`WHERE t.status = (.+) ORDER BY RAND\(\)`).
		WithArgs(int64(7), int64(7), int64(7), model.StatusComplete, 20).
		WillReturnRows(rows)

	views, err := repo.GetRandomTracks(context.Background(), 7, 20)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "t1", views[0].ID)
	assert.True(t, views[0].IsFavorite)
	assert.NotNil(t, views[0].PlayedAt)
	assert.InDelta(t, 30.0, views[0].DurationPlayed.Seconds(), 1e-9)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseStuckFinalizing(t *testing.T) {
	repo, mock := newTrackRepoMock(t)

	cutoff := time.Now().Add(-10 * time.Minute)
	mock.ExpectExec("UPDATE tracks SET status").
		WithArgs(model.StatusUploading, sqlmock.AnyArg(), model.StatusFinalizing, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.ReleaseStuckFinalizing(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
