package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WaveFM/model"
)

func newHistoryRepoMock(t *testing.T) (HistoryRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQLHistoryRepository(db), mock
}

func TestRecordPlayReplacesExistingEntry(t *testing.T) {
	repo, mock := newHistoryRepoMock(t)

	mock.ExpectQuery("SELECT status FROM tracks").
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(model.StatusComplete))

	pattern := regexp.QuoteMeta(`INSERT INTO playback_history`) + `(.+)` +
		regexp.QuoteMeta(`ON DUPLICATE KEY UPDATE played_months = VALUES(played_months)`)

	played := model.DurationFromSeconds(42.5)
	mock.ExpectExec(pattern).
		WithArgs(int64(7), "t1", played.Months, played.Days, played.Microseconds, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2)) // 2: MySQL reports an upsert that updated

	err := repo.RecordPlay(context.Background(), 7, "t1", played)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPlayRejectsIncompleteTrack(t *testing.T) {
	repo, mock := newHistoryRepoMock(t)

	mock.ExpectQuery("SELECT status FROM tracks").
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(model.StatusUploading))

	err := repo.RecordPlay(context.Background(), 7, "t1", model.DurationFromSeconds(10))
	assert.ErrorIs(t, err, model.ErrTrackNotEligible)
}

func TestRecordPlayUnknownTrack(t *testing.T) {
	repo, mock := newHistoryRepoMock(t)

	mock.ExpectQuery("SELECT status FROM tracks").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))

	err := repo.RecordPlay(context.Background(), 7, "missing", model.DurationFromSeconds(10))
	assert.ErrorIs(t, err, model.ErrTrackNotFound)
}

func TestHistoryListGatesOnCompleteStatus(t *testing.T) {
	repo, mock := newHistoryRepoMock(t)

	mock.ExpectQuery(`INNER JOIN tracks t ON t.id = ph.track_id AND t.status = (.+) ORDER BY ph.played_at DESC`).
		WithArgs(int64(7), model.StatusComplete, int64(7), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	views, err := repo.ListByUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, views)
	assert.NoError(t, mock.ExpectationsWereMet())
}
