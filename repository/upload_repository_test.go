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

func newUploadRepoMock(t *testing.T) (UploadRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQLUploadRepository(db), mock
}

func TestGetSessionNotFound(t *testing.T) {
	repo, mock := newUploadRepoMock(t)

	mock.ExpectQuery("SELECT (.+) FROM upload_sessions WHERE track_id = ?").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"track_id"}))

	_, err := repo.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestUpsertChunkUsesDuplicateKeyUpdate(t *testing.T) {
	repo, mock := newUploadRepoMock(t)

	pattern := regexp.QuoteMeta(`INSERT INTO track_chunks`) + `(.+)` +
		regexp.QuoteMeta(`ON DUPLICATE KEY UPDATE byte_size = VALUES(byte_size)`)

	mock.ExpectExec(pattern).
		WithArgs("t1", 3, int64(1024), "tracks/t1/chunks/000003", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertChunk(context.Background(), &model.ChunkRecord{
		TrackID:    "t1",
		ChunkIndex: 3,
		ByteSize:   1024,
		ObjectKey:  "tracks/t1/chunks/000003",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListIncompleteByUserReadsCommittedState(t *testing.T) {
	repo, mock := newUploadRepoMock(t)

	rows := sqlmock.NewRows([]string{
		"id", "title", "artist", "thumbnail_path", "status",
		"total_chunks", "received_chunks", "watermark",
	}).
		AddRow("t1", "Title", "Artist", "", model.StatusUploading, 10, 4, 1).
		AddRow("t2", "", "", "", model.StatusFinalizing, 3, 3, 2)

	mock.ExpectQuery("FROM upload_sessions s INNER JOIN tracks t").
		WithArgs(int64(7), model.StatusUploading, model.StatusFinalizing).
		WillReturnRows(rows)

	descriptors, err := repo.ListIncompleteByUser(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, descriptors, 2)

	assert.Equal(t, "t1", descriptors[0].TrackID)
	assert.Equal(t, 4, descriptors[0].ReceivedChunks)
	assert.Equal(t, 1, descriptors[0].Watermark)
	assert.Equal(t, model.StatusFinalizing, descriptors[1].Status)
}

func TestListStuckSessions(t *testing.T) {
	repo, mock := newUploadRepoMock(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"track_id", "total_chunks", "received_chunks", "watermark", "storage_prefix", "created_at", "updated_at",
	}).AddRow("t1", 5, 5, 4, "tracks/t1", now, now)

	mock.ExpectQuery("s.received_chunks = s.total_chunks").
		WithArgs(model.StatusUploading).
		WillReturnRows(rows)

	sessions, err := repo.ListStuckSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "t1", sessions[0].TrackID)
}
