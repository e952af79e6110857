package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"WaveFM/model"
)

// UploadRepository defines the interface for upload session and chunk
// receipt bookkeeping. The chunk receipt table is the durable
// received-index set: the session's counter is only ever derived from it,
// which is what makes duplicate chunk delivery safe.
type UploadRepository interface {
	CreateSession(ctx context.Context, session *model.UploadSession) error
	GetSession(ctx context.Context, trackID string) (*model.UploadSession, error)

	// UpsertChunk records a chunk receipt, overwriting any prior row for
	// the same index.
	UpsertChunk(ctx context.Context, rec *model.ChunkRecord) error
	// ListChunks returns all chunk receipts for a track ordered by index.
	ListChunks(ctx context.Context, trackID string) ([]model.ChunkRecord, error)
	// UpdateProgress persists the derived received count and watermark.
	UpdateProgress(ctx context.Context, trackID string, received, watermark int) error

	// ListIncompleteByUser is the resume query: every mid-upload track of
	// the owner, read straight from committed session rows without taking
	// any per-track lock.
	ListIncompleteByUser(ctx context.Context, userID int64) ([]model.ResumeDescriptor, error)
	// ListStuckSessions returns sessions whose chunk set is complete but
	// whose track never left 'uploading' (crash before or during
	// finalization). Input for the recovery sweep.
	ListStuckSessions(ctx context.Context) ([]model.UploadSession, error)
}

// mysqlUploadRepository implements UploadRepository for MySQL.
type mysqlUploadRepository struct {
	db *sql.DB
}

// NewMySQLUploadRepository creates a new mysqlUploadRepository.
func NewMySQLUploadRepository(db *sql.DB) UploadRepository {
	return &mysqlUploadRepository{db: db}
}

// CreateSession inserts the 1:1 session row for a track.
func (r *mysqlUploadRepository) CreateSession(ctx context.Context, session *model.UploadSession) error {
	query := `INSERT INTO upload_sessions (track_id, total_chunks, received_chunks, watermark, storage_prefix, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		session.TrackID, session.TotalChunks, session.ReceivedChunks, session.Watermark,
		session.StoragePrefix, now, now)
	if err != nil {
		return fmt.Errorf("failed to execute CreateSession for track %s: %w", session.TrackID, err)
	}
	return nil
}

// GetSession retrieves the session for a track, or ErrSessionNotFound.
func (r *mysqlUploadRepository) GetSession(ctx context.Context, trackID string) (*model.UploadSession, error) {
	query := `SELECT track_id, total_chunks, received_chunks, watermark, storage_prefix, created_at, updated_at
	           FROM upload_sessions WHERE track_id = ?`
	session := &model.UploadSession{}
	err := r.db.QueryRowContext(ctx, query, trackID).Scan(
		&session.TrackID, &session.TotalChunks, &session.ReceivedChunks, &session.Watermark,
		&session.StoragePrefix, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to scan session for track %s: %w", trackID, err)
	}
	return session, nil
}

// UpsertChunk records a chunk receipt. Re-receiving an index overwrites
// the prior row; the primary key guarantees at most one row per index.
func (r *mysqlUploadRepository) UpsertChunk(ctx context.Context, rec *model.ChunkRecord) error {
	query := `INSERT INTO track_chunks (track_id, chunk_idx, byte_size, object_key, received_at)
	           VALUES (?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE byte_size = VALUES(byte_size), object_key = VALUES(object_key), received_at = VALUES(received_at)`
	_, err := r.db.ExecContext(ctx, query, rec.TrackID, rec.ChunkIndex, rec.ByteSize, rec.ObjectKey, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert chunk %d of track %s: %w", rec.ChunkIndex, rec.TrackID, err)
	}
	return nil
}

// ListChunks returns all chunk receipts for a track ordered by index.
func (r *mysqlUploadRepository) ListChunks(ctx context.Context, trackID string) ([]model.ChunkRecord, error) {
	query := `SELECT track_id, chunk_idx, byte_size, object_key, received_at
	           FROM track_chunks WHERE track_id = ? ORDER BY chunk_idx ASC`
	rows, err := r.db.QueryContext(ctx, query, trackID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks for track %s: %w", trackID, err)
	}
	defer rows.Close()

	chunks := make([]model.ChunkRecord, 0)
	for rows.Next() {
		var rec model.ChunkRecord
		if err := rows.Scan(&rec.TrackID, &rec.ChunkIndex, &rec.ByteSize, &rec.ObjectKey, &rec.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk record: %w", err)
		}
		chunks = append(chunks, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during chunk iteration: %w", err)
	}
	return chunks, nil
}

// UpdateProgress persists the derived counter and watermark on the session.
func (r *mysqlUploadRepository) UpdateProgress(ctx context.Context, trackID string, received, watermark int) error {
	query := `UPDATE upload_sessions SET received_chunks = ?, watermark = ?, updated_at = ? WHERE track_id = ?`
	_, err := r.db.ExecContext(ctx, query, received, watermark, time.Now(), trackID)
	if err != nil {
		return fmt.Errorf("failed to update progress for track %s: %w", trackID, err)
	}
	return nil
}

// ListIncompleteByUser returns resume descriptors for every in-flight
// upload of the user. Reads only committed rows; a slightly stale
// watermark is fine, one ahead of durable state is not, which is why this
// never consults any cache.
func (r *mysqlUploadRepository) ListIncompleteByUser(ctx context.Context, userID int64) ([]model.ResumeDescriptor, error) {
	query := `SELECT t.id, t.title, t.artist, t.thumbnail_path, t.status,
	           s.total_chunks, s.received_chunks, s.watermark
	           FROM upload_sessions s
	           INNER JOIN tracks t ON t.id = s.track_id
	           WHERE t.user_id = ? AND t.status IN (?, ?)
	           ORDER BY s.updated_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID, model.StatusUploading, model.StatusFinalizing)
	if err != nil {
		return nil, fmt.Errorf("failed to query incomplete uploads for user %d: %w", userID, err)
	}
	defer rows.Close()

	descriptors := make([]model.ResumeDescriptor, 0)
	for rows.Next() {
		var d model.ResumeDescriptor
		err := rows.Scan(&d.TrackID, &d.Title, &d.Artist, &d.ThumbnailPath, &d.Status,
			&d.TotalChunks, &d.ReceivedChunks, &d.Watermark)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resume descriptor: %w", err)
		}
		descriptors = append(descriptors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during resume iteration: %w", err)
	}
	return descriptors, nil
}

// ListStuckSessions finds sessions with a full chunk set whose track is
// still 'uploading'.
func (r *mysqlUploadRepository) ListStuckSessions(ctx context.Context) ([]model.UploadSession, error) {
	query := `SELECT s.track_id, s.total_chunks, s.received_chunks, s.watermark, s.storage_prefix, s.created_at, s.updated_at
	           FROM upload_sessions s
	           INNER JOIN tracks t ON t.id = s.track_id
	           WHERE t.status = ? AND s.received_chunks = s.total_chunks`
	rows, err := r.db.QueryContext(ctx, query, model.StatusUploading)
	if err != nil {
		return nil, fmt.Errorf("failed to query stuck sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]model.UploadSession, 0)
	for rows.Next() {
		var s model.UploadSession
		err := rows.Scan(&s.TrackID, &s.TotalChunks, &s.ReceivedChunks, &s.Watermark,
			&s.StoragePrefix, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stuck session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during stuck session iteration: %w", err)
	}
	return sessions, nil
}
