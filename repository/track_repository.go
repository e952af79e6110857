package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"WaveFM/model"
)

// TrackRepository defines the interface for track data operations. Status
// transitions are compare-and-swap updates guarded on the current status
// so they hold across concurrent server instances, not just goroutines.
type TrackRepository interface {
	CreateTrack(ctx context.Context, track *model.Track) error
	GetTrackByID(ctx context.Context, id string) (*model.Track, error)
	GetTrackStatus(ctx context.Context, id string) (string, error)
	UpdateTrackMetadata(ctx context.Context, id, title, artist, thumbnailPath string) error

	// MarkUploading flips pending -> uploading. Reports whether this call
	// performed the transition.
	MarkUploading(ctx context.Context, id string) (bool, error)
	// ClaimFinalizing flips uploading -> finalizing. Exactly one caller
	// across all processes wins the claim for a given completion event.
	ClaimFinalizing(ctx context.Context, id string) (bool, error)
	// CommitComplete writes the decoded duration, the composed asset key
	// and status 'complete' in a single update, guarded on 'finalizing'.
	CommitComplete(ctx context.Context, id, filePath string, duration model.Duration) error
	// MarkFailed flips a track to the terminal 'failed' status.
	MarkFailed(ctx context.Context, id string) error
	// ReleaseStuckFinalizing re-arms tracks stuck in 'finalizing' since
	// before the cutoff back to 'uploading' so the sweep can retry them.
	ReleaseStuckFinalizing(ctx context.Context, cutoff time.Time) (int64, error)

	// GetRandomTracks returns up to limit complete tracks in random order,
	// decorated with the calling user's favorite and playback state.
	GetRandomTracks(ctx context.Context, userID int64, limit int) ([]*model.TrackView, error)
}

// mysqlTrackRepository implements TrackRepository for MySQL.
type mysqlTrackRepository struct {
	db *sql.DB
}

// NewMySQLTrackRepository creates a new mysqlTrackRepository.
func NewMySQLTrackRepository(db *sql.DB) TrackRepository {
	return &mysqlTrackRepository{db: db}
}

// CreateTrack adds a new track row in status 'pending'.
func (r *mysqlTrackRepository) CreateTrack(ctx context.Context, track *model.Track) error {
	query := `INSERT INTO tracks (id, user_id, title, artist, file_name, file_path, thumbnail_path,
	           duration_months, duration_days, duration_microseconds, status, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, 0, ?, ?, ?)`

	now := time.Now()
	if track.Status == "" {
		track.Status = model.StatusPending
	}
	_, err := r.db.ExecContext(ctx, query,
		track.ID, track.UserID, track.Title, track.Artist, track.FileName, track.FilePath,
		track.ThumbnailPath, track.Status, now, now)
	if err != nil {
		return fmt.Errorf("failed to execute CreateTrack: %w", err)
	}
	return nil
}

const trackColumns = `id, user_id, title, artist, file_name, file_path, thumbnail_path,
	duration_months, duration_days, duration_microseconds, status, created_at, updated_at`

func scanTrack(row *sql.Row) (*model.Track, error) {
	track := &model.Track{}
	err := row.Scan(&track.ID, &track.UserID, &track.Title, &track.Artist, &track.FileName,
		&track.FilePath, &track.ThumbnailPath,
		&track.Duration.Months, &track.Duration.Days, &track.Duration.Microseconds,
		&track.Status, &track.CreatedAt, &track.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return track, nil
}

// GetTrackByID retrieves a track by its ID.
func (r *mysqlTrackRepository) GetTrackByID(ctx context.Context, id string) (*model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ?`
	track, err := scanTrack(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrTrackNotFound
		}
		return nil, fmt.Errorf("failed to scan track %s: %w", id, err)
	}
	return track, nil
}

// GetTrackStatus retrieves only the status column for a track.
func (r *mysqlTrackRepository) GetTrackStatus(ctx context.Context, id string) (string, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM tracks WHERE id = ?`, id).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", model.ErrTrackNotFound
		}
		return "", fmt.Errorf("failed to query status for track %s: %w", id, err)
	}
	return status, nil
}

// UpdateTrackMetadata fills title/artist/thumbnail. Metadata may arrive
// before or after byte completion, so no status guard here.
func (r *mysqlTrackRepository) UpdateTrackMetadata(ctx context.Context, id, title, artist, thumbnailPath string) error {
	query := `UPDATE tracks SET title = ?, artist = ?, thumbnail_path = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, title, artist, thumbnailPath, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to execute UpdateTrackMetadata for track %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// RowsAffected is 0 both for a missing row and an unchanged one;
		// only the former is an error.
		if _, err := r.GetTrackStatus(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *mysqlTrackRepository) casStatus(ctx context.Context, id, from, to string) (bool, error) {
	query := `UPDATE tracks SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query, to, time.Now(), id, from)
	if err != nil {
		return false, fmt.Errorf("failed to move track %s from %s to %s: %w", id, from, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows for track %s: %w", id, err)
	}
	return n == 1, nil
}

// MarkUploading flips pending -> uploading.
func (r *mysqlTrackRepository) MarkUploading(ctx context.Context, id string) (bool, error) {
	return r.casStatus(ctx, id, model.StatusPending, model.StatusUploading)
}

// ClaimFinalizing flips uploading -> finalizing.
func (r *mysqlTrackRepository) ClaimFinalizing(ctx context.Context, id string) (bool, error) {
	return r.casStatus(ctx, id, model.StatusUploading, model.StatusFinalizing)
}

// CommitComplete atomically writes duration, asset key and 'complete'.
// No reader can ever observe the duration without the status or vice
// versa: both live in the same UPDATE.
func (r *mysqlTrackRepository) CommitComplete(ctx context.Context, id, filePath string, duration model.Duration) error {
	query := `UPDATE tracks
	           SET status = ?, file_path = ?, duration_months = ?, duration_days = ?, duration_microseconds = ?, updated_at = ?
	           WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query,
		model.StatusComplete, filePath, duration.Months, duration.Days, duration.Microseconds,
		time.Now(), id, model.StatusFinalizing)
	if err != nil {
		return fmt.Errorf("failed to execute CommitComplete for track %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for track %s: %w", id, err)
	}
	if n != 1 {
		return fmt.Errorf("track %s was not in finalizing state at commit", id)
	}
	return nil
}

// MarkFailed flips a track to 'failed' regardless of its current
// in-flight state. The session row is retained for diagnostics.
func (r *mysqlTrackRepository) MarkFailed(ctx context.Context, id string) error {
	query := `UPDATE tracks SET status = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)`
	_, err := r.db.ExecContext(ctx, query, model.StatusFailed, time.Now(), id,
		model.StatusUploading, model.StatusFinalizing)
	if err != nil {
		return fmt.Errorf("failed to execute MarkFailed for track %s: %w", id, err)
	}
	return nil
}

// ReleaseStuckFinalizing re-arms finalizing tracks untouched since cutoff.
func (r *mysqlTrackRepository) ReleaseStuckFinalizing(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `UPDATE tracks SET status = ?, updated_at = ? WHERE status = ? AND updated_at < ?`
	res, err := r.db.ExecContext(ctx, query, model.StatusUploading, time.Now(), model.StatusFinalizing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to release stuck finalizing tracks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

// GetRandomTracks returns complete tracks in random order, decorated with
// the caller's favorite and playback state. The status filter lives in
// the query itself so no in-flight track can leak through this path.
func (r *mysqlTrackRepository) GetRandomTracks(ctx context.Context, userID int64, limit int) ([]*model.TrackView, error) {
	query := `SELECT t.id, t.user_id, t.title, t.artist, t.file_name, t.file_path, t.thumbnail_path,
	           t.duration_months, t.duration_days, t.duration_microseconds, t.status, t.created_at, t.updated_at,
	           CASE WHEN uf.id IS NOT NULL THEN TRUE ELSE FALSE END AS is_favorite,
	           COALESCE(ph.played_months, 0), COALESCE(ph.played_days, 0), COALESCE(ph.played_microseconds, 0),
	           ph.played_at,
	           CASE WHEN t.user_id = ? THEN TRUE ELSE FALSE END AS is_created_by_user
	           FROM tracks t
	           LEFT JOIN user_favorites uf ON uf.track_id = t.id AND uf.user_id = ?
	           LEFT JOIN playback_history ph ON ph.track_id = t.id AND ph.user_id = ?
	           WHERE t.status = ?
	           ORDER BY RAND()
	           LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, userID, userID, userID, model.StatusComplete, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query random tracks for user %d: %w", userID, err)
	}
	defer rows.Close()

	return scanTrackViews(rows)
}

// scanTrackViews scans decorated track rows produced by the gated read
// queries (random discovery, playlist tracks, favorites, history).
func scanTrackViews(rows *sql.Rows) ([]*model.TrackView, error) {
	views := make([]*model.TrackView, 0)
	for rows.Next() {
		view := &model.TrackView{}
		var playedAt sql.NullTime
		err := rows.Scan(&view.ID, &view.UserID, &view.Title, &view.Artist, &view.FileName,
			&view.FilePath, &view.ThumbnailPath,
			&view.Duration.Months, &view.Duration.Days, &view.Duration.Microseconds,
			&view.Status, &view.CreatedAt, &view.UpdatedAt,
			&view.IsFavorite,
			&view.DurationPlayed.Months, &view.DurationPlayed.Days, &view.DurationPlayed.Microseconds,
			&playedAt,
			&view.IsCreatedByUser)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track view: %w", err)
		}
		if playedAt.Valid {
			t := playedAt.Time
			view.PlayedAt = &t
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during track view iteration: %w", err)
	}
	return views, nil
}
