package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"WaveFM/core/lock"
	"WaveFM/model"
)

// PlaylistRepository defines the interface for playlist data operations.
type PlaylistRepository interface {
	CreatePlaylist(ctx context.Context, playlist *model.Playlist) error
	GetPlaylistByID(ctx context.Context, id string) (*model.Playlist, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.PlaylistSummary, error)

	// AppendTrack inserts the track at max(track_order)+1 and returns the
	// assigned position. Concurrent appends to the same playlist
	// serialize on a per-playlist mutex; the transaction's FOR UPDATE
	// read guards the same invariant across processes. Fails with
	// ErrTrackNotEligible for tracks that are not complete.
	AppendTrack(ctx context.Context, playlistID, trackID string) (int, error)

	// ListTracks returns the playlist's tracks in order, complete only.
	ListTracks(ctx context.Context, playlistID string, userID int64) ([]*model.TrackView, error)
}

// mysqlPlaylistRepository implements PlaylistRepository for MySQL.
type mysqlPlaylistRepository struct {
	db    *sql.DB
	locks *lock.KeyedMutex
}

// NewMySQLPlaylistRepository creates a new mysqlPlaylistRepository.
func NewMySQLPlaylistRepository(db *sql.DB) PlaylistRepository {
	return &mysqlPlaylistRepository{db: db, locks: lock.NewKeyedMutex()}
}

// CreatePlaylist adds a new playlist.
func (r *mysqlPlaylistRepository) CreatePlaylist(ctx context.Context, playlist *model.Playlist) error {
	query := `INSERT INTO playlists (id, user_id, title, thumbnail_path, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		playlist.ID, playlist.UserID, playlist.Title, playlist.ThumbnailPath, time.Now())
	if err != nil {
		return fmt.Errorf("failed to execute CreatePlaylist: %w", err)
	}
	return nil
}

// GetPlaylistByID retrieves a playlist by its ID, or nil if absent.
func (r *mysqlPlaylistRepository) GetPlaylistByID(ctx context.Context, id string) (*model.Playlist, error) {
	query := `SELECT id, user_id, title, thumbnail_path, created_at FROM playlists WHERE id = ?`
	playlist := &model.Playlist{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&playlist.ID, &playlist.UserID, &playlist.Title, &playlist.ThumbnailPath, &playlist.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // playlist not found
		}
		return nil, fmt.Errorf("failed to scan playlist %s: %w", id, err)
	}
	return playlist, nil
}

// ListByUser returns the user's playlists with their highest track order.
func (r *mysqlPlaylistRepository) ListByUser(ctx context.Context, userID int64) ([]*model.PlaylistSummary, error) {
	query := `SELECT p.id, p.user_id, p.title, p.thumbnail_path, p.created_at,
	           COALESCE(MAX(pt.track_order), 0) AS max_track_order
	           FROM playlists p
	           LEFT JOIN playlist_tracks pt ON pt.playlist_id = p.id
	           WHERE p.user_id = ?
	           GROUP BY p.id, p.user_id, p.title, p.thumbnail_path, p.created_at
	           ORDER BY p.title`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists for user %d: %w", userID, err)
	}
	defer rows.Close()

	summaries := make([]*model.PlaylistSummary, 0)
	for rows.Next() {
		s := &model.PlaylistSummary{}
		err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.ThumbnailPath, &s.CreatedAt, &s.MaxTrackOrder)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during playlist iteration: %w", err)
	}
	return summaries, nil
}

// AppendTrack assigns the next dense order position. The per-playlist
// mutex serializes in-process appenders: on an empty playlist the FOR
// UPDATE read only takes a gap lock, which two transactions can hold at
// once, deadlocking their inserts instead of queueing.
func (r *mysqlPlaylistRepository) AppendTrack(ctx context.Context, playlistID, trackID string) (int, error) {
	unlock := r.locks.Lock(playlistID)
	defer unlock()

	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM tracks WHERE id = ?`, trackID).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, model.ErrTrackNotFound
		}
		return 0, fmt.Errorf("failed to query status for track %s: %w", trackID, err)
	}
	if status != model.StatusComplete {
		return 0, model.ErrTrackNotEligible
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin append transaction: %w", err)
	}
	defer tx.Rollback()

	// An empty playlist reads as position 0.
	var maxOrder int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(track_order), 0) FROM playlist_tracks WHERE playlist_id = ? FOR UPDATE`,
		playlistID).Scan(&maxOrder)
	if err != nil {
		return 0, fmt.Errorf("failed to query max track order for playlist %s: %w", playlistID, err)
	}

	position := maxOrder + 1
	_, err = tx.ExecContext(ctx,
		`INSERT INTO playlist_tracks (playlist_id, track_id, track_order) VALUES (?, ?, ?)`,
		playlistID, trackID, position)
	if err != nil {
		return 0, fmt.Errorf("failed to insert track %s into playlist %s: %w", trackID, playlistID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit append transaction: %w", err)
	}
	return position, nil
}

// ListTracks returns the playlist's tracks ordered by position. The
// INNER JOIN on status keeps in-flight tracks out of the result no matter
// what rows exist in playlist_tracks.
func (r *mysqlPlaylistRepository) ListTracks(ctx context.Context, playlistID string, userID int64) ([]*model.TrackView, error) {
	query := `SELECT t.id, t.user_id, t.title, t.artist, t.file_name, t.file_path, t.thumbnail_path,
	           t.duration_months, t.duration_days, t.duration_microseconds, t.status, t.created_at, t.updated_at,
	           CASE WHEN uf.id IS NOT NULL THEN TRUE ELSE FALSE END AS is_favorite,
	           COALESCE(ph.played_months, 0), COALESCE(ph.played_days, 0), COALESCE(ph.played_microseconds, 0),
	           ph.played_at,
	           CASE WHEN t.user_id = ? THEN TRUE ELSE FALSE END AS is_created_by_user
	           FROM playlist_tracks pt
	           INNER JOIN tracks t ON t.id = pt.track_id AND t.status = ?
	           LEFT JOIN user_favorites uf ON uf.track_id = t.id AND uf.user_id = ?
	           LEFT JOIN playback_history ph ON ph.track_id = t.id AND ph.user_id = ?
	           WHERE pt.playlist_id = ?
	           ORDER BY pt.track_order ASC`
	rows, err := r.db.QueryContext(ctx, query, userID, model.StatusComplete, userID, userID, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks for playlist %s: %w", playlistID, err)
	}
	defer rows.Close()

	return scanTrackViews(rows)
}
