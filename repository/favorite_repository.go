package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"WaveFM/model"
)

// FavoriteRepository defines the interface for favorite membership.
type FavoriteRepository interface {
	// Add marks a track as favorite. Idempotent; fails with
	// ErrTrackNotEligible for tracks that are not complete.
	Add(ctx context.Context, userID int64, trackID string) error
	Remove(ctx context.Context, userID int64, trackID string) error
	// ListByUser returns the user's favorite tracks, complete only.
	ListByUser(ctx context.Context, userID int64) ([]*model.TrackView, error)
}

// mysqlFavoriteRepository implements FavoriteRepository for MySQL.
type mysqlFavoriteRepository struct {
	db *sql.DB
}

// NewMySQLFavoriteRepository creates a new mysqlFavoriteRepository.
func NewMySQLFavoriteRepository(db *sql.DB) FavoriteRepository {
	return &mysqlFavoriteRepository{db: db}
}

// Add inserts the (user, track) membership row.
func (r *mysqlFavoriteRepository) Add(ctx context.Context, userID int64, trackID string) error {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM tracks WHERE id = ?`, trackID).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.ErrTrackNotFound
		}
		return fmt.Errorf("failed to query status for track %s: %w", trackID, err)
	}
	if status != model.StatusComplete {
		return model.ErrTrackNotEligible
	}

	query := `INSERT INTO user_favorites (user_id, track_id, created_at) VALUES (?, ?, ?)
	           ON DUPLICATE KEY UPDATE track_id = track_id`
	_, err = r.db.ExecContext(ctx, query, userID, trackID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to add favorite for user %d track %s: %w", userID, trackID, err)
	}
	return nil
}

// Remove deletes the (user, track) membership row.
func (r *mysqlFavoriteRepository) Remove(ctx context.Context, userID int64, trackID string) error {
	query := `DELETE FROM user_favorites WHERE user_id = ? AND track_id = ?`
	_, err := r.db.ExecContext(ctx, query, userID, trackID)
	if err != nil {
		return fmt.Errorf("failed to remove favorite for user %d track %s: %w", userID, trackID, err)
	}
	return nil
}

// ListByUser returns the user's favorite tracks.
func (r *mysqlFavoriteRepository) ListByUser(ctx context.Context, userID int64) ([]*model.TrackView, error) {
	query := `SELECT t.id, t.user_id, t.title, t.artist, t.file_name, t.file_path, t.thumbnail_path,
	           t.duration_months, t.duration_days, t.duration_microseconds, t.status, t.created_at, t.updated_at,
	           TRUE AS is_favorite,
	           COALESCE(ph.played_months, 0), COALESCE(ph.played_days, 0), COALESCE(ph.played_microseconds, 0),
	           ph.played_at,
	           CASE WHEN t.user_id = ? THEN TRUE ELSE FALSE END AS is_created_by_user
	           FROM user_favorites uf
	           INNER JOIN tracks t ON t.id = uf.track_id AND t.status = ?
	           LEFT JOIN playback_history ph ON ph.track_id = t.id AND ph.user_id = ?
	           WHERE uf.user_id = ?
	           ORDER BY uf.created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID, model.StatusComplete, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites for user %d: %w", userID, err)
	}
	defer rows.Close()

	return scanTrackViews(rows)
}
