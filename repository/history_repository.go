package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"WaveFM/model"
)

// HistoryRepository defines the interface for playback history operations.
type HistoryRepository interface {
	// RecordPlay upserts the (user, track) history entry. The stored
	// duration is replaced, not summed: history reads as "latest play
	// position", and switching to accumulation would silently change
	// every reported statistic. Fails with ErrTrackNotEligible for
	// tracks that are not complete.
	RecordPlay(ctx context.Context, userID int64, trackID string, played model.Duration) error
	// ListByUser returns the user's history joined with track metadata,
	// complete tracks only.
	ListByUser(ctx context.Context, userID int64) ([]*model.TrackView, error)
}

// mysqlHistoryRepository implements HistoryRepository for MySQL.
type mysqlHistoryRepository struct {
	db *sql.DB
}

// NewMySQLHistoryRepository creates a new mysqlHistoryRepository.
func NewMySQLHistoryRepository(db *sql.DB) HistoryRepository {
	return &mysqlHistoryRepository{db: db}
}

// RecordPlay creates or replaces the history entry for (user, track).
func (r *mysqlHistoryRepository) RecordPlay(ctx context.Context, userID int64, trackID string, played model.Duration) error {
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

	query := `INSERT INTO playback_history (user_id, track_id, played_months, played_days, played_microseconds, played_at)
	           VALUES (?, ?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE
	           played_months = VALUES(played_months),
	           played_days = VALUES(played_days),
	           played_microseconds = VALUES(played_microseconds),
	           played_at = VALUES(played_at)`
	_, err = r.db.ExecContext(ctx, query, userID, trackID,
		played.Months, played.Days, played.Microseconds, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record play for user %d track %s: %w", userID, trackID, err)
	}
	return nil
}

// ListByUser returns the user's playback history, most recent first.
func (r *mysqlHistoryRepository) ListByUser(ctx context.Context, userID int64) ([]*model.TrackView, error) {
	query := `SELECT t.id, t.user_id, t.title, t.artist, t.file_name, t.file_path, t.thumbnail_path,
	           t.duration_months, t.duration_days, t.duration_microseconds, t.status, t.created_at, t.updated_at,
	           CASE WHEN uf.id IS NOT NULL THEN TRUE ELSE FALSE END AS is_favorite,
	           ph.played_months, ph.played_days, ph.played_microseconds,
	           ph.played_at,
	           CASE WHEN t.user_id = ? THEN TRUE ELSE FALSE END AS is_created_by_user
	           FROM playback_history ph
	           INNER JOIN tracks t ON t.id = ph.track_id AND t.status = ?
	           LEFT JOIN user_favorites uf ON uf.track_id = t.id AND uf.user_id = ?
	           WHERE ph.user_id = ?
	           ORDER BY ph.played_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID, model.StatusComplete, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for user %d: %w", userID, err)
	}
	defer rows.Close()

	return scanTrackViews(rows)
}
