package model

import "time"

// PlaybackHistory records the most recent play of a track by a user. One
// row per (user, track); DurationPlayed is replaced on every play, not
// accumulated, so it reads as "latest play position".
type PlaybackHistory struct {
	ID             int64     `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	UserID         int64     `json:"userId" gorm:"column:user_id;not null;uniqueIndex:uq_user_track_history"`
	TrackID        string    `json:"trackId" gorm:"column:track_id;type:char(36);not null;uniqueIndex:uq_user_track_history"`
	DurationPlayed Duration  `json:"durationPlayed" gorm:"embedded;embeddedPrefix:played_"`
	PlayedAt       time.Time `json:"playedAt" gorm:"column:played_at;not null"`
}

// TableName returns the database table name.
func (PlaybackHistory) TableName() string {
	return "playback_history"
}
