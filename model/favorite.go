package model

import "time"

// UserFavorite marks a track as a favorite of a user. Pure membership,
// one row per (user, track).
type UserFavorite struct {
	ID        int64     `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	UserID    int64     `json:"userId" gorm:"column:user_id;not null;uniqueIndex:uq_user_track_favorite"`
	TrackID   string    `json:"trackId" gorm:"column:track_id;type:char(36);not null;uniqueIndex:uq_user_track_favorite"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName returns the database table name.
func (UserFavorite) TableName() string {
	return "user_favorites"
}
