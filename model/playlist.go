package model

import "time"

// Playlist is a user-owned ordered collection of tracks.
type Playlist struct {
	ID            string    `json:"id" gorm:"column:id;type:char(36);primaryKey"`
	UserID        int64     `json:"userId" gorm:"column:user_id;not null;index"`
	Title         string    `json:"title" gorm:"column:title;size:255;not null"`
	ThumbnailPath string    `json:"thumbnailPath" gorm:"column:thumbnail_path;size:767"`
	CreatedAt     time.Time `json:"createdAt"`
}

// TableName returns the database table name.
func (Playlist) TableName() string {
	return "playlists"
}

// PlaylistTrack orders a track inside a playlist. TrackOrder is assigned
// as max+1 at append time and never renumbered, so removals leave gaps.
type PlaylistTrack struct {
	PlaylistID string `json:"playlistId" gorm:"column:playlist_id;type:char(36);primaryKey"`
	TrackID    string `json:"trackId" gorm:"column:track_id;type:char(36);primaryKey"`
	TrackOrder int    `json:"trackOrder" gorm:"column:track_order;not null"`
}

// TableName returns the database table name.
func (PlaylistTrack) TableName() string {
	return "playlist_tracks"
}

// PlaylistSummary is a playlist row with its current highest track order,
// as returned by the listing query.
type PlaylistSummary struct {
	Playlist
	MaxTrackOrder int `json:"maxTrackOrder"`
}
