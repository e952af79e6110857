package model

import "time"

// Track upload lifecycle states. A track is visible to read paths only
// once it reaches StatusComplete; Finalize is the single transition that
// gets it there.
const (
	StatusPending    = "pending"    // row exists, no chunk received yet
	StatusUploading  = "uploading"  // at least one chunk received
	StatusFinalizing = "finalizing" // one finalizer has claimed the completion event
	StatusComplete   = "complete"   // all bytes present, duration decoded
	StatusFailed     = "failed"     // finalization failed, terminal
)

// Track represents an audio track in the music library.
type Track struct {
	ID            string    `json:"id" gorm:"column:id;type:char(36);primaryKey"`
	UserID        int64     `json:"userId" gorm:"column:user_id;not null;index"`
	Title         string    `json:"title" gorm:"column:title;size:255"`
	Artist        string    `json:"artist" gorm:"column:artist;size:255"`
	FileName      string    `json:"fileName" gorm:"column:file_name;size:255"`
	FilePath      string    `json:"-" gorm:"column:file_path;size:767"` // object key of the composed asset, set at finalization
	ThumbnailPath string    `json:"thumbnailPath" gorm:"column:thumbnail_path;size:767"`
	Duration      Duration  `json:"duration" gorm:"embedded;embeddedPrefix:duration_"`
	Status        string    `json:"status" gorm:"column:status;type:varchar(16);not null;default:pending;index"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// TableName returns the database table name.
func (Track) TableName() string {
	return "tracks"
}

// IsComplete reports whether the track has finished its upload lifecycle
// and is visible to library read paths.
func (t *Track) IsComplete() bool {
	return t.Status == StatusComplete
}

// TrackView is a track row decorated with the calling user's favorite and
// playback state, as returned by the discovery and listing queries.
type TrackView struct {
	Track
	IsFavorite      bool       `json:"isFavorite"`
	DurationPlayed  Duration   `json:"durationPlayed"`
	PlayedAt        *time.Time `json:"playedAt,omitempty"`
	IsCreatedByUser bool       `json:"isCreatedByUser"`
}
