package model

import "time"

// UploadSession tracks per-track upload progress while a track is not yet
// complete. TotalChunks is immutable once declared by the first
// BeginOrContinue call. Watermark is the highest chunk index such that
// every index from 0 through it has been received; -1 until chunk 0 lands.
type UploadSession struct {
	TrackID        string    `json:"trackId" gorm:"column:track_id;type:char(36);primaryKey"`
	TotalChunks    int       `json:"totalChunks" gorm:"column:total_chunks;not null"`
	ReceivedChunks int       `json:"receivedChunks" gorm:"column:received_chunks;not null;default:0"`
	Watermark      int       `json:"watermark" gorm:"column:watermark;not null;default:-1"`
	StoragePrefix  string    `json:"-" gorm:"column:storage_prefix;size:255"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// TableName returns the database table name.
func (UploadSession) TableName() string {
	return "upload_sessions"
}

// ChunkRecord is the durable receipt for one chunk. Its presence in the
// table is what makes duplicate delivery safe: the received count is the
// number of rows, never a bare counter.
type ChunkRecord struct {
	TrackID    string    `json:"trackId" gorm:"column:track_id;type:char(36);primaryKey"`
	ChunkIndex int       `json:"chunkIndex" gorm:"column:chunk_idx;primaryKey"`
	ByteSize   int64     `json:"byteSize" gorm:"column:byte_size;not null"`
	ObjectKey  string    `json:"-" gorm:"column:object_key;size:767;not null"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// TableName returns the database table name.
func (ChunkRecord) TableName() string {
	return "track_chunks"
}

// ChunkAck reports progress back to the uploading client after a chunk
// write.
type ChunkAck struct {
	TrackID        string `json:"trackId"`
	ReceivedChunks int    `json:"receivedChunks"`
	TotalChunks    int    `json:"totalChunks"`
	Watermark      int    `json:"watermark"`
	Complete       bool   `json:"complete"`
}

// ResumeDescriptor is one mid-upload track in the resume listing. A client
// resumes by re-sending from Watermark+1.
type ResumeDescriptor struct {
	TrackID        string `json:"trackId"`
	Title          string `json:"title,omitempty"`
	Artist         string `json:"artist,omitempty"`
	ThumbnailPath  string `json:"thumbnailPath,omitempty"`
	Status         string `json:"status"`
	TotalChunks    int    `json:"totalChunks"`
	ReceivedChunks int    `json:"receivedChunks"`
	Watermark      int    `json:"watermark"`
}
