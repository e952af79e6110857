package server

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"WaveFM/cache"
	"WaveFM/logger"
	"WaveFM/model"
	"WaveFM/storage"
)

// InitiateUploadRequest declares a new track upload.
type InitiateUploadRequest struct {
	FileName string `json:"fileName"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
}

// InitiateUploadHandler registers a new track in 'pending' and hands the
// client the id it will address every chunk to.
func (h *APIHandler) InitiateUploadHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req InitiateUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.FileName == "" {
		http.Error(w, "fileName is required", http.StatusBadRequest)
		return
	}

	track := &model.Track{
		ID:       uuid.NewString(),
		UserID:   userID,
		Title:    req.Title,
		Artist:   req.Artist,
		FileName: req.FileName,
		Status:   model.StatusPending,
	}
	if err := h.trackRepo.CreateTrack(r.Context(), track); err != nil {
		logger.Error("failed to create track",
			logger.Int64("userId", userID),
			logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	logger.Info("upload initiated",
		logger.String("trackId", track.ID),
		logger.Int64("userId", userID),
		logger.String("fileName", req.FileName))
	respondJSON(w, http.StatusCreated, track)
}

// UploadChunkHandler receives one chunk of a track as multipart form data.
// Fields: trackId, chunkIndex, totalChunks, chunkFile. Chunks may arrive
// in any order and may be re-sent; the ack always reports durable
// progress.
func (h *APIHandler) UploadChunkHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Form overhead on top of the chunk itself is small; 1MB of headroom.
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxChunkSize+1<<20)
	if err := r.ParseMultipartForm(h.cfg.MaxChunkSize); err != nil {
		http.Error(w, "Chunk exceeds the maximum allowed size", http.StatusRequestEntityTooLarge)
		return
	}

	trackID := r.FormValue("trackId")
	if trackID == "" {
		http.Error(w, "trackId is required", http.StatusBadRequest)
		return
	}
	chunkIndex, err := strconv.Atoi(r.FormValue("chunkIndex"))
	if err != nil {
		http.Error(w, "chunkIndex must be an integer", http.StatusBadRequest)
		return
	}
	totalChunks, err := strconv.Atoi(r.FormValue("totalChunks"))
	if err != nil {
		http.Error(w, "totalChunks must be an integer", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("chunkFile")
	if err != nil {
		http.Error(w, "chunkFile is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > h.cfg.MaxChunkSize {
		http.Error(w, "Chunk exceeds the maximum allowed size", http.StatusRequestEntityTooLarge)
		return
	}

	if _, err := h.tracker.BeginOrContinue(r.Context(), trackID, userID, totalChunks); err != nil {
		respondError(w, err)
		return
	}

	ack, err := h.tracker.ReceiveChunk(r.Context(), trackID, userID, chunkIndex, file, header.Size)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ack)
}

// ResumeUploadsHandler lists the caller's in-flight uploads so the client
// can resume each one from watermark+1.
func (h *APIHandler) ResumeUploadsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	descriptors, err := h.tracker.ListIncomplete(r.Context(), userID)
	if err != nil {
		logger.Error("failed to list incomplete uploads",
			logger.Int64("userId", userID),
			logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, descriptors)
}

// UpdateMetadataHandler attaches title/artist and an optional thumbnail to
// a track. Metadata is independent of chunk progress and may arrive at
// any point of the upload.
func (h *APIHandler) UpdateMetadataHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	trackID := r.FormValue("trackId")
	if trackID == "" {
		http.Error(w, "trackId is required", http.StatusBadRequest)
		return
	}

	track, err := h.trackRepo.GetTrackByID(r.Context(), trackID)
	if err != nil {
		respondError(w, err)
		return
	}
	if track.UserID != userID {
		respondError(w, model.ErrNotOwner)
		return
	}

	title := r.FormValue("title")
	artist := r.FormValue("artist")
	thumbnailPath := track.ThumbnailPath

	if file, header, err := r.FormFile("thumbnail"); err == nil {
		defer file.Close()
		key := "covers/" + trackID + filepath.Ext(header.Filename)
		_, err := storage.GetMinioClient().PutObject(r.Context(), h.cfg.MinioBucket, key, file, header.Size,
			minio.PutObjectOptions{ContentType: header.Header.Get("Content-Type")})
		if err != nil {
			logger.Error("failed to store thumbnail",
				logger.String("trackId", trackID),
				logger.ErrorField(err))
			http.Error(w, "Failed to store thumbnail", http.StatusBadGateway)
			return
		}
		thumbnailPath = key
	}

	if err := h.trackRepo.UpdateTrackMetadata(r.Context(), trackID, title, artist, thumbnailPath); err != nil {
		respondError(w, err)
		return
	}

	// Drop any cached copy so reads never serve the old title/artist.
	if err := cache.InvalidateTrack(r.Context(), trackID); err != nil {
		logger.Debug("failed to invalidate cached track",
			logger.String("trackId", trackID),
			logger.ErrorField(err))
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"trackId":       trackID,
		"title":         title,
		"artist":        artist,
		"thumbnailPath": thumbnailPath,
	})
}
