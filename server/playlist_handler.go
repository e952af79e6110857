package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"WaveFM/logger"
	"WaveFM/model"
)

// CreatePlaylistRequest creates a new playlist.
type CreatePlaylistRequest struct {
	Title         string `json:"title"`
	ThumbnailPath string `json:"thumbnailPath"`
}

// AddPlaylistTrackRequest appends a track to a playlist.
type AddPlaylistTrackRequest struct {
	TrackID string `json:"trackId"`
}

// CreatePlaylistHandler creates an empty playlist owned by the caller.
func (h *APIHandler) CreatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreatePlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}

	playlist := &model.Playlist{
		ID:            uuid.NewString(),
		UserID:        userID,
		Title:         req.Title,
		ThumbnailPath: req.ThumbnailPath,
	}
	if err := h.playlistRepo.CreatePlaylist(r.Context(), playlist); err != nil {
		logger.Error("failed to create playlist",
			logger.Int64("userId", userID),
			logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, playlist)
}

// ListPlaylistsHandler returns the caller's playlists.
func (h *APIHandler) ListPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	playlists, err := h.playlistRepo.ListByUser(r.Context(), userID)
	if err != nil {
		logger.Error("failed to query playlists",
			logger.Int64("userId", userID),
			logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, playlists)
}

// getOwnedPlaylist loads a playlist and verifies the caller owns it.
func (h *APIHandler) getOwnedPlaylist(w http.ResponseWriter, r *http.Request, userID int64) (*model.Playlist, bool) {
	playlistID := mux.Vars(r)["playlist_id"]
	playlist, err := h.playlistRepo.GetPlaylistByID(r.Context(), playlistID)
	if err != nil {
		logger.Error("failed to query playlist",
			logger.String("playlistId", playlistID),
			logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}
	if playlist == nil {
		http.Error(w, "Playlist not found", http.StatusNotFound)
		return nil, false
	}
	if playlist.UserID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return nil, false
	}
	return playlist, true
}

// AddPlaylistTrackHandler appends a complete track to the end of a
// playlist the caller owns and returns the assigned position.
func (h *APIHandler) AddPlaylistTrackHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	playlist, ok := h.getOwnedPlaylist(w, r, userID)
	if !ok {
		return
	}

	var req AddPlaylistTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TrackID == "" {
		http.Error(w, "trackId is required", http.StatusBadRequest)
		return
	}

	position, err := h.playlistRepo.AppendTrack(r.Context(), playlist.ID, req.TrackID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, model.PlaylistTrack{
		PlaylistID: playlist.ID,
		TrackID:    req.TrackID,
		TrackOrder: position,
	})
}

// GetPlaylistTracksHandler returns a playlist's tracks in order.
func (h *APIHandler) GetPlaylistTracksHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	playlist, ok := h.getOwnedPlaylist(w, r, userID)
	if !ok {
		return
	}

	tracks, err := h.playlistRepo.ListTracks(r.Context(), playlist.ID, userID)
	if err != nil {
		logger.Error("failed to query playlist tracks",
			logger.String("playlistId", playlist.ID),
			logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, tracks)
}
