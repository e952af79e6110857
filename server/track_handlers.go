package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"WaveFM/cache"
	"WaveFM/logger"
)

const defaultRandomLimit = 20

// GetRandomTracksHandler returns a random page of complete tracks for the
// discovery feed. In-flight and failed tracks are filtered inside the
// query, never after the fact.
func (h *APIHandler) GetRandomTracksHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit := defaultRandomLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	tracks, err := h.trackRepo.GetRandomTracks(r.Context(), userID, limit)
	if err != nil {
		logger.Error("failed to query random tracks",
			logger.Int64("userId", userID),
			logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, tracks)
}

// GetTrackHandler returns one track by id. Owners see their own track in
// any status; other callers only see it once complete.
func (h *APIHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	trackID := mux.Vars(r)["track_id"]

	// Only complete tracks are ever cached, so a hit needs no further
	// visibility check.
	if cached, err := cache.GetCachedTrack(r.Context(), trackID); err == nil && cached != nil {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	track, err := h.trackRepo.GetTrackByID(r.Context(), trackID)
	if err != nil {
		respondError(w, err)
		return
	}

	if track.UserID != userID && !track.IsComplete() {
		http.Error(w, "Track not found", http.StatusNotFound)
		return
	}

	if track.IsComplete() {
		if err := cache.CacheTrack(r.Context(), track); err != nil {
			logger.Debug("failed to cache track on read",
				logger.String("trackId", trackID),
				logger.ErrorField(err))
		}
	}

	respondJSON(w, http.StatusOK, track)
}
