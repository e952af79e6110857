package server

import (
	"encoding/json"
	"net/http"

	"WaveFM/logger"
	"WaveFM/model"
)

// RecordPlayRequest reports how far into a track the user listened.
type RecordPlayRequest struct {
	TrackID       string  `json:"trackId"`
	PlayedSeconds float64 `json:"playedSeconds"`
}

// RecordPlayHandler upserts the caller's history entry for a track. A
// repeat play replaces the stored position, it does not accumulate.
func (h *APIHandler) RecordPlayHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req RecordPlayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TrackID == "" {
		http.Error(w, "trackId is required", http.StatusBadRequest)
		return
	}
	if req.PlayedSeconds < 0 {
		http.Error(w, "playedSeconds must not be negative", http.StatusBadRequest)
		return
	}

	played := model.DurationFromSeconds(req.PlayedSeconds)
	if err := h.historyRepo.RecordPlay(r.Context(), userID, req.TrackID, played); err != nil {
		respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListHistoryHandler returns the caller's playback history, most recent
// first.
func (h *APIHandler) ListHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	history, err := h.historyRepo.ListByUser(r.Context(), userID)
	if err != nil {
		logger.Error("failed to query history",
			logger.Int64("userId", userID),
			logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, history)
}
