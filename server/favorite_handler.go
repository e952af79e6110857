package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"WaveFM/logger"
)

// AddFavoriteRequest marks a track as favorite.
type AddFavoriteRequest struct {
	TrackID string `json:"trackId"`
}

// AddFavoriteHandler adds a track to the caller's favorites. Re-adding an
// existing favorite is a no-op success.
func (h *APIHandler) AddFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req AddFavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TrackID == "" {
		http.Error(w, "trackId is required", http.StatusBadRequest)
		return
	}

	if err := h.favoriteRepo.Add(r.Context(), userID, req.TrackID); err != nil {
		respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveFavoriteHandler removes a track from the caller's favorites.
// Removing an absent favorite is a no-op success.
func (h *APIHandler) RemoveFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	trackID := mux.Vars(r)["track_id"]
	if err := h.favoriteRepo.Remove(r.Context(), userID, trackID); err != nil {
		respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListFavoritesHandler returns the caller's favorite tracks.
func (h *APIHandler) ListFavoritesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	favorites, err := h.favoriteRepo.ListByUser(r.Context(), userID)
	if err != nil {
		logger.Error("failed to query favorites",
			logger.Int64("userId", userID),
			logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, favorites)
}
