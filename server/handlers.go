package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"WaveFM/config"
	"WaveFM/core/auth"
	"WaveFM/core/upload"
	"WaveFM/logger"
	"WaveFM/model"
	"WaveFM/repository"
)

// APIHandler handles all API requests.
type APIHandler struct {
	trackRepo    repository.TrackRepository
	userRepo     repository.UserRepository
	playlistRepo repository.PlaylistRepository
	historyRepo  repository.HistoryRepository
	favoriteRepo repository.FavoriteRepository
	tracker      *upload.Tracker
	tokens       *auth.TokenIssuer
	cfg          *config.Config
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(
	trackRepo repository.TrackRepository,
	userRepo repository.UserRepository,
	playlistRepo repository.PlaylistRepository,
	historyRepo repository.HistoryRepository,
	favoriteRepo repository.FavoriteRepository,
	tracker *upload.Tracker,
	tokens *auth.TokenIssuer,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		trackRepo:    trackRepo,
		userRepo:     userRepo,
		playlistRepo: playlistRepo,
		historyRepo:  historyRepo,
		favoriteRepo: favoriteRepo,
		tracker:      tracker,
		tokens:       tokens,
		cfg:          cfg,
	}
}

type contextKey string

const userIDKey contextKey = "userID"

// AuthMiddleware checks for a valid JWT token and stores the resolved
// user id in the request context.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		claims, err := h.tokens.ParseToken(parts[1])
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// GetUserIDFromContext extracts the user ID from the request context.
func GetUserIDFromContext(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(userIDKey).(int64)
	if !ok {
		return 0, fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// respondJSON writes v as a JSON response body.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", logger.ErrorField(err))
	}
}

// respondError maps domain errors onto HTTP statuses. Caller mistakes
// (ownership, bounds, protocol) are 4xx and never retried; storage
// failures are 502 so the client re-sends the chunk; finalization
// failures are 500 with the track already moved to 'failed'.
func respondError(w http.ResponseWriter, err error) {
	var storageErr *upload.StorageError
	switch {
	case errors.Is(err, model.ErrTrackNotFound), errors.Is(err, model.ErrSessionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, model.ErrNotOwner):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, model.ErrChunkOutOfRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, model.ErrProtocolMismatch):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, model.ErrTrackNotEligible):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &storageErr):
		http.Error(w, "chunk storage failed, please retry", http.StatusBadGateway)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
