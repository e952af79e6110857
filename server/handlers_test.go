package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WaveFM/core/auth"
)

func newAuthTestHandler() (*APIHandler, *auth.TokenIssuer) {
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	return NewAPIHandler(nil, nil, nil, nil, nil, nil, tokens, nil), tokens
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	h, _ := newAuthTestHandler()

	handler := h.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without credentials")
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/tracks/random", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareRejectsMalformedHeader(t *testing.T) {
	h, tokens := newAuthTestHandler()

	token, err := tokens.GenerateToken(42, "alice")
	require.NoError(t, err)

	handler := h.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without credentials")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/tracks/random", nil)
	req.Header.Set("Authorization", token) // missing Bearer prefix
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewarePassesUserID(t *testing.T) {
	h, tokens := newAuthTestHandler()

	token, err := tokens.GenerateToken(42, "alice")
	require.NoError(t, err)

	var gotUserID int64
	handler := h.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, err = GetUserIDFromContext(r.Context())
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/tracks/random", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), gotUserID)
}

func TestGetUserIDFromContextMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := GetUserIDFromContext(req.Context())
	assert.Error(t, err)
}
