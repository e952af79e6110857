package server

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WaveFM/cache"
	"WaveFM/model"
)

// stubTrackRepo serves handler tests that only touch track lookups and
// metadata writes.
type stubTrackRepo struct {
	tracks        map[string]*model.Track
	metadataCalls int
}

func newStubTrackRepo(tracks ...*model.Track) *stubTrackRepo {
	repo := &stubTrackRepo{tracks: make(map[string]*model.Track)}
	for _, track := range tracks {
		repo.tracks[track.ID] = track
	}
	return repo
}

func (r *stubTrackRepo) CreateTrack(ctx context.Context, track *model.Track) error {
	r.tracks[track.ID] = track
	return nil
}

func (r *stubTrackRepo) GetTrackByID(ctx context.Context, id string) (*model.Track, error) {
	track, ok := r.tracks[id]
	if !ok {
		return nil, model.ErrTrackNotFound
	}
	return track, nil
}

func (r *stubTrackRepo) GetTrackStatus(ctx context.Context, id string) (string, error) {
	track, ok := r.tracks[id]
	if !ok {
		return "", model.ErrTrackNotFound
	}
	return track.Status, nil
}

func (r *stubTrackRepo) UpdateTrackMetadata(ctx context.Context, id, title, artist, thumbnailPath string) error {
	track, ok := r.tracks[id]
	if !ok {
		return model.ErrTrackNotFound
	}
	track.Title = title
	track.Artist = artist
	track.ThumbnailPath = thumbnailPath
	r.metadataCalls++
	return nil
}

func (r *stubTrackRepo) MarkUploading(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func (r *stubTrackRepo) ClaimFinalizing(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func (r *stubTrackRepo) CommitComplete(ctx context.Context, id, filePath string, duration model.Duration) error {
	return nil
}

func (r *stubTrackRepo) MarkFailed(ctx context.Context, id string) error { return nil }

func (r *stubTrackRepo) ReleaseStuckFinalizing(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (r *stubTrackRepo) GetRandomTracks(ctx context.Context, userID int64, limit int) ([]*model.TrackView, error) {
	return nil, nil
}

func newHandlerTestRedis(t *testing.T) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache.RedisClient = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.RedisClient.Close()
		cache.RedisClient = nil
	})
}

func authedRequest(method, target string, body io.Reader, userID int64) *http.Request {
	req := httptest.NewRequest(method, target, body)
	ctx := context.WithValue(req.Context(), userIDKey, userID)
	return req.WithContext(ctx)
}

func TestGetTrackHandlerServesFromCache(t *testing.T) {
	newHandlerTestRedis(t)

	cached := &model.Track{ID: "t1", UserID: 9, Title: "Cached Title", Status: model.StatusComplete}
	require.NoError(t, cache.CacheTrack(context.Background(), cached))

	// The repo does not know the track: a response can only come from the
	// cache.
	h := NewAPIHandler(newStubTrackRepo(), nil, nil, nil, nil, nil, nil, nil)

	req := mux.SetURLVars(authedRequest(http.MethodGet, "/api/tracks/t1", nil, 42),
		map[string]string{"track_id": "t1"})
	rec := httptest.NewRecorder()
	h.GetTrackHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Cached Title")
}

func TestGetTrackHandlerFallsBackWithoutCache(t *testing.T) {
	// No redis client at all: reads must still work off the database.
	track := &model.Track{ID: "t1", UserID: 9, Title: "DB Title", Status: model.StatusComplete}
	h := NewAPIHandler(newStubTrackRepo(track), nil, nil, nil, nil, nil, nil, nil)

	req := mux.SetURLVars(authedRequest(http.MethodGet, "/api/tracks/t1", nil, 42),
		map[string]string{"track_id": "t1"})
	rec := httptest.NewRecorder()
	h.GetTrackHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "DB Title")
}

func TestGetTrackHandlerHidesInFlightFromOthers(t *testing.T) {
	track := &model.Track{ID: "t1", UserID: 9, Status: model.StatusUploading}
	h := NewAPIHandler(newStubTrackRepo(track), nil, nil, nil, nil, nil, nil, nil)

	req := mux.SetURLVars(authedRequest(http.MethodGet, "/api/tracks/t1", nil, 42),
		map[string]string{"track_id": "t1"})
	rec := httptest.NewRecorder()
	h.GetTrackHandler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code, "in-flight tracks are invisible to non-owners")

	// The owner still sees their own in-flight track.
	req = mux.SetURLVars(authedRequest(http.MethodGet, "/api/tracks/t1", nil, 9),
		map[string]string{"track_id": "t1"})
	rec = httptest.NewRecorder()
	h.GetTrackHandler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateMetadataInvalidatesCache(t *testing.T) {
	newHandlerTestRedis(t)
	ctx := context.Background()

	track := &model.Track{ID: "t1", UserID: 42, Title: "Old Title", Status: model.StatusComplete}
	require.NoError(t, cache.CacheTrack(ctx, track))

	repo := newStubTrackRepo(track)
	h := NewAPIHandler(repo, nil, nil, nil, nil, nil, nil, nil)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	require.NoError(t, form.WriteField("trackId", "t1"))
	require.NoError(t, form.WriteField("title", "New Title"))
	require.NoError(t, form.WriteField("artist", "New Artist"))
	require.NoError(t, form.Close())

	req := authedRequest(http.MethodPost, "/api/upload/metadata", &body, 42)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	h.UpdateMetadataHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, repo.metadataCalls)

	// The stale cached copy must be gone so the next read sees the new
	// metadata.
	cached, err := cache.GetCachedTrack(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, cached)
}
