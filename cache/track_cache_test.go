package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WaveFM/model"
)

func newTestRedis(t *testing.T) {
	t.Helper()
	mr := miniredis.RunT(t)
	RedisClient = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		RedisClient.Close()
		RedisClient = nil
	})
}

func TestCacheTrackRoundTrip(t *testing.T) {
	newTestRedis(t)
	ctx := context.Background()

	track := &model.Track{
		ID:       "t1",
		UserID:   7,
		Title:    "Title",
		Status:   model.StatusComplete,
		Duration: model.DurationFromSeconds(180),
	}
	require.NoError(t, CacheTrack(ctx, track))

	cached, err := GetCachedTrack(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "t1", cached.ID)
	assert.Equal(t, "Title", cached.Title)
	assert.Equal(t, model.StatusComplete, cached.Status)
}

func TestCacheTrackRefusesIncomplete(t *testing.T) {
	newTestRedis(t)

	err := CacheTrack(context.Background(), &model.Track{ID: "t1", Status: model.StatusUploading})
	assert.Error(t, err, "only complete tracks may enter the cache")
}

func TestGetCachedTrackMiss(t *testing.T) {
	newTestRedis(t)

	cached, err := GetCachedTrack(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestInvalidateTrackDropsEntry(t *testing.T) {
	newTestRedis(t)
	ctx := context.Background()

	track := &model.Track{ID: "t1", Status: model.StatusComplete}
	require.NoError(t, CacheTrack(ctx, track))
	require.NoError(t, InvalidateTrack(ctx, "t1"))

	cached, err := GetCachedTrack(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestProgressPubSub(t *testing.T) {
	newTestRedis(t)
	ctx := context.Background()

	pubsub := SubscribeProgress(ctx, "t1")
	defer pubsub.Close()

	// Wait for the subscription before publishing.
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	event := ProgressEvent{
		TrackID:        "t1",
		ReceivedChunks: 3,
		TotalChunks:    5,
		Watermark:      1,
		Status:         model.StatusUploading,
	}
	require.NoError(t, PublishProgress(ctx, event))

	select {
	case msg := <-pubsub.Channel():
		assert.Contains(t, msg.Payload, `"receivedChunks":3`)
		assert.Contains(t, msg.Payload, `"watermark":1`)
	case <-time.After(2 * time.Second):
		t.Fatal("no progress event received")
	}
}
