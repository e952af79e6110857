package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"WaveFM/model"

	"github.com/go-redis/redis/v8"
)

const trackCacheTTL = 30 * time.Minute

func trackKey(trackID string) string {
	return fmt.Sprintf("track:%s", trackID)
}

// CacheTrack stores a completed track's metadata. Only complete tracks are
// ever cached; in-flight state lives in the database alone.
func CacheTrack(ctx context.Context, track *model.Track) error {
	if RedisClient == nil {
		return fmt.Errorf("redis client not initialized")
	}
	if track.Status != model.StatusComplete {
		return fmt.Errorf("refusing to cache track %s with status %s", track.ID, track.Status)
	}

	payload, err := json.Marshal(track)
	if err != nil {
		return fmt.Errorf("failed to marshal track: %w", err)
	}

	if err := RedisClient.Set(ctx, trackKey(track.ID), payload, trackCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache track: %w", err)
	}

	return nil
}

// GetCachedTrack returns the cached track metadata, or nil on a miss.
func GetCachedTrack(ctx context.Context, trackID string) (*model.Track, error) {
	if RedisClient == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	payload, err := RedisClient.Get(ctx, trackKey(trackID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached track: %w", err)
	}

	var track model.Track
	if err := json.Unmarshal([]byte(payload), &track); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached track: %w", err)
	}

	return &track, nil
}

// InvalidateTrack drops a track from the cache.
func InvalidateTrack(ctx context.Context, trackID string) error {
	if RedisClient == nil {
		return fmt.Errorf("redis client not initialized")
	}
	return RedisClient.Del(ctx, trackKey(trackID)).Err()
}
