package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// ProgressEvent is pushed to subscribers after every chunk receipt and at
// terminal transitions. Advisory only: resume state always comes from the
// database, never from these events.
type ProgressEvent struct {
	TrackID        string `json:"trackId"`
	ReceivedChunks int    `json:"receivedChunks"`
	TotalChunks    int    `json:"totalChunks"`
	Watermark      int    `json:"watermark"`
	Status         string `json:"status"`
}

func progressChannel(trackID string) string {
	return fmt.Sprintf("upload:progress:%s", trackID)
}

// PublishProgress fans an upload progress event out to any listening
// websocket relays. Failures are returned but callers treat them as
// non-fatal.
func PublishProgress(ctx context.Context, event ProgressEvent) error {
	if RedisClient == nil {
		return fmt.Errorf("redis client not initialized")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal progress event: %w", err)
	}

	if err := RedisClient.Publish(ctx, progressChannel(event.TrackID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish progress event: %w", err)
	}

	return nil
}

// SubscribeProgress subscribes to progress events for one track. The
// caller must Close the returned PubSub when done.
func SubscribeProgress(ctx context.Context, trackID string) *redis.PubSub {
	return RedisClient.Subscribe(ctx, progressChannel(trackID))
}
