package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
)

// ChunkStore is the durable byte storage consumed by the upload core.
// Writes are idempotent: putting the same key twice overwrites the prior
// bytes, so chunk re-delivery is always safe.
type ChunkStore interface {
	// Put writes size bytes from r under key, overwriting any prior object.
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	// StatSize returns the byte size of the object at key.
	StatSize(ctx context.Context, key string) (int64, error)
	// Compose concatenates the objects at srcKeys, in order, into dstKey.
	Compose(ctx context.Context, dstKey string, srcKeys []string) error
	// FetchToFile downloads the object at key to a local path.
	FetchToFile(ctx context.Context, key string, path string) error
	// Remove deletes the object at key. Missing objects are not an error.
	Remove(ctx context.Context, key string) error
}

// minioChunkStore implements ChunkStore on a MinIO bucket.
type minioChunkStore struct {
	client *minio.Client
	bucket string
}

// NewMinioChunkStore creates a ChunkStore backed by the given bucket.
func NewMinioChunkStore(client *minio.Client, bucket string) ChunkStore {
	return &minioChunkStore{client: client, bucket: bucket}
}

func (s *minioChunkStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

func (s *minioChunkStore) StatSize(ctx context.Context, key string) (int64, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return info.Size, nil
}

func (s *minioChunkStore) Compose(ctx context.Context, dstKey string, srcKeys []string) error {
	if len(srcKeys) == 0 {
		return fmt.Errorf("compose requires at least one source object")
	}

	dst := minio.CopyDestOptions{Bucket: s.bucket, Object: dstKey}

	// ComposeObject requires every part except the last to be at least
	// 5MiB, which server-side copy of a single object does not. Fall back
	// to a plain copy for single-chunk uploads.
	if len(srcKeys) == 1 {
		src := minio.CopySrcOptions{Bucket: s.bucket, Object: srcKeys[0]}
		if _, err := s.client.CopyObject(ctx, dst, src); err != nil {
			return fmt.Errorf("failed to copy object %s to %s: %w", srcKeys[0], dstKey, err)
		}
		return nil
	}

	srcs := make([]minio.CopySrcOptions, 0, len(srcKeys))
	for _, key := range srcKeys {
		srcs = append(srcs, minio.CopySrcOptions{Bucket: s.bucket, Object: key})
	}

	if _, err := s.client.ComposeObject(ctx, dst, srcs...); err != nil {
		return fmt.Errorf("failed to compose %d objects into %s: %w", len(srcKeys), dstKey, err)
	}
	return nil
}

func (s *minioChunkStore) FetchToFile(ctx context.Context, key string, path string) error {
	if err := s.client.FGetObject(ctx, s.bucket, key, path, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("failed to fetch object %s: %w", key, err)
	}
	return nil
}

func (s *minioChunkStore) Remove(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("failed to remove object %s: %w", key, err)
	}
	return nil
}

// ChunkKey returns the object key for one chunk of a track.
func ChunkKey(prefix string, index int) string {
	return fmt.Sprintf("%s/chunks/%06d", prefix, index)
}

// AudioKey returns the object key of the composed asset for a track.
func AudioKey(prefix string) string {
	return fmt.Sprintf("%s/audio", prefix)
}

// TrackPrefix returns the object key prefix for a track's objects.
func TrackPrefix(trackID string) string {
	return fmt.Sprintf("tracks/%s", trackID)
}
