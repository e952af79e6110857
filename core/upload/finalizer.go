package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"WaveFM/core/audio"
	"WaveFM/logger"
	"WaveFM/model"
	"WaveFM/repository"
	"WaveFM/storage"
)

// CompleteHook runs after a track commits to 'complete', e.g. to warm the
// metadata cache. Failures are logged, never propagated: visibility is
// already decided by the database at that point.
type CompleteHook func(ctx context.Context, track *model.Track)

// Finalizer is the single gate between "all bytes present" and "track is
// visible". Callers must hold the 'finalizing' claim (ClaimFinalizing)
// before invoking Run; the claim, not any in-process lock, is what keeps
// finalization single-winner across server instances.
type Finalizer struct {
	tracks     repository.TrackRepository
	uploads    repository.UploadRepository
	store      storage.ChunkStore
	decoder    audio.Decoder
	onComplete CompleteHook
	publish    ProgressPublisher
}

// NewFinalizer creates a Finalizer. onComplete and publish may be nil.
func NewFinalizer(
	tracks repository.TrackRepository,
	uploads repository.UploadRepository,
	store storage.ChunkStore,
	decoder audio.Decoder,
	onComplete CompleteHook,
	publish ProgressPublisher,
) *Finalizer {
	return &Finalizer{
		tracks:     tracks,
		uploads:    uploads,
		store:      store,
		decoder:    decoder,
		onComplete: onComplete,
		publish:    publish,
	}
}

// Run validates the chunk set, assembles the asset, decodes its duration
// and commits the uploading(finalizing) -> complete transition. Any
// failure moves the track to 'failed' and surfaces a FinalizationError;
// session and chunk rows stay behind for diagnostics, but the stored
// objects are discarded since 'failed' is terminal.
func (f *Finalizer) Run(ctx context.Context, trackID string) error {
	if err := f.run(ctx, trackID); err != nil {
		if markErr := f.tracks.MarkFailed(ctx, trackID); markErr != nil {
			logger.Error("failed to mark track failed",
				logger.String("trackId", trackID),
				logger.ErrorField(markErr))
		}
		f.discardObjects(ctx, trackID)
		f.notify(ctx, trackID, model.StatusFailed)
		return err
	}
	return nil
}

// discardObjects deletes the chunk objects and any partially composed
// asset of a failed upload. Best effort: a miss here only leaves garbage
// in the bucket, never incorrect state.
func (f *Finalizer) discardObjects(ctx context.Context, trackID string) {
	session, err := f.uploads.GetSession(ctx, trackID)
	if err != nil {
		return
	}

	chunks, err := f.uploads.ListChunks(ctx, trackID)
	if err != nil {
		logger.Warn("failed to list chunks for cleanup",
			logger.String("trackId", trackID),
			logger.ErrorField(err))
	}
	for _, c := range chunks {
		if err := f.store.Remove(ctx, c.ObjectKey); err != nil {
			logger.Warn("failed to remove chunk object",
				logger.String("key", c.ObjectKey),
				logger.ErrorField(err))
		}
	}

	audioKey := storage.AudioKey(session.StoragePrefix)
	if err := f.store.Remove(ctx, audioKey); err != nil {
		logger.Warn("failed to remove assembled asset",
			logger.String("key", audioKey),
			logger.ErrorField(err))
	}
}

func (f *Finalizer) run(ctx context.Context, trackID string) error {
	session, err := f.uploads.GetSession(ctx, trackID)
	if err != nil {
		return &FinalizationError{TrackID: trackID, Reason: "session lookup failed", Err: err}
	}

	chunks, err := f.uploads.ListChunks(ctx, trackID)
	if err != nil {
		return &FinalizationError{TrackID: trackID, Reason: "chunk listing failed", Err: err}
	}

	// Contiguity: exactly the set [0, total). The ordered listing makes
	// this a single pass.
	if len(chunks) != session.TotalChunks {
		return &FinalizationError{
			TrackID: trackID,
			Reason:  fmt.Sprintf("expected %d chunks, found %d", session.TotalChunks, len(chunks)),
		}
	}
	srcKeys := make([]string, 0, len(chunks))
	for i, c := range chunks {
		if c.ChunkIndex != i {
			return &FinalizationError{
				TrackID: trackID,
				Reason:  fmt.Sprintf("missing chunk index %d", i),
			}
		}
		srcKeys = append(srcKeys, c.ObjectKey)
	}

	// Each persisted object must match its recorded byte length before it
	// is stitched into the asset.
	var declaredSize int64
	for _, c := range chunks {
		size, err := f.store.StatSize(ctx, c.ObjectKey)
		if err != nil {
			return &FinalizationError{TrackID: trackID, Reason: "chunk stat failed",
				Err: &StorageError{Op: "stat", Key: c.ObjectKey, Err: err}}
		}
		if size != c.ByteSize {
			return &FinalizationError{
				TrackID: trackID,
				Reason:  fmt.Sprintf("chunk %d stored %d bytes, recorded %d", c.ChunkIndex, size, c.ByteSize),
			}
		}
		declaredSize += c.ByteSize
	}

	audioKey := storage.AudioKey(session.StoragePrefix)
	if err := f.store.Compose(ctx, audioKey, srcKeys); err != nil {
		return &FinalizationError{TrackID: trackID, Reason: "asset assembly failed",
			Err: &StorageError{Op: "compose", Key: audioKey, Err: err}}
	}

	assembledSize, err := f.store.StatSize(ctx, audioKey)
	if err != nil {
		return &FinalizationError{TrackID: trackID, Reason: "asset stat failed",
			Err: &StorageError{Op: "stat", Key: audioKey, Err: err}}
	}
	if assembledSize != declaredSize {
		return &FinalizationError{
			TrackID: trackID,
			Reason:  fmt.Sprintf("assembled asset is %d bytes, chunks total %d", assembledSize, declaredSize),
		}
	}

	duration, err := f.decodeDuration(ctx, trackID, audioKey)
	if err != nil {
		return &FinalizationError{TrackID: trackID, Reason: "duration decode failed", Err: err}
	}

	// Duration and status land in one update; no reader can observe one
	// without the other.
	if err := f.tracks.CommitComplete(ctx, trackID, audioKey, duration); err != nil {
		return &FinalizationError{TrackID: trackID, Reason: "status commit failed", Err: err}
	}

	logger.Info("track finalized",
		logger.String("trackId", trackID),
		logger.Int("chunks", session.TotalChunks),
		logger.Int64("bytes", assembledSize),
		logger.Float64("durationSeconds", duration.Seconds()))
	f.notify(ctx, trackID, model.StatusComplete)

	if f.onComplete != nil {
		if track, err := f.tracks.GetTrackByID(ctx, trackID); err == nil {
			f.onComplete(ctx, track)
		}
	}
	return nil
}

// decodeDuration pulls the assembled asset to a temp file and hands it to
// the decoder collaborator. The per-track lock is not held here.
func (f *Finalizer) decodeDuration(ctx context.Context, trackID, audioKey string) (model.Duration, error) {
	tempDir, err := os.MkdirTemp("", fmt.Sprintf("finalize-%s-", trackID))
	if err != nil {
		return model.Duration{}, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	tempAudio := filepath.Join(tempDir, "audio")
	if err := f.store.FetchToFile(ctx, audioKey, tempAudio); err != nil {
		return model.Duration{}, &StorageError{Op: "fetch", Key: audioKey, Err: err}
	}

	seconds, err := f.decoder.DecodeDuration(ctx, tempAudio)
	if err != nil {
		return model.Duration{}, &DecodeError{Err: err}
	}
	return model.DurationFromSeconds(seconds), nil
}

func (f *Finalizer) notify(ctx context.Context, trackID string, status string) {
	if f.publish == nil {
		return
	}
	session, err := f.uploads.GetSession(ctx, trackID)
	if err != nil {
		return
	}
	f.publish(ctx, trackID, session.ReceivedChunks, session.TotalChunks, session.Watermark, status)
}

// Sweep re-triggers finalization for sessions whose chunk set completed
// but whose track never reached 'complete' (crash between completion and
// commit). Tracks stuck in 'finalizing' since before cutoff are re-armed
// to 'uploading' first; the claim CAS then makes re-running safe.
func (f *Finalizer) Sweep(ctx context.Context, stuckCutoff time.Duration) (int, error) {
	released, err := f.tracks.ReleaseStuckFinalizing(ctx, time.Now().Add(-stuckCutoff))
	if err != nil {
		return 0, err
	}
	if released > 0 {
		logger.Warn("re-armed stuck finalizing tracks", logger.Int64("count", released))
	}

	sessions, err := f.uploads.ListStuckSessions(ctx)
	if err != nil {
		return 0, err
	}

	finalized := 0
	for _, s := range sessions {
		claimed, err := f.tracks.ClaimFinalizing(ctx, s.TrackID)
		if err != nil {
			logger.Error("sweep claim failed",
				logger.String("trackId", s.TrackID),
				logger.ErrorField(err))
			continue
		}
		if !claimed {
			continue // another instance got there first
		}
		if err := f.Run(ctx, s.TrackID); err != nil {
			logger.Error("sweep finalization failed",
				logger.String("trackId", s.TrackID),
				logger.ErrorField(err))
			continue
		}
		finalized++
	}
	return finalized, nil
}
