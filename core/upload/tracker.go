package upload

import (
	"context"
	"errors"
	"io"

	"WaveFM/core/lock"
	"WaveFM/logger"
	"WaveFM/model"
	"WaveFM/repository"
	"WaveFM/storage"
)

// ProgressPublisher pushes advisory progress events after chunk receipts
// and terminal transitions. Failures never affect the upload itself.
type ProgressPublisher func(ctx context.Context, trackID string, received, total, watermark int, status string)

// Tracker is the upload session state machine. All read-modify-write
// paths for one track serialize on a per-track mutex; different tracks
// never contend. The durable received-index set (track_chunks rows) is
// the source of truth for the counter and watermark, which is what makes
// duplicate and out-of-order delivery safe.
type Tracker struct {
	tracks    repository.TrackRepository
	uploads   repository.UploadRepository
	store     storage.ChunkStore
	finalizer *Finalizer
	locks     *lock.KeyedMutex
	publish   ProgressPublisher
}

// NewTracker creates a Tracker. publish may be nil.
func NewTracker(
	tracks repository.TrackRepository,
	uploads repository.UploadRepository,
	store storage.ChunkStore,
	finalizer *Finalizer,
	publish ProgressPublisher,
) *Tracker {
	return &Tracker{
		tracks:    tracks,
		uploads:   uploads,
		store:     store,
		finalizer: finalizer,
		locks:     lock.NewKeyedMutex(),
		publish:   publish,
	}
}

// BeginOrContinue creates the upload session for a track or returns the
// existing one. An existing session validates the redeclared total chunk
// count against the original declaration; a mismatch is a protocol error,
// never silently adopted.
func (t *Tracker) BeginOrContinue(ctx context.Context, trackID string, ownerID int64, totalChunks int) (*model.UploadSession, error) {
	if totalChunks <= 0 {
		return nil, model.ErrProtocolMismatch
	}

	unlock := t.locks.Lock(trackID)
	defer unlock()

	track, err := t.tracks.GetTrackByID(ctx, trackID)
	if err != nil {
		return nil, err
	}
	if track.UserID != ownerID {
		return nil, model.ErrNotOwner
	}
	if track.Status == model.StatusComplete || track.Status == model.StatusFailed {
		return nil, model.ErrProtocolMismatch
	}

	session, err := t.uploads.GetSession(ctx, trackID)
	if err == nil {
		if session.TotalChunks != totalChunks {
			return nil, model.ErrProtocolMismatch
		}
		// A crash between session creation and the status flip leaves the
		// track 'pending' with a live session; re-arm it so chunk receipts
		// are not refused forever.
		if track.Status == model.StatusPending {
			if _, err := t.tracks.MarkUploading(ctx, trackID); err != nil {
				return nil, err
			}
		}
		return session, nil
	}
	if !errors.Is(err, model.ErrSessionNotFound) {
		return nil, err
	}

	session = &model.UploadSession{
		TrackID:       trackID,
		TotalChunks:   totalChunks,
		Watermark:     -1,
		StoragePrefix: storage.TrackPrefix(trackID),
	}
	if err := t.uploads.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	if _, err := t.tracks.MarkUploading(ctx, trackID); err != nil {
		return nil, err
	}

	logger.Info("upload session started",
		logger.String("trackId", trackID),
		logger.Int64("userId", ownerID),
		logger.Int("totalChunks", totalChunks))
	return session, nil
}

// ReceiveChunk persists one chunk and updates the session's progress. The
// received counter increments only when the index was not seen before;
// re-delivery overwrites bytes without double counting. The call that
// observes the last missing chunk claims finalization and runs it after
// releasing the per-track lock.
func (t *Tracker) ReceiveChunk(ctx context.Context, trackID string, ownerID int64, index int, r io.Reader, size int64) (*model.ChunkAck, error) {
	ack, claimed, err := t.receiveLocked(ctx, trackID, ownerID, index, r, size)
	if err != nil {
		return nil, err
	}

	// Finalization runs outside the per-track lock: duration decoding is a
	// slow external call and must not block other chunk writers or the
	// resume path. The DB-level 'finalizing' claim keeps it single-winner.
	if claimed {
		if err := t.finalizer.Run(ctx, trackID); err != nil {
			logger.Error("finalization failed",
				logger.String("trackId", trackID),
				logger.ErrorField(err))
			return ack, err
		}
		ack.Complete = true
	}

	return ack, nil
}

func (t *Tracker) receiveLocked(ctx context.Context, trackID string, ownerID int64, index int, r io.Reader, size int64) (*model.ChunkAck, bool, error) {
	unlock := t.locks.Lock(trackID)
	defer unlock()

	track, err := t.tracks.GetTrackByID(ctx, trackID)
	if err != nil {
		return nil, false, err
	}
	if track.UserID != ownerID {
		return nil, false, model.ErrNotOwner
	}

	session, err := t.uploads.GetSession(ctx, trackID)
	if err != nil {
		return nil, false, err
	}
	if index < 0 || index >= session.TotalChunks {
		return nil, false, model.ErrChunkOutOfRange
	}

	// A retried final chunk can arrive after the transition; answer with
	// current progress instead of writing into a sealed session.
	if track.Status == model.StatusFinalizing || track.Status == model.StatusComplete {
		return &model.ChunkAck{
			TrackID:        trackID,
			ReceivedChunks: session.ReceivedChunks,
			TotalChunks:    session.TotalChunks,
			Watermark:      session.Watermark,
			Complete:       track.Status == model.StatusComplete,
		}, false, nil
	}
	if track.Status != model.StatusUploading {
		return nil, false, model.ErrProtocolMismatch
	}

	key := storage.ChunkKey(session.StoragePrefix, index)
	if err := t.store.Put(ctx, key, r, size); err != nil {
		return nil, false, &StorageError{Op: "put", Key: key, Err: err}
	}

	if err := t.uploads.UpsertChunk(ctx, &model.ChunkRecord{
		TrackID:    trackID,
		ChunkIndex: index,
		ByteSize:   size,
		ObjectKey:  key,
	}); err != nil {
		return nil, false, err
	}

	// Re-derive count and watermark from the durable receipt set rather
	// than trusting the in-row counter.
	chunks, err := t.uploads.ListChunks(ctx, trackID)
	if err != nil {
		return nil, false, err
	}
	received := len(chunks)
	watermark := contiguousWatermark(chunks)

	if err := t.uploads.UpdateProgress(ctx, trackID, received, watermark); err != nil {
		return nil, false, err
	}

	if t.publish != nil {
		t.publish(ctx, trackID, received, session.TotalChunks, watermark, track.Status)
	}

	ack := &model.ChunkAck{
		TrackID:        trackID,
		ReceivedChunks: received,
		TotalChunks:    session.TotalChunks,
		Watermark:      watermark,
	}

	if received < session.TotalChunks {
		return ack, false, nil
	}

	// Completion observed. Claim the finalizer role via the DB
	// compare-and-swap so exactly one caller wins even across processes.
	claimed, err := t.tracks.ClaimFinalizing(ctx, trackID)
	if err != nil {
		return nil, false, err
	}
	return ack, claimed, nil
}

// contiguousWatermark returns the highest index such that every index
// from 0 through it is present in the ordered receipt list, or -1.
func contiguousWatermark(chunks []model.ChunkRecord) int {
	watermark := -1
	for _, c := range chunks {
		if c.ChunkIndex != watermark+1 {
			break
		}
		watermark = c.ChunkIndex
	}
	return watermark
}

// Session returns the current upload session for a track.
func (t *Tracker) Session(ctx context.Context, trackID string) (*model.UploadSession, error) {
	return t.uploads.GetSession(ctx, trackID)
}

// IsComplete reports whether every declared chunk has been received.
func (t *Tracker) IsComplete(ctx context.Context, trackID string) (bool, error) {
	session, err := t.uploads.GetSession(ctx, trackID)
	if err != nil {
		return false, err
	}
	return session.ReceivedChunks == session.TotalChunks, nil
}

// ListIncomplete is the resume query: every mid-upload track of the
// owner with enough state to resume from watermark+1. Takes no lock so
// it never blocks behind an in-progress upload.
func (t *Tracker) ListIncomplete(ctx context.Context, ownerID int64) ([]model.ResumeDescriptor, error) {
	return t.uploads.ListIncompleteByUser(ctx, ownerID)
}
