package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"WaveFM/model"
)

// fakeTrackRepo is an in-memory TrackRepository with the same CAS
// semantics as the MySQL implementation.
type fakeTrackRepo struct {
	mu     sync.Mutex
	tracks map[string]*model.Track
}

func newFakeTrackRepo() *fakeTrackRepo {
	return &fakeTrackRepo{tracks: make(map[string]*model.Track)}
}

func (r *fakeTrackRepo) CreateTrack(ctx context.Context, track *model.Track) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *track
	if cp.Status == "" {
		cp.Status = model.StatusPending
	}
	r.tracks[cp.ID] = &cp
	return nil
}

func (r *fakeTrackRepo) GetTrackByID(ctx context.Context, id string) (*model.Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	track, ok := r.tracks[id]
	if !ok {
		return nil, model.ErrTrackNotFound
	}
	cp := *track
	return &cp, nil
}

func (r *fakeTrackRepo) GetTrackStatus(ctx context.Context, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	track, ok := r.tracks[id]
	if !ok {
		return "", model.ErrTrackNotFound
	}
	return track.Status, nil
}

func (r *fakeTrackRepo) UpdateTrackMetadata(ctx context.Context, id, title, artist, thumbnailPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	track, ok := r.tracks[id]
	if !ok {
		return model.ErrTrackNotFound
	}
	track.Title = title
	track.Artist = artist
	track.ThumbnailPath = thumbnailPath
	return nil
}

func (r *fakeTrackRepo) cas(id, from, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	track, ok := r.tracks[id]
	if !ok {
		return false, model.ErrTrackNotFound
	}
	if track.Status != from {
		return false, nil
	}
	track.Status = to
	track.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeTrackRepo) MarkUploading(ctx context.Context, id string) (bool, error) {
	return r.cas(id, model.StatusPending, model.StatusUploading)
}

func (r *fakeTrackRepo) ClaimFinalizing(ctx context.Context, id string) (bool, error) {
	return r.cas(id, model.StatusUploading, model.StatusFinalizing)
}

func (r *fakeTrackRepo) CommitComplete(ctx context.Context, id, filePath string, duration model.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	track, ok := r.tracks[id]
	if !ok {
		return model.ErrTrackNotFound
	}
	if track.Status != model.StatusFinalizing {
		return fmt.Errorf("track %s was not in finalizing state at commit", id)
	}
	track.Status = model.StatusComplete
	track.FilePath = filePath
	track.Duration = duration
	track.UpdatedAt = time.Now()
	return nil
}

func (r *fakeTrackRepo) MarkFailed(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	track, ok := r.tracks[id]
	if !ok {
		return model.ErrTrackNotFound
	}
	if track.Status == model.StatusUploading || track.Status == model.StatusFinalizing {
		track.Status = model.StatusFailed
	}
	return nil
}

func (r *fakeTrackRepo) ReleaseStuckFinalizing(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, track := range r.tracks {
		if track.Status == model.StatusFinalizing && track.UpdatedAt.Before(cutoff) {
			track.Status = model.StatusUploading
			n++
		}
	}
	return n, nil
}

func (r *fakeTrackRepo) GetRandomTracks(ctx context.Context, userID int64, limit int) ([]*model.TrackView, error) {
	return nil, nil
}

// fakeUploadRepo is an in-memory UploadRepository.
type fakeUploadRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.UploadSession
	chunks   map[string]map[int]model.ChunkRecord
}

func newFakeUploadRepo() *fakeUploadRepo {
	return &fakeUploadRepo{
		sessions: make(map[string]*model.UploadSession),
		chunks:   make(map[string]map[int]model.ChunkRecord),
	}
}

func (r *fakeUploadRepo) CreateSession(ctx context.Context, session *model.UploadSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.TrackID]; ok {
		return fmt.Errorf("session already exists for track %s", session.TrackID)
	}
	cp := *session
	r.sessions[session.TrackID] = &cp
	return nil
}

func (r *fakeUploadRepo) GetSession(ctx context.Context, trackID string) (*model.UploadSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[trackID]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	cp := *session
	return &cp, nil
}

func (r *fakeUploadRepo) UpsertChunk(ctx context.Context, rec *model.ChunkRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.chunks[rec.TrackID] == nil {
		r.chunks[rec.TrackID] = make(map[int]model.ChunkRecord)
	}
	cp := *rec
	cp.ReceivedAt = time.Now()
	r.chunks[rec.TrackID][rec.ChunkIndex] = cp
	return nil
}

func (r *fakeUploadRepo) ListChunks(ctx context.Context, trackID string) ([]model.ChunkRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chunks := make([]model.ChunkRecord, 0, len(r.chunks[trackID]))
	for _, rec := range r.chunks[trackID] {
		chunks = append(chunks, rec)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ChunkIndex < chunks[j].ChunkIndex })
	return chunks, nil
}

func (r *fakeUploadRepo) UpdateProgress(ctx context.Context, trackID string, received, watermark int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[trackID]
	if !ok {
		return model.ErrSessionNotFound
	}
	session.ReceivedChunks = received
	session.Watermark = watermark
	return nil
}

func (r *fakeUploadRepo) ListIncompleteByUser(ctx context.Context, userID int64) ([]model.ResumeDescriptor, error) {
	return nil, nil
}

func (r *fakeUploadRepo) ListStuckSessions(ctx context.Context) ([]model.UploadSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions := make([]model.UploadSession, 0)
	for _, session := range r.sessions {
		if session.ReceivedChunks == session.TotalChunks {
			sessions = append(sessions, *session)
		}
	}
	return sessions, nil
}

// fakeChunkStore keeps objects in memory.
type fakeChunkStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	putErr     error
	composeErr error
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{objects: make(map[string][]byte)}
}

func (s *fakeChunkStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	if s.putErr != nil {
		return s.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeChunkStore) StatSize(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return 0, fmt.Errorf("no such key %s", key)
	}
	return int64(len(data)), nil
}

func (s *fakeChunkStore) Compose(ctx context.Context, dstKey string, srcKeys []string) error {
	if s.composeErr != nil {
		return s.composeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var buf bytes.Buffer
	for _, key := range srcKeys {
		data, ok := s.objects[key]
		if !ok {
			return fmt.Errorf("no such key %s", key)
		}
		buf.Write(data)
	}
	s.objects[dstKey] = buf.Bytes()
	return nil
}

func (s *fakeChunkStore) FetchToFile(ctx context.Context, key string, path string) error {
	s.mu.Lock()
	data, ok := s.objects[key]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no such key %s", key)
	}
	return os.WriteFile(path, data, 0644)
}

func (s *fakeChunkStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// fakeDecoder reports a fixed duration, or fails.
type fakeDecoder struct {
	seconds float64
	err     error

	mu    sync.Mutex
	calls int
}

func (d *fakeDecoder) DecodeDuration(ctx context.Context, path string) (float64, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.err != nil {
		return 0, d.err
	}
	return d.seconds, nil
}

func (d *fakeDecoder) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}
