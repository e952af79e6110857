package model

import "errors"

// ErrTrackNotFound is returned when a track id resolves to no row.
var ErrTrackNotFound = errors.New("track not found")

// ErrSessionNotFound is returned when no upload session exists for a track.
var ErrSessionNotFound = errors.New("upload session not found")

// ErrNotOwner is returned when a caller operates on a track owned by
// someone else. Never retried.
var ErrNotOwner = errors.New("caller does not own the track")

// ErrProtocolMismatch is returned when a client redeclares a different
// total chunk count for an existing session. Never retried.
var ErrProtocolMismatch = errors.New("declared total chunks does not match existing session")

// ErrChunkOutOfRange is returned when a chunk index falls outside the
// declared [0, totalChunks) bounds. Never retried.
var ErrChunkOutOfRange = errors.New("chunk index out of declared range")

// ErrTrackNotEligible is returned when history, favorite or playlist
// writes reference a track that is not yet complete.
var ErrTrackNotEligible = errors.New("track is not complete")
